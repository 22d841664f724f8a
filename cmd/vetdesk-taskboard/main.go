package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vetdesk-workflow/internal/api"
	"vetdesk-workflow/internal/config"
	"vetdesk-workflow/internal/domain"
	"vetdesk-workflow/internal/logger"
	"vetdesk-workflow/internal/resolver"
	"vetdesk-workflow/internal/tasks"
)

func main() {
	var nurseID = flag.Int64("nurse", 0, "Nurse ID to load the task board for")
	var markDone = flag.Int64("done", 0, "Mark the given task ID as done (gate rules apply)")
	flag.Parse()

	if *nurseID == 0 {
		fmt.Fprintln(os.Stderr, "usage: vetdesk-taskboard -nurse <id> [-done <task-id>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, "vetdesk-taskboard")
	defer log.Sync()

	client := api.NewClient(cfg.API, log)
	names := resolver.NewResolver(client, log, nil)
	manager := tasks.NewManager(client, log, time.Local, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	taskList, err := manager.ListForNurse(ctx, *nurseID)
	if err != nil {
		log.Fatal("Failed to load tasks", zap.Error(err), zap.Int64("nurse_id", *nurseID))
	}

	board := tasks.Classify(taskList, time.Now(), time.Local)

	if *markDone != 0 {
		task := findTask(board.Todo, *markDone)
		if task == nil {
			// 只能从 todo 列表完成：done 桶里的任务直接拒绝
			fmt.Fprintf(os.Stderr, "task %d is not in the todo list\n", *markDone)
			os.Exit(1)
		}
		if err := manager.MarkDone(ctx, task, tasks.OriginTodo); err != nil {
			if msg, ok := tasks.GateMessage(err); ok {
				fmt.Fprintln(os.Stderr, msg)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stderr, api.UserMessage(err))
			os.Exit(1)
		}
		fmt.Printf("task %d marked done\n", *markDone)

		// 完成后重新拉取再展示
		taskList, err = manager.ListForNurse(ctx, *nurseID)
		if err != nil {
			log.Fatal("Failed to reload tasks", zap.Error(err))
		}
		board = tasks.Classify(taskList, time.Now(), time.Local)
	}

	// 预热名称解析，等全部在途拉取结束后再打印
	for i := range taskList {
		names.ResolveTaskPet(&taskList[i])
	}
	names.Wait()

	printBucket("TODO", board.Todo, names)
	printBucket("DONE TODAY", board.DoneToday, names)
	printBucket("DONE", board.Done, names)
}

func findTask(list []domain.Task, id int64) *domain.Task {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func printBucket(title string, list []domain.Task, names *resolver.Resolver) {
	fmt.Printf("\n=== %s (%d) ===\n", title, len(list))
	for i := range list {
		task := &list[i]
		scheduled := "-"
		if ts, ok := task.ScheduledTime(); ok {
			scheduled = ts.Local().Format("2006-01-02 15:04")
		}
		pet := names.ResolveTaskPet(task)
		if pet == "" {
			pet = "-"
		}
		fmt.Printf("  #%-6d %-30s %-20s %s\n", task.ID, task.Title, pet, scheduled)
	}
}
