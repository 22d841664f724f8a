package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"vetdesk-workflow/internal/api"
	"vetdesk-workflow/internal/config"
	"vetdesk-workflow/internal/domain"
	"vetdesk-workflow/internal/logger"
	"vetdesk-workflow/internal/report"
	"vetdesk-workflow/internal/resolver"
	"vetdesk-workflow/internal/tasks"
)

func main() {
	var nurseID = flag.Int64("nurse", 0, "Nurse ID to export the task board for")
	var output = flag.String("out", "", "Output file path (default: <report-dir>/taskboard-<nurse>-<date>.xlsx)")
	flag.Parse()

	if *nurseID == 0 {
		fmt.Fprintln(os.Stderr, "usage: export-task-report -nurse <id> [-out <path>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, "export-task-report")
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

	// 先把全部宠物名称解析完，报表里不出现加载占位
	for i := range taskList {
		names.ResolveTaskPet(&taskList[i])
	}
	names.Wait()

	data, err := report.GenerateTaskBoard(board, func(task *domain.Task) string {
		return names.ResolveTaskPet(task)
	})
	if err != nil {
		log.Fatal("Failed to generate report", zap.Error(err))
	}

	path := *output
	if path == "" {
		path = filepath.Join(cfg.Report.OutputDir,
			fmt.Sprintf("taskboard-%d-%s.xlsx", *nurseID, time.Now().Format("2006-01-02")))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal("Failed to write report file", zap.Error(err), zap.String("path", path))
	}

	log.Info("Task board report written",
		zap.String("path", path),
		zap.Int("todo", len(board.Todo)),
		zap.Int("done_today", len(board.DoneToday)),
		zap.Int("done", len(board.Done)),
	)
	fmt.Println(path)
}
