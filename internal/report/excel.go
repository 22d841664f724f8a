package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"vetdesk-workflow/internal/domain"
	"vetdesk-workflow/internal/tasks"
)

// TaskBoardHeader 任务看板报表表头
var TaskBoardHeader = []string{
	"ID",
	"Bucket",
	"Title",
	"Pet",
	"Scheduled",
	"Completed",
}

// UsageHeader 医疗卡用量报表表头
var UsageHeader = []string{
	"Collection",
	"ID",
	"Name",
	"Quantity",
	"Detail",
	"Price",
}

// PetNameFunc 报表生成时解析宠物显示名（通常绑定 resolver.ResolveTaskPet）
type PetNameFunc func(task *domain.Task) string

// GenerateTaskBoard 生成护士任务看板的 Excel 报表
func GenerateTaskBoard(board tasks.Board, petName PetNameFunc) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Tasks"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeHeader(f, sheetName, TaskBoardHeader); err != nil {
		f.Close()
		return nil, err
	}

	row := 2
	buckets := []struct {
		bucket tasks.Bucket
		items  []domain.Task
	}{
		{tasks.BucketTodo, board.Todo},
		{tasks.BucketDoneToday, board.DoneToday},
		{tasks.BucketDone, board.Done},
	}
	for _, b := range buckets {
		for i := range b.items {
			task := &b.items[i]
			scheduled := ""
			if ts, ok := task.ScheduledTime(); ok {
				scheduled = ts.Format("2006-01-02 15:04")
			}
			completed := ""
			if ts, ok := task.CompletionTime(); ok && task.Status == domain.TaskDone {
				completed = ts.Format("2006-01-02 15:04")
			}
			pet := ""
			if petName != nil {
				pet = petName(task)
			}
			values := []any{task.ID, string(b.bucket), task.Title, pet, scheduled, completed}
			if err := writeRow(f, sheetName, row, values); err != nil {
				f.Close()
				return nil, err
			}
			row++
		}
	}

	return writeToBuffer(f)
}

// GenerateCardUsages 生成医疗卡用量明细的 Excel 报表
func GenerateCardUsages(card *domain.MedicalCard) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Usages"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeHeader(f, sheetName, UsageHeader); err != nil {
		f.Close()
		return nil, err
	}

	row := 2
	for _, u := range card.ServiceUsages {
		if err := writeRow(f, sheetName, row, []any{"service", u.ID, u.ServiceName, u.Quantity, u.Description, u.Price}); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	for _, u := range card.MedicineUsages {
		if err := writeRow(f, sheetName, row, []any{"medicine", u.ID, u.MedicineName, u.Quantity, u.Dosage, u.Price}); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	for _, u := range card.FeedUsages {
		if err := writeRow(f, sheetName, row, []any{"feed", u.ID, u.FeedName, u.Quantity, u.Description, u.Price}); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}

	return writeToBuffer(f)
}

// writeHeader 写入加粗表头行
func writeHeader(f *excelize.File, sheetName string, headers []string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

// writeRow 写入一行数据
func writeRow(f *excelize.File, sheetName string, row int, values []any) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

// writeToBuffer 序列化工作簿
func writeToBuffer(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
