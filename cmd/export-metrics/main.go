package main

import (
	"flag"
	"fmt"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/database"
	"wisefido-band/internal/logger"
	"wisefido-band/internal/models"
	"wisefido-band/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// export-metrics 导出指定时间范围内的聚合健康指标为 Excel 文件
// 用法: export-metrics -from 2026-08-01 -to 2026-08-31 -out metrics.xlsx
func main() {
	fromFlag := flag.String("from", "", "起始日期 (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "结束日期 (YYYY-MM-DD)，默认今天")
	outFlag := flag.String("out", "metrics.xlsx", "输出文件名")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "export-metrics")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	from, to, err := parseRange(*fromFlag, *toFlag)
	if err != nil {
		log.Fatal("Invalid date range", zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewHealthMetricRepository(db, log)
	metrics, err := repo.FetchRange(from, to)
	if err != nil {
		log.Fatal("Failed to fetch metrics", zap.Error(err))
	}
	if len(metrics) == 0 {
		log.Info("No metrics in range, nothing to export")
		return
	}

	if err := writeExcel(metrics, *outFlag); err != nil {
		log.Fatal("Failed to write excel file", zap.Error(err))
	}

	log.Info("Export completed",
		zap.Int("record_count", len(metrics)),
		zap.String("file", *outFlag))
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from is required")
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date: %w", err)
	}
	to := time.Now()
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date: %w", err)
		}
		// 结束日期取当天末尾
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

func writeExcel(metrics []*models.HealthMetric, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "健康指标"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"窗口起点", "设备ID", "心率", "收缩压", "舒张压", "血氧",
		"体温", "压力", "血糖", "步数", "卡路里", "距离",
		"总睡眠", "深睡", "浅睡", "佩戴中", "云端状态", "平台已同步",
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}

	for i, m := range metrics {
		row := i + 2
		values := []interface{}{
			m.WindowStart.Format("2006-01-02 15:04:05"),
			m.DeviceID,
			m.HeartRate,
			m.BPSystolic,
			m.BPDiastolic,
			m.SpO2,
			m.Temperature,
			m.Stress,
			m.BloodGlucose,
			m.Steps,
			m.Calories,
			m.Distance,
			m.TotalSleep,
			m.DeepSleep,
			m.LightSleep,
			m.IsWearing,
			m.BackendStatus,
			m.PlatformSynced,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(filename)
}
