package main

import (
	"fmt"

	"wisefido-band/internal/config"
	"wisefido-band/internal/database"
	"wisefido-band/internal/logger"
	"wisefido-band/internal/models"
	"wisefido-band/internal/repository"

	"go.uber.org/zap"
)

// check-sync-status 打印各云端同步状态的记录数量
// 用于排查同步堆积和 DLQ 情况
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "check-sync-status")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewHealthMetricRepository(db, log)
	counts, err := repo.CountByBackendStatus()
	if err != nil {
		log.Fatal("Failed to count sync status", zap.Error(err))
	}

	statuses := []string{
		models.BackendStatusPending,
		models.BackendStatusSyncing,
		models.BackendStatusSynced,
		models.BackendStatusFailed,
		models.BackendStatusDLQ,
	}

	fmt.Println("云端同步状态统计:")
	total := 0
	for _, status := range statuses {
		count := counts[status]
		total += count
		fmt.Printf("  %-10s %d\n", status, count)
	}
	fmt.Printf("  %-10s %d\n", "total", total)

	if dlq := counts[models.BackendStatusDLQ]; dlq > 0 {
		log.Warn("Records stuck in dead letter queue", zap.Int("count", dlq))
	}
}
