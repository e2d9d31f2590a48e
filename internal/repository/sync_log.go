package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 平台同步日志的方向
const (
	SyncDirectionPush = "push"
	SyncDirectionPull = "pull"
)

// SyncLogRepository 平台同步日志仓库
type SyncLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSyncLogRepository(db *sql.DB, logger *zap.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		db:     db,
		logger: logger,
	}
}

// AppendEntry 追加一条同步日志
func (r *SyncLogRepository) AppendEntry(direction string, success bool, recordCount int, errMsg *string) error {
	query := `
		INSERT INTO platform_sync_log (direction, success, record_count, error, logged_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.Exec(query, direction, success, recordCount, errMsg, time.Now()); err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}
	return nil
}
