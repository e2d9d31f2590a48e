package repository

import (
	"database/sql"
	"fmt"
	"time"

	"wisefido-band/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// HealthMetricRepository 聚合指标仓库
// 本地库是两条同步轨道与读取路径共享的唯一事实来源；
// 所有状态变更都是按主键列表的批量更新，两条轨道只触碰各自的状态列
type HealthMetricRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewHealthMetricRepository(db *sql.DB, logger *zap.Logger) *HealthMetricRepository {
	return &HealthMetricRepository{
		db:     db,
		logger: logger,
	}
}

const metricColumns = `
	id, window_start,
	heart_rate, bp_systolic, bp_diastolic, spo2, temperature, stress, met, mai, blood_glucose,
	steps, calories, distance, total_sleep, deep_sleep, light_sleep,
	is_wearing, device_id,
	platform_synced, platform_synced_at,
	backend_sync_status, retry_count, last_error, last_attempt_at,
	created_at`

// InsertMetric 写入一条聚合记录，返回自增主键
func (r *HealthMetricRepository) InsertMetric(m *models.HealthMetric) (int64, error) {
	query := `
		INSERT INTO health_metrics (
			window_start,
			heart_rate, bp_systolic, bp_diastolic, spo2, temperature, stress, met, mai, blood_glucose,
			steps, calories, distance, total_sleep, deep_sleep, light_sleep,
			is_wearing, device_id, backend_sync_status
		) VALUES (
			$1,
			$2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19
		)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(query,
		m.WindowStart,
		m.HeartRate, m.BPSystolic, m.BPDiastolic, m.SpO2, m.Temperature, m.Stress, m.MET, m.MAI, m.BloodGlucose,
		m.Steps, m.Calories, m.Distance, m.TotalSleep, m.DeepSleep, m.LightSleep,
		m.IsWearing, nullableString(m.DeviceID), models.BackendStatusPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert health metric: %w", err)
	}

	return id, nil
}

// FetchBackendEligible 取出云端同步候选记录（最新优先）
// 候选：pending / failed，以及上次尝试早于退避截止点的 syncing 残留
// （崩溃恢复：不允许记录无限期停留在 syncing）。重试耗尽（dlq）不再入选。
// 设备标识是否缺失不在这里过滤，由同步器做数据质量分拣
func (r *HealthMetricRepository) FetchBackendEligible(limit int, cutoff time.Time, maxRetries int) ([]*models.HealthMetric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM health_metrics
		WHERE (
			backend_sync_status IN ($1, $2)
			OR (backend_sync_status = $3 AND last_attempt_at < $4)
		)
		AND retry_count < $5
		AND (last_attempt_at IS NULL OR last_attempt_at < $4)
		ORDER BY window_start DESC
		LIMIT $6
	`

	rows, err := r.db.Query(query,
		models.BackendStatusPending, models.BackendStatusFailed, models.BackendStatusSyncing,
		cutoff, maxRetries, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible metrics: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// MarkSyncing 网络调用前的在途标记（带尝试时间戳）
// 这个标记让并发触发不会重复选中同一批记录
func (r *HealthMetricRepository) MarkSyncing(ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE health_metrics
		SET backend_sync_status = $1, last_attempt_at = $2
		WHERE id = ANY($3)
	`
	if _, err := r.db.Exec(query, models.BackendStatusSyncing, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark metrics syncing: %w", err)
	}
	return nil
}

// MarkSynced 上传成功：整批置为 synced
func (r *HealthMetricRepository) MarkSynced(ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE health_metrics
		SET backend_sync_status = $1, last_attempt_at = $2, last_error = NULL
		WHERE id = ANY($3)
	`
	if _, err := r.db.Exec(query, models.BackendStatusSynced, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark metrics synced: %w", err)
	}
	return nil
}

// MarkFailed 传输失败：重试计数 +1，达到上限的记录单向进入 dlq
func (r *HealthMetricRepository) MarkFailed(ids []int64, errMsg string, at time.Time, maxRetries int) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE health_metrics
		SET retry_count = retry_count + 1,
		    backend_sync_status = CASE WHEN retry_count + 1 >= $1 THEN $2 ELSE $3 END,
		    last_error = $4,
		    last_attempt_at = $5
		WHERE id = ANY($6)
	`
	if _, err := r.db.Exec(query,
		maxRetries, models.BackendStatusDLQ, models.BackendStatusFailed,
		errMsg, at, pq.Array(ids),
	); err != nil {
		return fmt.Errorf("failed to mark metrics failed: %w", err)
	}
	return nil
}

// MarkFailedPermanent 数据质量失败（如缺设备标识）：
// 不走传输重试路径，重试计数钉到上限让候选查询不再选中
func (r *HealthMetricRepository) MarkFailedPermanent(ids []int64, reason string, maxRetries int) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE health_metrics
		SET backend_sync_status = $1, last_error = $2, retry_count = $3
		WHERE id = ANY($4)
	`
	if _, err := r.db.Exec(query, models.BackendStatusFailed, reason, maxRetries, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark metrics permanently failed: %w", err)
	}
	return nil
}

// CountByBackendStatus 各同步状态的记录数
func (r *HealthMetricRepository) CountByBackendStatus() (map[string]int, error) {
	query := `
		SELECT backend_sync_status, COUNT(*)::int
		FROM health_metrics
		GROUP BY backend_sync_status
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count metrics by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// FetchPlatformUnsynced 取出尚未同步到平台健康存储的记录
func (r *HealthMetricRepository) FetchPlatformUnsynced(since time.Time) ([]*models.HealthMetric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM health_metrics
		WHERE platform_synced = FALSE AND window_start >= $1
		ORDER BY window_start DESC
	`

	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform-unsynced metrics: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// MarkPlatformSynced 平台轨道：整批置为已同步
func (r *HealthMetricRepository) MarkPlatformSynced(ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE health_metrics
		SET platform_synced = TRUE, platform_synced_at = $1
		WHERE id = ANY($2)
	`
	if _, err := r.db.Exec(query, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark metrics platform-synced: %w", err)
	}
	return nil
}

// FetchRange 按窗口时间范围读取记录（导出工具、读取路径）
func (r *HealthMetricRepository) FetchRange(from, to time.Time) ([]*models.HealthMetric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM health_metrics
		WHERE window_start >= $1 AND window_start < $2
		ORDER BY window_start ASC
	`

	rows, err := r.db.Query(query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics range: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// DeleteOlderThan 保留策略：删除两条轨道都已了结的过期记录
// 云端轨道以 synced 或 dlq 视为了结
func (r *HealthMetricRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM health_metrics
		WHERE window_start < $1
		  AND platform_synced = TRUE
		  AND backend_sync_status IN ($2, $3)
	`

	result, err := r.db.Exec(query, cutoff, models.BackendStatusSynced, models.BackendStatusDLQ)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired metrics: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}

// scanMetrics 扫描查询结果
func scanMetrics(rows *sql.Rows) ([]*models.HealthMetric, error) {
	var metrics []*models.HealthMetric
	for rows.Next() {
		m := &models.HealthMetric{}
		var deviceID, lastError sql.NullString
		var platformSyncedAt, lastAttemptAt sql.NullTime

		if err := rows.Scan(
			&m.ID, &m.WindowStart,
			&m.HeartRate, &m.BPSystolic, &m.BPDiastolic, &m.SpO2, &m.Temperature, &m.Stress, &m.MET, &m.MAI, &m.BloodGlucose,
			&m.Steps, &m.Calories, &m.Distance, &m.TotalSleep, &m.DeepSleep, &m.LightSleep,
			&m.IsWearing, &deviceID,
			&m.PlatformSynced, &platformSyncedAt,
			&m.BackendStatus, &m.RetryCount, &lastError, &lastAttemptAt,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan health metric: %w", err)
		}

		if deviceID.Valid {
			m.DeviceID = deviceID.String
		}
		if lastError.Valid {
			m.LastError = &lastError.String
		}
		if platformSyncedAt.Valid {
			m.PlatformSyncedAt = &platformSyncedAt.Time
		}
		if lastAttemptAt.Valid {
			m.LastAttemptAt = &lastAttemptAt.Time
		}

		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
