package models

import "time"

// 云端同步状态（backend_sync_status 列）
// 状态机：pending → syncing → synced / failed；failed 在重试耗尽后单向进入 dlq
const (
	BackendStatusPending = "pending"
	BackendStatusSyncing = "syncing"
	BackendStatusSynced  = "synced"
	BackendStatusFailed  = "failed"
	BackendStatusDLQ     = "dlq"
)

// HealthMetric 聚合后的健康指标记录（持久化单位）
// 每个聚合窗口（或一次手动拉取）产生一条；生命体征字段为窗口内
// 严格正值样本的平均值（全零字段输出 0，约定为"无数据"），
// 活动计数字段为窗口求和
type HealthMetric struct {
	ID          int64     `json:"id"`
	WindowStart time.Time `json:"window_start"`

	HeartRate    int     `json:"heart_rate"`
	BPSystolic   int     `json:"bp_systolic"`
	BPDiastolic  int     `json:"bp_diastolic"`
	SpO2         int     `json:"spo2"`
	Temperature  float64 `json:"temperature"`
	Stress       int     `json:"stress"`
	MET          float64 `json:"met"`
	MAI          int     `json:"mai"`
	BloodGlucose float64 `json:"blood_glucose"` // 窗口内最后一个非零值

	Steps      int `json:"steps"`
	Calories   int `json:"calories"`
	Distance   int `json:"distance"`
	TotalSleep int `json:"total_sleep"`
	DeepSleep  int `json:"deep_sleep"`
	LightSleep int `json:"light_sleep"`

	IsWearing bool   `json:"is_wearing"` // 窗口内最后一个佩戴标志
	DeviceID  string `json:"device_id"`  // 窗口内第一个非空设备标识

	// 平台同步轨道（布尔，无重试元数据）
	PlatformSynced   bool       `json:"platform_synced"`
	PlatformSyncedAt *time.Time `json:"platform_synced_at,omitempty"`

	// 云端同步轨道
	BackendStatus string     `json:"backend_status"`
	RetryCount    int        `json:"retry_count"`
	LastError     *string    `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
