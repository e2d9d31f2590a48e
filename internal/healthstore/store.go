package healthstore

import (
	"context"
	"time"
)

// 平台健康存储中的记录类型
const (
	RecordTypeHeartRate     = "heart_rate"
	RecordTypeBloodPressure = "blood_pressure"
	RecordTypeOxygen        = "oxygen_saturation"
	RecordTypeSteps         = "steps"
	RecordTypeCalories      = "calories"
	RecordTypeDistance      = "distance"
	RecordTypeSleep         = "sleep"
	RecordTypeTemperature   = "body_temperature"
)

// Record 平台健康存储的记录（本应用之外的系统事实来源）
type Record struct {
	Type      string    `json:"type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Value     float64   `json:"value"`
	// 血压等复合记录的第二分量（舒张压）
	SecondaryValue float64 `json:"secondary_value,omitempty"`
	DeviceID       string  `json:"device_id,omitempty"`
}

// Store 平台健康存储边界
// 读写之前必须先通过可用性与权限检查；两者任一失败，
// 整个同步周期立即失败返回，不做部分处理
type Store interface {
	// Available 平台健康存储功能是否可用
	Available(ctx context.Context) error

	// CheckPermissions 是否已获得全部读写授权
	CheckPermissions(ctx context.Context) error

	// WriteRecords 单批写入记录
	WriteRecords(ctx context.Context, records []Record) error

	// ReadRecords 读取时间范围内的所有记录类型
	ReadRecords(ctx context.Context, from, to time.Time) ([]Record, error)
}
