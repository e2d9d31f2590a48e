package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"wisefido-band/internal/models"
)

// MetricDTO 云端上传的单条记录
// 本领域约定：原始值恰为零表示"无数据"，序列化时整个字段省略——
// 云端以字段缺失判断无数据，必须保持这一简化以兼容后端
type MetricDTO struct {
	UserID       string   `json:"userId"`
	DeviceID     string   `json:"deviceId"`
	Timestamp    int64    `json:"timestamp"` // Unix 毫秒
	HeartRate    *int     `json:"heartRate,omitempty"`
	BPSystolic   *int     `json:"bpSystolic,omitempty"`
	BPDiastolic  *int     `json:"bpDiastolic,omitempty"`
	SpO2         *int     `json:"spO2,omitempty"`
	Steps        *int     `json:"steps,omitempty"`
	Calories     *int     `json:"calories,omitempty"`
	Distance     *int     `json:"distance,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	BloodGlucose *float64 `json:"bloodGlucose,omitempty"`
	TotalSleep   *int     `json:"totalSleep,omitempty"`
	DeepSleep    *int     `json:"deepSleep,omitempty"`
	LightSleep   *int     `json:"lightSleep,omitempty"`
	Stress       *int     `json:"stress,omitempty"`
	MET          *float64 `json:"met,omitempty"`
	MAI          *int     `json:"mai,omitempty"`
	IsWearing    bool     `json:"isWearing"`
	RecordHash   string   `json:"recordHash"`
}

// ToMetricDTO 把聚合记录转换为上传 DTO
func ToMetricDTO(m *models.HealthMetric, userID string) MetricDTO {
	ts := m.WindowStart.UnixMilli()
	return MetricDTO{
		UserID:       userID,
		DeviceID:     m.DeviceID,
		Timestamp:    ts,
		HeartRate:    omitZeroInt(m.HeartRate),
		BPSystolic:   omitZeroInt(m.BPSystolic),
		BPDiastolic:  omitZeroInt(m.BPDiastolic),
		SpO2:         omitZeroInt(m.SpO2),
		Steps:        omitZeroInt(m.Steps),
		Calories:     omitZeroInt(m.Calories),
		Distance:     omitZeroInt(m.Distance),
		Temperature:  omitZeroFloat(m.Temperature),
		BloodGlucose: omitZeroFloat(m.BloodGlucose),
		TotalSleep:   omitZeroInt(m.TotalSleep),
		DeepSleep:    omitZeroInt(m.DeepSleep),
		LightSleep:   omitZeroInt(m.LightSleep),
		Stress:       omitZeroInt(m.Stress),
		MET:          omitZeroFloat(m.MET),
		MAI:          omitZeroInt(m.MAI),
		IsWearing:    m.IsWearing,
		RecordHash:   RecordHash(ts, m.HeartRate, m.Steps, m.DeviceID),
	}
}

// RecordHash 轻量去重/审计指纹（非安全哈希）：
// 时间戳、心率、步数、设备标识拼接后取 SHA-256 的前 16 个十六进制字符
func RecordHash(timestampMs int64, heartRate, steps int, deviceID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%d%d%s", timestampMs, heartRate, steps, deviceID)))
	return hex.EncodeToString(sum[:])[:16]
}

func omitZeroInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func omitZeroFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
