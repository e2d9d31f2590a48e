package models

import "time"

// RealTimeSample 手环实时快照（瞬时值）
// 只存在于聚合缓冲区和最新值缓存中，不直接落库
type RealTimeSample struct {
	Timestamp    time.Time `json:"timestamp"`
	HeartRate    int       `json:"heart_rate"`
	Steps        int       `json:"steps"`
	Calories     int       `json:"calories"`
	Distance     int       `json:"distance"` // 米
	BPSystolic   int       `json:"bp_systolic"`
	BPDiastolic  int       `json:"bp_diastolic"`
	SpO2         int       `json:"spo2"`
	Temperature  float64   `json:"temperature"`   // 摄氏度
	BloodGlucose float64   `json:"blood_glucose"` // mg/dL，0 表示无数据
	Stress       int       `json:"stress"`
	MET          float64   `json:"met"`
	MAI          int       `json:"mai"`         // 厂家专有活动指数
	TotalSleep   int       `json:"total_sleep"` // 分钟
	DeepSleep    int       `json:"deep_sleep"`
	LightSleep   int       `json:"light_sleep"`
	IsWearing    bool      `json:"is_wearing"`
	DeviceID     string    `json:"device_id"` // 手环 MAC 地址
}
