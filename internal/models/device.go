package models

import "time"

// Device 上次连接的手环记录
// 每次成功连接后更新，仅用于启动时重连；只有用户显式解绑才删除
type Device struct {
	MAC             string    `json:"mac"`
	Name            string    `json:"name"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	FirmwareVersion string    `json:"firmware_version"`
	HardwareVersion string    `json:"hardware_version"`
}

// ScannedDevice 扫描到的候选设备（去重、过滤后）
type ScannedDevice struct {
	MAC  string `json:"mac"`
	Name string `json:"name"`
	RSSI int    `json:"rssi"`
}
