package band

import (
	"context"

	"wisefido-band/internal/models"
)

// DeviceInfo 连接成功后从设备信息服务读到的固件信息
type DeviceInfo struct {
	Name            string
	FirmwareVersion string
	HardwareVersion string
}

// Client 手环 SDK 边界：把厂家 BLE 协议收敛为类型化的事件源
// 上层（连接状态机、实时流适配器）只依赖这个接口，不接触 GATT 细节
type Client interface {
	// Scan 扫描周边设备，每发现一个广播调用一次 onFound
	// 去重和信号强度过滤由调用方（连接状态机）负责
	Scan(ctx context.Context, onFound func(models.ScannedDevice)) error

	// Connect 建立物理链路并发现服务，不开启通知通道
	Connect(ctx context.Context, mac string) (*DeviceInfo, error)

	// EnableNotifications 开启实时数据通知通道
	// ⚠️ 必须在 Connect 返回后等待固件的稳定延迟再调用
	EnableNotifications(onSample func(models.RealTimeSample)) error

	// RequestSnapshot 主动请求一次实时摘要（推送流之外的按需拉取）
	RequestSnapshot() error

	// SetDisconnectHandler 注册非主动断开回调
	SetDisconnectHandler(fn func(reason error))

	// Disconnect 撤销所有订阅并断开物理链路
	Disconnect() error
}
