package band

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wisefido-band/internal/models"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"go.uber.org/zap"
)

// 厂家 GATT 服务与特征
var (
	dataServiceUUID  = ble.MustParse("0000fee7-0000-1000-8000-00805f9b34fb")
	realtimeCharUUID = ble.MustParse("0000fea1-0000-1000-8000-00805f9b34fb")
	controlCharUUID  = ble.MustParse("0000fea2-0000-1000-8000-00805f9b34fb")

	// 标准设备信息服务
	deviceInfoServiceUUID = ble.UUID16(0x180a)
	firmwareCharUUID      = ble.UUID16(0x2a26)
	hardwareCharUUID      = ble.UUID16(0x2a27)
)

// DeviceFactory 创建底层 BLE 设备（测试中可替换）
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

// GobleClient 基于 go-ble 的手环客户端实现
type GobleClient struct {
	logger *zap.Logger

	mu           sync.Mutex
	client       ble.Client
	realtimeChar *ble.Characteristic
	controlChar  *ble.Characteristic
	deviceID     string
	onDisconnect func(error)

	deviceOnce sync.Once
	deviceErr  error
}

func NewGobleClient(logger *zap.Logger) *GobleClient {
	return &GobleClient{logger: logger}
}

// ensureDevice 初始化底层 BLE 设备（进程内只做一次）
func (g *GobleClient) ensureDevice() error {
	g.deviceOnce.Do(func() {
		dev, err := DeviceFactory()
		if err != nil {
			g.deviceErr = fmt.Errorf("failed to create BLE device: %w", err)
			return
		}
		ble.SetDefaultDevice(dev)
	})
	return g.deviceErr
}

// Scan 扫描周边广播，只上报带名称的设备
func (g *GobleClient) Scan(ctx context.Context, onFound func(models.ScannedDevice)) error {
	if err := g.ensureDevice(); err != nil {
		return err
	}

	advHandler := func(a ble.Advertisement) {
		name := strings.TrimSpace(a.LocalName())
		if name == "" {
			return
		}
		onFound(models.ScannedDevice{
			MAC:  a.Addr().String(),
			Name: name,
			RSSI: a.RSSI(),
		})
	}

	err := ble.Scan(ctx, false, advHandler, nil)
	// 上下文结束是扫描的正常终止方式
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Connect 建立物理链路，发现服务并读取固件信息；不开启通知
func (g *GobleClient) Connect(ctx context.Context, mac string) (*DeviceInfo, error) {
	if err := g.ensureDevice(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return nil, fmt.Errorf("already connected")
	}

	client, err := ble.Dial(ctx, ble.NewAddr(mac))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device \"%s\": %w", mac, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	info := &DeviceInfo{}
	var realtimeChar, controlChar *ble.Characteristic
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			switch {
			case svc.UUID.Equal(dataServiceUUID) && char.UUID.Equal(realtimeCharUUID):
				realtimeChar = char
			case svc.UUID.Equal(dataServiceUUID) && char.UUID.Equal(controlCharUUID):
				controlChar = char
			case svc.UUID.Equal(deviceInfoServiceUUID) && char.UUID.Equal(firmwareCharUUID):
				if v, err := client.ReadCharacteristic(char); err == nil {
					info.FirmwareVersion = string(v)
				}
			case svc.UUID.Equal(deviceInfoServiceUUID) && char.UUID.Equal(hardwareCharUUID):
				if v, err := client.ReadCharacteristic(char); err == nil {
					info.HardwareVersion = string(v)
				}
			}
		}
	}

	if realtimeChar == nil || controlChar == nil {
		client.CancelConnection()
		return nil, fmt.Errorf("device \"%s\" does not expose the band data service", mac)
	}

	g.client = client
	g.realtimeChar = realtimeChar
	g.controlChar = controlChar
	g.deviceID = mac

	// 监听底层断开事件，转发给状态机
	go func(c ble.Client) {
		<-c.Disconnected()
		g.mu.Lock()
		fn := g.onDisconnect
		connected := g.client == c
		g.mu.Unlock()
		if connected && fn != nil {
			fn(fmt.Errorf("link lost"))
		}
	}(client)

	g.logger.Info("Band connected",
		zap.String("mac", mac),
		zap.String("firmware", info.FirmwareVersion),
		zap.String("hardware", info.HardwareVersion),
	)

	return info, nil
}

// EnableNotifications 订阅实时数据特征并把每帧解码为快照
func (g *GobleClient) EnableNotifications(onSample func(models.RealTimeSample)) error {
	g.mu.Lock()
	client := g.client
	char := g.realtimeChar
	deviceID := g.deviceID
	g.mu.Unlock()

	if client == nil {
		return fmt.Errorf("device not connected - establish connection before enabling notifications")
	}

	err := client.Subscribe(char, false, func(data []byte) {
		sample, err := DecodeRealtimeFrame(data, deviceID)
		if err != nil {
			g.logger.Warn("Failed to decode realtime frame",
				zap.Int("payload_size", len(data)),
				zap.Error(err),
			)
			return
		}
		onSample(*sample)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to realtime characteristic: %w", err)
	}

	g.logger.Info("Realtime notifications enabled", zap.String("mac", deviceID))
	return nil
}

// RequestSnapshot 向控制特征写入摘要请求命令
func (g *GobleClient) RequestSnapshot() error {
	g.mu.Lock()
	client := g.client
	char := g.controlChar
	g.mu.Unlock()

	if client == nil {
		return fmt.Errorf("device not connected")
	}

	if err := client.WriteCharacteristic(char, []byte{0x01}, true); err != nil {
		return fmt.Errorf("failed to request snapshot: %w", err)
	}
	return nil
}

// SetDisconnectHandler 注册非主动断开回调
func (g *GobleClient) SetDisconnectHandler(fn func(reason error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDisconnect = fn
}

// Disconnect 撤销订阅并断开链路
func (g *GobleClient) Disconnect() error {
	g.mu.Lock()
	client := g.client
	char := g.realtimeChar
	g.client = nil
	g.realtimeChar = nil
	g.controlChar = nil
	g.mu.Unlock()

	if client == nil {
		return nil
	}

	if char != nil {
		if err := client.Unsubscribe(char, false); err != nil {
			g.logger.Warn("Failed to unsubscribe during disconnect", zap.Error(err))
			// 继续断开，不因撤销订阅失败而中止
		}
	}

	if err := client.CancelConnection(); err != nil {
		return fmt.Errorf("failed to cancel connection: %w", err)
	}

	g.logger.Info("Band disconnected")
	return nil
}
