package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-band/internal/band"
	"wisefido-band/internal/config"
	"wisefido-band/internal/models"

	"go.uber.org/zap"
)

// DeviceStore 设备记录持久化（由 repository 实现）
type DeviceStore interface {
	UpsertDevice(device *models.Device) error
}

// Activation 实时流适配器的激活入口
// Activate 在进入 CONNECTED 时调用一次（幂等性由状态机转移保证），
// Deactivate 在任何断链路径上调用
type Activation interface {
	Activate() error
	Deactivate()
}

// Manager 连接状态机
// 独占维护链路生命周期：扫描、连接、稳定延迟、通知激活、自动重连、断开
// 所有 BLE 操作失败都收敛为 ERROR 状态，不会导致进程退出；
// 状态机始终可以通过新的 Connect 恢复
type Manager struct {
	cfg        *config.Config
	client     band.Client
	deviceRepo DeviceStore
	activation Activation
	logger     *zap.Logger

	mu                sync.Mutex
	state             models.ConnState
	current           *models.ScannedDevice
	reconnectAttempts int
	userInitiated     bool
	streamActive      bool

	stateSubs []func(models.ConnState)

	scanCancel context.CancelFunc
}

func NewManager(
	cfg *config.Config,
	client band.Client,
	deviceRepo DeviceStore,
	activation Activation,
	logger *zap.Logger,
) *Manager {
	m := &Manager{
		cfg:        cfg,
		client:     client,
		deviceRepo: deviceRepo,
		activation: activation,
		logger:     logger,
		state:      models.ConnStateDisconnected,
	}
	client.SetDisconnectHandler(m.handleDisconnect)
	return m
}

// State 当前连接状态
func (m *Manager) State() models.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentDevice 当前连接（或正在连接）的设备，未连接时为 nil
func (m *Manager) CurrentDevice() *models.ScannedDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	d := *m.current
	return &d
}

// SubscribeState 注册状态变化回调（回调在锁外执行）
func (m *Manager) SubscribeState(fn func(models.ConnState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateSubs = append(m.stateSubs, fn)
}

func (m *Manager) setState(state models.ConnState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	subs := make([]func(models.ConnState), len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.mu.Unlock()

	m.logger.Info("Connection state changed", zap.String("state", string(state)))
	for _, fn := range subs {
		fn(state)
	}
}

// StartScan 开始设备发现，阻塞直到扫描超时或 StopScan
// 每个设备只上报一次（按 MAC 去重），弱信号广播被丢弃
func (m *Manager) StartScan(ctx context.Context, onFound func(models.ScannedDevice)) error {
	scanCtx, cancel := context.WithTimeout(ctx, m.cfg.BLE.ScanTimeout)
	m.mu.Lock()
	m.scanCancel = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		m.scanCancel = nil
		m.mu.Unlock()
	}()

	m.logger.Info("Starting device scan",
		zap.Duration("timeout", m.cfg.BLE.ScanTimeout),
		zap.Int("rssi_threshold", m.cfg.BLE.RSSIThreshold),
	)

	var seenMu sync.Mutex
	seen := make(map[string]bool)
	return m.client.Scan(scanCtx, func(d models.ScannedDevice) {
		if d.RSSI <= m.cfg.BLE.RSSIThreshold {
			return
		}
		seenMu.Lock()
		dup := seen[d.MAC]
		seen[d.MAC] = true
		seenMu.Unlock()
		if dup {
			return
		}
		onFound(d)
	})
}

// StopScan 停止进行中的扫描
func (m *Manager) StopScan() {
	m.mu.Lock()
	cancel := m.scanCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Connect 连接指定设备
// 链路建立后不立即开启通知，而是等待固定的稳定延迟再激活——
// 这是手环固件的硬性协议要求，提前激活会导致数据通道静默失败
func (m *Manager) Connect(ctx context.Context, device models.ScannedDevice) error {
	m.mu.Lock()
	if m.state == models.ConnStateConnecting || m.state == models.ConnStateConnected {
		m.mu.Unlock()
		return fmt.Errorf("already %s", m.state)
	}
	m.current = &device
	m.userInitiated = false
	m.mu.Unlock()

	m.setState(models.ConnStateConnecting)

	info, err := m.client.Connect(ctx, device.MAC)
	if err != nil {
		m.setState(models.ConnStateError)
		return fmt.Errorf("failed to connect to band: %w", err)
	}

	// 稳定延迟：可取消的定时等待
	settle := time.NewTimer(m.cfg.BLE.SettleDelay)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		m.teardown()
		m.setState(models.ConnStateDisconnected)
		return ctx.Err()
	case <-settle.C:
	}

	if err := m.enterConnected(device, info); err != nil {
		// 激活失败时物理链路已建立，必须拆除，
		// 否则底层客户端的已连接保护会拒绝后续所有 Connect
		m.teardown()
		m.setState(models.ConnStateError)
		return err
	}

	return nil
}

// enterConnected CONNECTED 进入转移：激活通知通道、持久化设备记录
// 流适配器的激活以 streamActive 状态检查保证幂等，
// 重连后的重复激活回调不会产生重复订阅
func (m *Manager) enterConnected(device models.ScannedDevice, info *band.DeviceInfo) error {
	m.mu.Lock()
	alreadyActive := m.streamActive
	m.mu.Unlock()

	if !alreadyActive {
		if err := m.activation.Activate(); err != nil {
			return fmt.Errorf("failed to activate notification channel: %w", err)
		}
		m.mu.Lock()
		m.streamActive = true
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.reconnectAttempts = 0
	m.mu.Unlock()

	name := device.Name
	if info.Name != "" {
		name = info.Name
	}
	record := &models.Device{
		MAC:             device.MAC,
		Name:            name,
		LastConnectedAt: time.Now(),
		FirmwareVersion: info.FirmwareVersion,
		HardwareVersion: info.HardwareVersion,
	}
	if err := m.deviceRepo.UpsertDevice(record); err != nil {
		// 设备记录仅服务于下次启动的重连，持久化失败不影响本次连接
		m.logger.Error("Failed to persist device record",
			zap.String("mac", device.MAC),
			zap.Error(err),
		)
	}

	m.setState(models.ConnStateConnected)
	return nil
}

// handleDisconnect 非主动断开处理
// 重连计数未耗尽时：撤销流订阅、等待重连间隔、对同一设备重试
func (m *Manager) handleDisconnect(reason error) {
	m.mu.Lock()
	userInitiated := m.userInitiated
	device := m.current
	attempts := m.reconnectAttempts
	m.mu.Unlock()

	if userInitiated {
		// 主动断开由 Disconnect 负责状态收尾
		return
	}

	m.logger.Warn("Unsolicited disconnect",
		zap.Int("reconnect_attempts", attempts),
		zap.Error(reason),
	)

	m.teardown()

	if device == nil || attempts >= m.cfg.BLE.ReconnectMax {
		m.mu.Lock()
		m.reconnectAttempts = 0
		m.current = nil
		m.mu.Unlock()
		m.setState(models.ConnStateDisconnected)
		return
	}

	m.mu.Lock()
	m.reconnectAttempts++
	attempt := m.reconnectAttempts
	m.mu.Unlock()

	// 链路此刻已断开；重连在等待间隔后以普通 Connect 重新走状态机
	m.setState(models.ConnStateDisconnected)

	go func() {
		time.Sleep(m.cfg.BLE.ReconnectWait)

		// 等待期间用户可能已主动断开，重新检查后再重试
		m.mu.Lock()
		abandoned := m.userInitiated || m.current == nil
		m.mu.Unlock()
		if abandoned {
			m.logger.Info("Reconnect cancelled by user disconnect",
				zap.String("mac", device.MAC),
			)
			return
		}

		m.logger.Info("Reconnecting to band",
			zap.String("mac", device.MAC),
			zap.Int("attempt", attempt),
			zap.Int("max", m.cfg.BLE.ReconnectMax),
		)
		if err := m.Connect(context.Background(), *device); err != nil {
			m.logger.Error("Reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			// 连接失败不会触发断开回调，这里手动走一遍断开处理
			// 以消耗剩余的重连预算或最终放弃
			m.handleDisconnect(err)
		}
	}()
}

// Disconnect 用户主动断开：抑制自动重连，同步清理连接状态
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.userInitiated = true
	m.reconnectAttempts = 0
	m.current = nil
	m.mu.Unlock()

	m.setState(models.ConnStateDisconnecting)
	m.teardown()
	m.setState(models.ConnStateDisconnected)
	return nil
}

// teardown 撤销流订阅并断开物理链路（单次整体清理）
func (m *Manager) teardown() {
	m.mu.Lock()
	active := m.streamActive
	m.streamActive = false
	m.mu.Unlock()

	if active {
		m.activation.Deactivate()
	}
	if err := m.client.Disconnect(); err != nil {
		m.logger.Warn("Error during band disconnect", zap.Error(err))
	}
}
