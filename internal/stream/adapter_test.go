package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"wisefido-band/internal/band"
	"wisefido-band/internal/config"
	"wisefido-band/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeKV 内存 KV，记录写入的键值
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key]
}

// notifyingClient 捕获通知回调，让测试直接注入样本
type notifyingClient struct {
	mu        sync.Mutex
	onSample  func(models.RealTimeSample)
	snapshots int
}

func (c *notifyingClient) Scan(ctx context.Context, onFound func(models.ScannedDevice)) error {
	return nil
}

func (c *notifyingClient) Connect(ctx context.Context, mac string) (*band.DeviceInfo, error) {
	return &band.DeviceInfo{}, nil
}

func (c *notifyingClient) EnableNotifications(onSample func(models.RealTimeSample)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSample = onSample
	return nil
}

func (c *notifyingClient) RequestSnapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots++
	return nil
}

func (c *notifyingClient) SetDisconnectHandler(fn func(error)) {}

func (c *notifyingClient) Disconnect() error { return nil }

func (c *notifyingClient) push(sample models.RealTimeSample) {
	c.mu.Lock()
	fn := c.onSample
	c.mu.Unlock()
	fn(sample)
}

func (c *notifyingClient) snapshotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots
}

func testStreamConfig() *config.Config {
	cfg := &config.Config{}
	cfg.BLE.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestAdapter_ValidSampleReachesObservers(t *testing.T) {
	client := &notifyingClient{}
	kv := newFakeKV()
	adapter := NewAdapter(testStreamConfig(), client, kv, zap.NewNop())

	var received []models.RealTimeSample
	var mu sync.Mutex
	adapter.Subscribe(func(s models.RealTimeSample) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	})

	require.NoError(t, adapter.Activate())
	defer adapter.Deactivate()

	client.push(models.RealTimeSample{HeartRate: 72, DeviceID: "AA:BB"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, 72, received[0].HeartRate)

	latest := adapter.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 72, latest.HeartRate)

	// 快照镜像到 KV
	assert.NotEmpty(t, kv.get("band:device:AA:BB:realtime"))
}

func TestAdapter_InvalidSampleDiscardedEntirely(t *testing.T) {
	client := &notifyingClient{}
	adapter := NewAdapter(testStreamConfig(), client, newFakeKV(), zap.NewNop())

	observed := 0
	adapter.Subscribe(func(s models.RealTimeSample) { observed++ })

	require.NoError(t, adapter.Activate())
	defer adapter.Deactivate()

	// 有效样本建立基线
	client.push(models.RealTimeSample{HeartRate: 70, Steps: 100, DeviceID: "AA:BB"})
	// 心率越界：步数正常也整体丢弃，最新值保持不变
	client.push(models.RealTimeSample{HeartRate: 25, Steps: 200, DeviceID: "AA:BB"})

	assert.Equal(t, 1, observed)
	latest := adapter.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 70, latest.HeartRate)
	assert.Equal(t, 100, latest.Steps)
}

func TestAdapter_LatestIsLastWriteWins(t *testing.T) {
	client := &notifyingClient{}
	adapter := NewAdapter(testStreamConfig(), client, newFakeKV(), zap.NewNop())

	require.NoError(t, adapter.Activate())
	defer adapter.Deactivate()

	client.push(models.RealTimeSample{HeartRate: 70, DeviceID: "AA:BB"})
	client.push(models.RealTimeSample{HeartRate: 75, DeviceID: "AA:BB"})
	client.push(models.RealTimeSample{HeartRate: 80, DeviceID: "AA:BB"})

	latest := adapter.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 80, latest.HeartRate)
}

func TestAdapter_LatestNilBeforeFirstSample(t *testing.T) {
	adapter := NewAdapter(testStreamConfig(), &notifyingClient{}, newFakeKV(), zap.NewNop())
	assert.Nil(t, adapter.Latest())
}

func TestAdapter_PollLoopRequestsSnapshots(t *testing.T) {
	client := &notifyingClient{}
	adapter := NewAdapter(testStreamConfig(), client, newFakeKV(), zap.NewNop())

	require.NoError(t, adapter.Activate())
	time.Sleep(50 * time.Millisecond)
	adapter.Deactivate()

	// 给在途的 tick 一点收尾时间再取基线
	time.Sleep(20 * time.Millisecond)
	count := client.snapshotCount()
	assert.Greater(t, count, 0)

	// 撤销后轮询停止
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, client.snapshotCount())
}
