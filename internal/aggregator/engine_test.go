package aggregator

import (
	"testing"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(window time.Duration, bufferCap int) *Engine {
	cfg := &config.Config{}
	cfg.Aggregation.Window = window
	cfg.Aggregation.BufferCap = bufferCap
	return NewEngine(cfg, zap.NewNop())
}

func TestDrain_EmptyBufferReturnsNil(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)
	assert.Nil(t, engine.Drain())
}

func TestDrain_AveragesSkipZeroSamples(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	// 心率 60、0、80：0 表示该时刻未测量，平均只对正值计算
	engine.AddSample(models.RealTimeSample{HeartRate: 60, DeviceID: "AA:BB"})
	engine.AddSample(models.RealTimeSample{HeartRate: 0})
	engine.AddSample(models.RealTimeSample{HeartRate: 80})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, 70, metric.HeartRate)
}

func TestDrain_AllZeroFieldOutputsZero(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	engine.AddSample(models.RealTimeSample{Steps: 100})
	engine.AddSample(models.RealTimeSample{Steps: 50})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, 0, metric.HeartRate)
	assert.Equal(t, 0, metric.SpO2)
	assert.Equal(t, 0.0, metric.Temperature)
}

func TestDrain_ActivityFieldsSum(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	engine.AddSample(models.RealTimeSample{Steps: 100, Calories: 10, Distance: 80})
	engine.AddSample(models.RealTimeSample{Steps: 50, Calories: 5, Distance: 40})
	engine.AddSample(models.RealTimeSample{Steps: 75, Calories: 8, Distance: 60})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, 225, metric.Steps)
	assert.Equal(t, 23, metric.Calories)
	assert.Equal(t, 180, metric.Distance)
}

func TestDrain_BloodGlucoseTakesLastNonZero(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	engine.AddSample(models.RealTimeSample{BloodGlucose: 95.0})
	engine.AddSample(models.RealTimeSample{BloodGlucose: 102.0})
	engine.AddSample(models.RealTimeSample{BloodGlucose: 0})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, 102.0, metric.BloodGlucose)
}

func TestDrain_WearingFlagTakesLast(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	engine.AddSample(models.RealTimeSample{IsWearing: true})
	engine.AddSample(models.RealTimeSample{IsWearing: false})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.False(t, metric.IsWearing)
}

func TestDrain_DeviceIDTakesFirstNonEmpty(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)

	engine.AddSample(models.RealTimeSample{DeviceID: ""})
	engine.AddSample(models.RealTimeSample{DeviceID: "AA:BB:CC"})
	engine.AddSample(models.RealTimeSample{DeviceID: "DD:EE:FF"})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, "AA:BB:CC", metric.DeviceID)
}

func TestDrain_NewRecordIsPending(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 1000)
	engine.AddSample(models.RealTimeSample{HeartRate: 70})

	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, models.BackendStatusPending, metric.BackendStatus)
	assert.False(t, metric.PlatformSynced)
}

func TestAddSample_BufferCapEvictsOldest(t *testing.T) {
	engine := newTestEngine(5*time.Minute, 3)

	for i := 1; i <= 5; i++ {
		engine.AddSample(models.RealTimeSample{Steps: i})
	}

	assert.Equal(t, 3, engine.BufferLen())

	// 最旧的两个样本 (1, 2) 已被丢弃，剩余 3+4+5
	metric := engine.Drain()
	require.NotNil(t, metric)
	assert.Equal(t, 12, metric.Steps)
}

func TestDrain_ResetsWindow(t *testing.T) {
	engine := newTestEngine(50*time.Millisecond, 1000)

	engine.AddSample(models.RealTimeSample{HeartRate: 70})
	time.Sleep(60 * time.Millisecond)
	assert.True(t, engine.WindowComplete())

	require.NotNil(t, engine.Drain())

	// Drain 后窗口重新开始计时，缓冲清空
	assert.False(t, engine.WindowComplete())
	assert.Equal(t, 0, engine.BufferLen())
	assert.Nil(t, engine.Drain())
}
