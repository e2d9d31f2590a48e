package aggregator

import (
	"sync"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/models"

	"go.uber.org/zap"
)

// Engine 聚合引擎
// 把校验过的实时样本缓冲在一个有界窗口里，窗口完成（或手动触发）时
// 归约为一条 HealthMetric。缓冲区和窗口起点由同一把锁保护：
// Drain 的归约与重置对 AddSample 是原子的，不会丢样本
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	mu          sync.Mutex
	buffer      []models.RealTimeSample
	windowStart time.Time
}

func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		windowStart: time.Now(),
	}
}

// AddSample 追加一个已校验样本
// 缓冲区超出上限时丢弃最旧样本（对抗异常高频数据源的有界内存保证）
func (e *Engine) AddSample(sample models.RealTimeSample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buffer = append(e.buffer, sample)
	if over := len(e.buffer) - e.cfg.Aggregation.BufferCap; over > 0 {
		e.buffer = e.buffer[over:]
		e.logger.Warn("Aggregation buffer overflow, evicting oldest samples",
			zap.Int("evicted", over),
			zap.Int("cap", e.cfg.Aggregation.BufferCap),
		)
	}
}

// BufferLen 当前缓冲样本数
func (e *Engine) BufferLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// WindowComplete 墙钟时间是否已走完一个聚合窗口
func (e *Engine) WindowComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Since(e.windowStart) >= e.cfg.Aggregation.Window
}

// Drain 归约当前窗口并重置
// 缓冲为空时只重置窗口、返回 nil；并发 Drain 不受支持，由调用方
// （单一周期驱动器）保证串行
func (e *Engine) Drain() *models.HealthMetric {
	e.mu.Lock()
	defer e.mu.Unlock()

	windowStart := e.windowStart
	samples := e.buffer
	e.buffer = nil
	e.windowStart = time.Now()

	if len(samples) == 0 {
		return nil
	}

	metric := reduce(samples, windowStart)
	e.logger.Info("Aggregation window drained",
		zap.Int("sample_count", len(samples)),
		zap.Time("window_start", windowStart),
	)
	return metric
}

// reduce 窗口归约
// 生命体征取严格正值样本的平均（全零字段输出 0，约定为"无数据"）；
// 活动计数求和；血糖取最后一个非零值；佩戴标志取最新；
// 设备标识取第一个非空
func reduce(samples []models.RealTimeSample, windowStart time.Time) *models.HealthMetric {
	metric := &models.HealthMetric{
		WindowStart:   windowStart,
		BackendStatus: models.BackendStatusPending,
	}

	var (
		hrSum, hrN         int
		sysSum, sysN       int
		diaSum, diaN       int
		spo2Sum, spo2N     int
		stressSum, stressN int
		maiSum, maiN       int
		tempSum            float64
		tempN              int
		metSum             float64
		metN               int
	)

	for _, s := range samples {
		if s.HeartRate > 0 {
			hrSum += s.HeartRate
			hrN++
		}
		if s.BPSystolic > 0 {
			sysSum += s.BPSystolic
			sysN++
		}
		if s.BPDiastolic > 0 {
			diaSum += s.BPDiastolic
			diaN++
		}
		if s.SpO2 > 0 {
			spo2Sum += s.SpO2
			spo2N++
		}
		if s.Stress > 0 {
			stressSum += s.Stress
			stressN++
		}
		if s.MAI > 0 {
			maiSum += s.MAI
			maiN++
		}
		if s.Temperature > 0 {
			tempSum += s.Temperature
			tempN++
		}
		if s.MET > 0 {
			metSum += s.MET
			metN++
		}

		metric.Steps += s.Steps
		metric.Calories += s.Calories
		metric.Distance += s.Distance
		metric.TotalSleep += s.TotalSleep
		metric.DeepSleep += s.DeepSleep
		metric.LightSleep += s.LightSleep

		if s.BloodGlucose > 0 {
			metric.BloodGlucose = s.BloodGlucose
		}
		if metric.DeviceID == "" && s.DeviceID != "" {
			metric.DeviceID = s.DeviceID
		}
	}

	last := samples[len(samples)-1]
	metric.IsWearing = last.IsWearing

	if hrN > 0 {
		metric.HeartRate = hrSum / hrN
	}
	if sysN > 0 {
		metric.BPSystolic = sysSum / sysN
	}
	if diaN > 0 {
		metric.BPDiastolic = diaSum / diaN
	}
	if spo2N > 0 {
		metric.SpO2 = spo2Sum / spo2N
	}
	if stressN > 0 {
		metric.Stress = stressSum / stressN
	}
	if maiN > 0 {
		metric.MAI = maiSum / maiN
	}
	if tempN > 0 {
		metric.Temperature = tempSum / float64(tempN)
	}
	if metN > 0 {
		metric.MET = metSum / float64(metN)
	}

	return metric
}
