package stream

import (
	"testing"

	"wisefido-band/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidate_AllZeroSampleIsValid(t *testing.T) {
	// 全零样本表示"无数据"，不是异常
	sample := &models.RealTimeSample{}
	assert.NoError(t, Validate(sample))
}

func TestValidate_NormalVitals(t *testing.T) {
	sample := &models.RealTimeSample{
		HeartRate:    72,
		BPSystolic:   120,
		BPDiastolic:  80,
		SpO2:         98,
		Temperature:  36.5,
		BloodGlucose: 95.0,
	}
	assert.NoError(t, Validate(sample))
}

func TestValidate_HeartRateZeroIsAbsent(t *testing.T) {
	// 心率为 0 表示未测量，即使其他字段正常也不报错
	sample := &models.RealTimeSample{
		HeartRate: 0,
		Steps:     500,
	}
	assert.NoError(t, Validate(sample))
}

func TestValidate_HeartRateOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		hr   int
		ok   bool
	}{
		{"below minimum", 25, false},
		{"at minimum", 30, true},
		{"at maximum", 220, true},
		{"above maximum", 230, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := &models.RealTimeSample{HeartRate: tt.hr}
			err := Validate(sample)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "heart rate")
			}
		})
	}
}

func TestValidate_BloodPressureRange(t *testing.T) {
	assert.Error(t, Validate(&models.RealTimeSample{BPSystolic: 300}))
	assert.Error(t, Validate(&models.RealTimeSample{BPSystolic: 50}))
	assert.Error(t, Validate(&models.RealTimeSample{BPDiastolic: 20}))
	assert.Error(t, Validate(&models.RealTimeSample{BPDiastolic: 160}))
	assert.NoError(t, Validate(&models.RealTimeSample{BPSystolic: 120, BPDiastolic: 80}))
}

func TestValidate_SpO2Range(t *testing.T) {
	assert.Error(t, Validate(&models.RealTimeSample{SpO2: 60}))
	assert.NoError(t, Validate(&models.RealTimeSample{SpO2: 70}))
	assert.NoError(t, Validate(&models.RealTimeSample{SpO2: 100}))
	assert.Error(t, Validate(&models.RealTimeSample{SpO2: 101}))
}

func TestValidate_TemperatureRange(t *testing.T) {
	assert.Error(t, Validate(&models.RealTimeSample{Temperature: 34.5}))
	assert.NoError(t, Validate(&models.RealTimeSample{Temperature: 35.0}))
	assert.NoError(t, Validate(&models.RealTimeSample{Temperature: 41.0}))
	assert.Error(t, Validate(&models.RealTimeSample{Temperature: 42.0}))
}

func TestValidate_BloodGlucoseRange(t *testing.T) {
	assert.NoError(t, Validate(&models.RealTimeSample{BloodGlucose: 0}))
	assert.Error(t, Validate(&models.RealTimeSample{BloodGlucose: 30}))
	assert.NoError(t, Validate(&models.RealTimeSample{BloodGlucose: 40}))
	assert.NoError(t, Validate(&models.RealTimeSample{BloodGlucose: 400}))
	assert.Error(t, Validate(&models.RealTimeSample{BloodGlucose: 450}))
}

func TestValidate_OneBadFieldRejectsWholeSample(t *testing.T) {
	// 任一字段越界则整个样本被拒绝，不做部分更新
	sample := &models.RealTimeSample{
		HeartRate:  72,
		BPSystolic: 120,
		SpO2:       55, // 越界
		Steps:      1000,
	}
	err := Validate(sample)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SpO2")
}
