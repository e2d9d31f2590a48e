package service

import (
	"encoding/json"
	"testing"
	"time"

	"wisefido-band/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMetricDTO_ZeroFieldsOmitted(t *testing.T) {
	m := &models.HealthMetric{
		WindowStart: time.UnixMilli(1756000000000),
		DeviceID:    "AA:BB:CC:DD:EE:FF",
		HeartRate:   72,
		Steps:       500,
		// 其余生命体征为零：无数据
	}

	dto := ToMetricDTO(m, "user-1")
	data, err := json.Marshal(dto)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "heartRate")
	assert.Contains(t, raw, "steps")
	assert.NotContains(t, raw, "spO2")
	assert.NotContains(t, raw, "temperature")
	assert.NotContains(t, raw, "bloodGlucose")
	assert.NotContains(t, raw, "bpSystolic")

	// 身份与指纹字段始终存在
	assert.Equal(t, "user-1", raw["userId"])
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", raw["deviceId"])
	assert.NotEmpty(t, raw["recordHash"])
}

func TestToMetricDTO_AllFieldsPresent(t *testing.T) {
	m := &models.HealthMetric{
		WindowStart:  time.UnixMilli(1756000000000),
		DeviceID:     "AA:BB",
		HeartRate:    72,
		BPSystolic:   120,
		BPDiastolic:  80,
		SpO2:         98,
		Temperature:  36.5,
		BloodGlucose: 95.0,
		Stress:       30,
		MET:          1.5,
		MAI:          40,
		Steps:        1000,
		Calories:     50,
		Distance:     800,
		TotalSleep:   420,
		DeepSleep:    120,
		LightSleep:   300,
		IsWearing:    true,
	}

	dto := ToMetricDTO(m, "user-1")
	require.NotNil(t, dto.HeartRate)
	assert.Equal(t, 72, *dto.HeartRate)
	require.NotNil(t, dto.Temperature)
	assert.Equal(t, 36.5, *dto.Temperature)
	require.NotNil(t, dto.TotalSleep)
	assert.Equal(t, 420, *dto.TotalSleep)
	assert.True(t, dto.IsWearing)
	assert.Equal(t, int64(1756000000000), dto.Timestamp)
}

func TestRecordHash_Deterministic(t *testing.T) {
	h1 := RecordHash(1756000000000, 72, 500, "AA:BB")
	h2 := RecordHash(1756000000000, 72, 500, "AA:BB")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestRecordHash_DiffersByInput(t *testing.T) {
	base := RecordHash(1756000000000, 72, 500, "AA:BB")
	assert.NotEqual(t, base, RecordHash(1756000000001, 72, 500, "AA:BB"))
	assert.NotEqual(t, base, RecordHash(1756000000000, 73, 500, "AA:BB"))
	assert.NotEqual(t, base, RecordHash(1756000000000, 72, 501, "AA:BB"))
	assert.NotEqual(t, base, RecordHash(1756000000000, 72, 500, "CC:DD"))
}
