package band

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFrame() []byte {
	frame := make([]byte, frameLen)
	frame[0] = frameHeader
	frame[1] = 72                                  // 心率
	frame[2] = 120                                 // 收缩压
	frame[3] = 80                                  // 舒张压
	frame[4] = 98                                  // 血氧
	binary.LittleEndian.PutUint16(frame[5:7], 365) // 体温 36.5
	binary.LittleEndian.PutUint16(frame[7:9], 950) // 血糖 95.0
	binary.LittleEndian.PutUint32(frame[9:13], 12345)
	binary.LittleEndian.PutUint16(frame[13:15], 320)
	binary.LittleEndian.PutUint16(frame[15:17], 8500)
	frame[17] = 30
	binary.LittleEndian.PutUint16(frame[18:20], 15) // MET 1.5
	frame[20] = 55
	binary.LittleEndian.PutUint16(frame[21:23], 420)
	binary.LittleEndian.PutUint16(frame[23:25], 120)
	binary.LittleEndian.PutUint16(frame[25:27], 280)
	frame[27] = 1
	return frame
}

func TestDecodeRealtimeFrame_FullFrame(t *testing.T) {
	sample, err := DecodeRealtimeFrame(buildFrame(), "AA:BB:CC")
	require.NoError(t, err)

	assert.Equal(t, 72, sample.HeartRate)
	assert.Equal(t, 120, sample.BPSystolic)
	assert.Equal(t, 80, sample.BPDiastolic)
	assert.Equal(t, 98, sample.SpO2)
	assert.Equal(t, 36.5, sample.Temperature)
	assert.Equal(t, 95.0, sample.BloodGlucose)
	assert.Equal(t, 12345, sample.Steps)
	assert.Equal(t, 320, sample.Calories)
	assert.Equal(t, 8500, sample.Distance)
	assert.Equal(t, 30, sample.Stress)
	assert.Equal(t, 1.5, sample.MET)
	assert.Equal(t, 55, sample.MAI)
	assert.Equal(t, 420, sample.TotalSleep)
	assert.Equal(t, 120, sample.DeepSleep)
	assert.Equal(t, 280, sample.LightSleep)
	assert.True(t, sample.IsWearing)
	assert.Equal(t, "AA:BB:CC", sample.DeviceID)
	assert.False(t, sample.Timestamp.IsZero())
}

func TestDecodeRealtimeFrame_ZeroFieldsMeanAbsent(t *testing.T) {
	frame := make([]byte, frameLen)
	frame[0] = frameHeader

	sample, err := DecodeRealtimeFrame(frame, "AA:BB")
	require.NoError(t, err)
	assert.Equal(t, 0, sample.HeartRate)
	assert.Equal(t, 0.0, sample.BloodGlucose)
	assert.False(t, sample.IsWearing)
}

func TestDecodeRealtimeFrame_TooShort(t *testing.T) {
	_, err := DecodeRealtimeFrame([]byte{frameHeader, 72}, "AA:BB")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestDecodeRealtimeFrame_BadHeader(t *testing.T) {
	frame := buildFrame()
	frame[0] = 0xAA
	_, err := DecodeRealtimeFrame(frame, "AA:BB")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}
