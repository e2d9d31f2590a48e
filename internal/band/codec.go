package band

import (
	"encoding/binary"
	"fmt"
	"time"

	"wisefido-band/internal/models"
)

// 厂家实时帧格式（小端）：
//
//	偏移  长度  字段
//	0     1    帧头 0x55
//	1     1    心率 bpm
//	2     1    收缩压 mmHg
//	3     1    舒张压 mmHg
//	4     1    血氧 %
//	5     2    体温 ×10 ℃
//	7     2    血糖 ×10 mg/dL（0 = 无数据）
//	9     4    步数
//	13    2    卡路里 kcal
//	15    2    距离 m
//	17    1    压力指数
//	18    2    MET ×10
//	20    1    MAI
//	21    2    总睡眠 min
//	23    2    深睡 min
//	25    2    浅睡 min
//	27    1    佩戴标志（1 = 佩戴中）
const (
	frameHeader = 0x55
	frameLen    = 28
)

// DecodeRealtimeFrame 把厂家通知帧解码为实时快照
// 时间戳取本地接收时间：手环不回传采样时钟
func DecodeRealtimeFrame(data []byte, deviceID string) (*models.RealTimeSample, error) {
	if len(data) < frameLen {
		return nil, fmt.Errorf("realtime frame too short: %d bytes", len(data))
	}
	if data[0] != frameHeader {
		return nil, fmt.Errorf("unexpected frame header: 0x%02x", data[0])
	}

	sample := &models.RealTimeSample{
		Timestamp:    time.Now(),
		HeartRate:    int(data[1]),
		BPSystolic:   int(data[2]),
		BPDiastolic:  int(data[3]),
		SpO2:         int(data[4]),
		Temperature:  float64(binary.LittleEndian.Uint16(data[5:7])) / 10.0,
		BloodGlucose: float64(binary.LittleEndian.Uint16(data[7:9])) / 10.0,
		Steps:        int(binary.LittleEndian.Uint32(data[9:13])),
		Calories:     int(binary.LittleEndian.Uint16(data[13:15])),
		Distance:     int(binary.LittleEndian.Uint16(data[15:17])),
		Stress:       int(data[17]),
		MET:          float64(binary.LittleEndian.Uint16(data[18:20])) / 10.0,
		MAI:          int(data[20]),
		TotalSleep:   int(binary.LittleEndian.Uint16(data[21:23])),
		DeepSleep:    int(binary.LittleEndian.Uint16(data[23:25])),
		LightSleep:   int(binary.LittleEndian.Uint16(data[25:27])),
		IsWearing:    data[27] == 1,
		DeviceID:     deviceID,
	}

	return sample, nil
}
