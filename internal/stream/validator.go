package stream

import (
	"fmt"

	"wisefido-band/internal/models"
)

// 生理量程表：零值约定为"无数据"，不参与校验；
// 任何非零字段越界都会导致整个样本被丢弃，不做部分更新
const (
	heartRateMin = 30
	heartRateMax = 220

	bpSystolicMin  = 60
	bpSystolicMax  = 280
	bpDiastolicMin = 30
	bpDiastolicMax = 150

	spO2Min = 70
	spO2Max = 100

	temperatureMin = 35.0
	temperatureMax = 41.0

	bloodGlucoseMin = 40.0
	bloodGlucoseMax = 400.0
)

// Validate 校验一个实时样本
// 返回 nil 表示样本整体可接受；否则返回第一个越界字段的描述
func Validate(s *models.RealTimeSample) error {
	if s.HeartRate != 0 && (s.HeartRate < heartRateMin || s.HeartRate > heartRateMax) {
		return fmt.Errorf("heart rate %d out of range (%d-%d bpm)", s.HeartRate, heartRateMin, heartRateMax)
	}
	if s.BPSystolic != 0 && (s.BPSystolic < bpSystolicMin || s.BPSystolic > bpSystolicMax) {
		return fmt.Errorf("systolic pressure %d out of range (%d-%d mmHg)", s.BPSystolic, bpSystolicMin, bpSystolicMax)
	}
	if s.BPDiastolic != 0 && (s.BPDiastolic < bpDiastolicMin || s.BPDiastolic > bpDiastolicMax) {
		return fmt.Errorf("diastolic pressure %d out of range (%d-%d mmHg)", s.BPDiastolic, bpDiastolicMin, bpDiastolicMax)
	}
	if s.SpO2 != 0 && (s.SpO2 < spO2Min || s.SpO2 > spO2Max) {
		return fmt.Errorf("SpO2 %d out of range (%d-%d%%)", s.SpO2, spO2Min, spO2Max)
	}
	if s.Temperature != 0 && (s.Temperature < temperatureMin || s.Temperature > temperatureMax) {
		return fmt.Errorf("temperature %.1f out of range (%.1f-%.1f°C)", s.Temperature, temperatureMin, temperatureMax)
	}
	if s.BloodGlucose != 0 && (s.BloodGlucose < bloodGlucoseMin || s.BloodGlucose > bloodGlucoseMax) {
		return fmt.Errorf("blood glucose %.1f out of range (%.1f-%.1f mg/dL)", s.BloodGlucose, bloodGlucoseMin, bloodGlucoseMax)
	}
	return nil
}
