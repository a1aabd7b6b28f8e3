package ttmodel

import (
	"github.com/kebiao/kebiao/pkg/model"
)

// GenerateSlots 枚举周期内指定时长的候选时间粒
// 起点按粒度对齐，整天连续（午休由约束处理，不在此处挖空）。
func GenerateSlots(settings model.TimeSettings, periods []*model.SchedulingPeriod, duration int) []model.Slot {
	var slots []model.Slot
	for _, p := range periods {
		for _, day := range p.Dates(settings.Weekdays) {
			for start := settings.DayStart; start+duration <= settings.DayEnd; start += settings.Granularity {
				slots = append(slots, model.NewSlot(day, start, duration, p.ID))
			}
		}
	}
	return slots
}

// GenerateGranules 枚举粒度大小的原子时间粒
// 原子粒是互斥约束的计数单位：任何资源在每个原子粒上至多被占用一次。
func GenerateGranules(settings model.TimeSettings, periods []*model.SchedulingPeriod) []model.Slot {
	return GenerateSlots(settings, periods, settings.Granularity)
}
