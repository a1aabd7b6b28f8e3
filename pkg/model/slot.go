package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Slot 排课时间粒（半开区间 [Start, End)，附带日期与周期）
// 相等性与重叠按结构定义，与实体身份无关。
type Slot struct {
	Day      string    `json:"day"` // YYYY-MM-DD
	Start    int       `json:"start_time"`
	End      int       `json:"end_time"`
	PeriodID uuid.UUID `json:"period_id"`
}

// NewSlot 创建时间粒
func NewSlot(day string, start, duration int, periodID uuid.UUID) Slot {
	return Slot{Day: day, Start: start, End: start + duration, PeriodID: periodID}
}

// Duration 返回时长（分钟）
func (s Slot) Duration() int {
	return s.End - s.Start
}

// IsSimultaneousTo 检查两个时间粒是否重叠
// 这是全系统检测一切冲突的唯一原语。
func (s Slot) IsSimultaneousTo(other Slot) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// IsAfter 检查 s 是否整体晚于 other（other 结束不晚于 s 开始）
// 只是严格偏序：重叠的时间粒互不可比，排序前必须去重。
func (s Slot) IsAfter(other Slot) bool {
	if s.Day != other.Day {
		return s.Day > other.Day
	}
	return s.Start >= other.End
}

// Weekday 返回时间粒所在星期
func (s Slot) Weekday() time.Weekday {
	wd, _ := WeekdayOf(s.Day)
	return wd
}

// IsAfternoon 根据院系作息判断是否属于下午
func (s Slot) IsAfternoon(settings TimeSettings) bool {
	return s.Start >= settings.AfternoonStart
}

// SameAs 检查两个时间粒是否为"跨周期同槽"（星期与起止相同，忽略日期与周期）
// 用于多周期稳定化约束。
func (s Slot) SameAs(other Slot) bool {
	return s.Weekday() == other.Weekday() && s.Start == other.Start && s.End == other.End
}

// String 返回可读表示
func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, MinutesToClock(s.Start), MinutesToClock(s.End))
}

// SlotFilter 时间粒过滤器，各条件按"与"组合；零值条件不参与过滤
type SlotFilter struct {
	Day            *string
	Weekdays       []time.Weekday
	Afternoon      *bool
	SimultaneousTo *Slot
	StartsAfter    *int // Start >= 值
	EndsBefore     *int // End <= 值
	PeriodID       *uuid.UUID
}

// Match 检查单个时间粒是否满足过滤器
func (f SlotFilter) Match(s Slot, settings TimeSettings) bool {
	if f.Day != nil && s.Day != *f.Day {
		return false
	}
	if len(f.Weekdays) > 0 && !lo.Contains(f.Weekdays, s.Weekday()) {
		return false
	}
	if f.Afternoon != nil && s.IsAfternoon(settings) != *f.Afternoon {
		return false
	}
	if f.SimultaneousTo != nil && !s.IsSimultaneousTo(*f.SimultaneousTo) {
		return false
	}
	if f.StartsAfter != nil && s.Start < *f.StartsAfter {
		return false
	}
	if f.EndsBefore != nil && s.End > *f.EndsBefore {
		return false
	}
	if f.PeriodID != nil && s.PeriodID != *f.PeriodID {
		return false
	}
	return true
}

// FilterSlots 过滤时间粒集合
func FilterSlots(slots []Slot, f SlotFilter, settings TimeSettings) []Slot {
	return lo.Filter(slots, func(s Slot, _ int) bool {
		return f.Match(s, settings)
	})
}

// SlotDays 返回时间粒集合涉及的日期（去重、保序）
func SlotDays(slots []Slot) []string {
	return lo.Uniq(lo.Map(slots, func(s Slot, _ int) string { return s.Day }))
}
