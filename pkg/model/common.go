// Package model 定义排课引擎的核心数据模型
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// TimeSettings 院系作息设置（一天内的时间均以分钟计）
type TimeSettings struct {
	DayStart       int            `json:"day_start"`       // 一天开始（如 8:00 = 480）
	MorningEnd     int            `json:"morning_end"`     // 上午结束
	AfternoonStart int            `json:"afternoon_start"` // 下午开始
	DayEnd         int            `json:"day_end"`         // 一天结束
	Granularity    int            `json:"granularity"`     // 排课粒度（分钟）
	Weekdays       []time.Weekday `json:"weekdays"`        // 工作日
}

// DefaultTimeSettings 返回默认作息设置
func DefaultTimeSettings() TimeSettings {
	return TimeSettings{
		DayStart:       8 * 60,
		MorningEnd:     12*60 + 30,
		AfternoonStart: 14 * 60,
		DayEnd:         18*60 + 45,
		Granularity:    15,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

// HalfDayDuration 返回较长的半天时长（用于半天装箱下界）
func (s TimeSettings) HalfDayDuration() int {
	morning := s.MorningEnd - s.DayStart
	afternoon := s.DayEnd - s.AfternoonStart
	if morning > afternoon {
		return morning
	}
	return afternoon
}

// Department 院系
type Department struct {
	BaseModel
	Name     string       `json:"name" db:"name"`
	Abbrev   string       `json:"abbrev" db:"abbrev"`
	Settings TimeSettings `json:"settings" db:"settings"`
	// VisioMode 为真时启用远程授课相关约束
	VisioMode bool `json:"visio_mode" db:"visio_mode"`
	// AllowRoomless 为真时允许课程不占用教室（纯远程）
	AllowRoomless bool `json:"allow_roomless" db:"allow_roomless"`
}

// PeriodMode 排课周期模式
type PeriodMode string

const (
	PeriodWeek   PeriodMode = "week"
	PeriodDay    PeriodMode = "day"
	PeriodMonth  PeriodMode = "month"
	PeriodCustom PeriodMode = "custom"
)

// SchedulingPeriod 排课周期（定义后不可变）
type SchedulingPeriod struct {
	BaseModel
	Name      string     `json:"name" db:"name"`
	StartDate string     `json:"start_date" db:"start_date"` // YYYY-MM-DD
	EndDate   string     `json:"end_date" db:"end_date"`
	Mode      PeriodMode `json:"mode" db:"mode"`
}

// ContainsDate 检查日期是否在周期内
func (p *SchedulingPeriod) ContainsDate(date string) bool {
	return date >= p.StartDate && date <= p.EndDate
}

// Dates 枚举周期内属于给定工作日集合的日期
func (p *SchedulingPeriod) Dates(weekdays []time.Weekday) []string {
	start, err1 := time.Parse(DateLayout, p.StartDate)
	end, err2 := time.Parse(DateLayout, p.EndDate)
	if err1 != nil || err2 != nil {
		return nil
	}

	allowed := make(map[time.Weekday]bool, len(weekdays))
	for _, wd := range weekdays {
		allowed[wd] = true
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(allowed) == 0 || allowed[d.Weekday()] {
			dates = append(dates, d.Format(DateLayout))
		}
	}
	return dates
}

// WeekdayOf 返回日期对应的星期
func WeekdayOf(date string) (time.Weekday, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Sunday, fmt.Errorf("日期格式无效 '%s': %w", date, err)
	}
	return t.Weekday(), nil
}

// MinutesToClock 将分钟数格式化为 HH:MM
func MinutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
