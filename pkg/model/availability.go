package model

import (
	"github.com/google/uuid"
)

// 可用度取值范围：0 表示完全不可用，8 表示最优先
const (
	AvailabilityForbidden = 0
	AvailabilityMax       = 8
)

// Availability 可用度声明（教师或教室在某日某段时间的可用程度）
// 带日期的声明优先；无日期声明时由数据层回退到默认周模板。
type Availability struct {
	BaseModel
	SubjectID uuid.UUID `json:"subject_id" db:"subject_id"` // 教师或教室
	Day       string    `json:"day" db:"day"`
	Start     int       `json:"start_time" db:"start_time"`
	End       int       `json:"end_time" db:"end_time"`
	Value     int       `json:"value" db:"value"`
}

// IsForbidden 检查是否完全不可用
func (a *Availability) IsForbidden() bool {
	return a.Value == AvailabilityForbidden
}

// Covers 检查可用度声明是否完整覆盖时间粒
func (a *Availability) Covers(s Slot) bool {
	return a.Day == s.Day && a.Start <= s.Start && s.End <= a.End
}

// Overlaps 检查可用度声明是否与时间粒重叠
func (a *Availability) Overlaps(s Slot) bool {
	return a.Day == s.Day && a.Start < s.End && s.Start < a.End
}

// RoomReservation 外部系统的教室预订（视为硬性不可用）
type RoomReservation struct {
	BaseModel
	RoomID uuid.UUID `json:"room_id" db:"room_id"`
	Day    string    `json:"day" db:"day"`
	Start  int       `json:"start_time" db:"start_time"`
	End    int       `json:"end_time" db:"end_time"`
	Title  string    `json:"title" db:"title"`
}

// Overlaps 检查预订是否与时间粒重叠
func (r *RoomReservation) Overlaps(s Slot) bool {
	return r.Day == s.Day && r.Start < s.End && s.Start < r.End
}
