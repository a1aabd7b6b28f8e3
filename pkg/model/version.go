package model

import (
	"github.com/google/uuid"
)

// CanonicalMajor 发布版工作副本编号
const CanonicalMajor = 0

// TimetableVersion 课表版本（(院系, 周期, major) 下的一份可独立寻址的解）
// major 0 为发布版；Stamp 在发布版内容变化时单调递增。
type TimetableVersion struct {
	BaseModel
	DepartmentID uuid.UUID `json:"department_id" db:"department_id"`
	PeriodID     uuid.UUID `json:"period_id" db:"period_id"`
	Major        int       `json:"major" db:"major"`
	Stamp        int64     `json:"stamp" db:"stamp"`
}

// IsCanonical 检查是否为发布版
func (v *TimetableVersion) IsCanonical() bool {
	return v.Major == CanonicalMajor
}

// ScheduledCourse 已排课程（求解输出事实）
// 归属且仅归属一个课表版本；删除版本时级联删除。
type ScheduledCourse struct {
	BaseModel
	CourseID  uuid.UUID  `json:"course_id" db:"course_id"`
	VersionID uuid.UUID  `json:"version_id" db:"version_id"`
	Major     int        `json:"major" db:"major"`
	Day       string     `json:"day" db:"day"`
	Start     int        `json:"start_time" db:"start_time"`
	RoomID    *uuid.UUID `json:"room_id" db:"room_id"`   // 可为空（远程授课）
	TutorID   *uuid.UUID `json:"tutor_id" db:"tutor_id"` // 求解后落定的主讲
	Number    int        `json:"number" db:"number"`     // 模块内的顺序编号
}

// Slot 返回已排课程占用的时间粒
func (sc *ScheduledCourse) Slot(duration int, periodID uuid.UUID) Slot {
	return NewSlot(sc.Day, sc.Start, duration, periodID)
}

// CourseModification 发布版变更历史（换版时清理）
type CourseModification struct {
	BaseModel
	CourseID     uuid.UUID `json:"course_id" db:"course_id"`
	DepartmentID uuid.UUID `json:"department_id" db:"department_id"`
	PeriodID     uuid.UUID `json:"period_id" db:"period_id"`
	OldDay       string    `json:"old_day" db:"old_day"`
	OldStart     int       `json:"old_start" db:"old_start"`
	Initiator    string    `json:"initiator" db:"initiator"`
}
