package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxWeight 软约束权重上限
const MaxWeight = 8

// HardLocalWeight 未配置权重的约束折算成的内部权重
// 取 10（大于 8/8=1 的任何软约束折算值），保证"看似硬但配置成软"的
// 默认约束压过一切普通软约束。
const HardLocalWeight = 10.0

// TimetableConstraint 存储态的排课约束行
// Weight 为空表示硬约束（必须精确满足）；
// 选择器字段为空表示"该维度不限"，而不是空集。
type TimetableConstraint struct {
	BaseModel
	DepartmentID uuid.UUID  `json:"department_id" db:"department_id"`
	PeriodID     *uuid.UUID `json:"period_id" db:"period_id"` // 可不限周期
	Kind         string     `json:"kind" db:"kind"`
	Title        string     `json:"title" db:"title"`
	Weight       *int       `json:"weight" db:"weight"` // 1..MaxWeight，空为硬约束
	IsActive     bool       `json:"is_active" db:"is_active"`
	Params       JSONMap    `json:"params" db:"params"`

	// 选择器
	TrainProgIDs  []uuid.UUID    `json:"train_prog_ids" db:"train_prog_ids"`
	ModuleIDs     []uuid.UUID    `json:"module_ids" db:"module_ids"`
	GroupIDs      []uuid.UUID    `json:"group_ids" db:"group_ids"`
	TutorIDs      []uuid.UUID    `json:"tutor_ids" db:"tutor_ids"`
	CourseTypeIDs []uuid.UUID    `json:"course_type_ids" db:"course_type_ids"`
	RoomTypeIDs   []uuid.UUID    `json:"room_type_ids" db:"room_type_ids"`
	Weekdays      []time.Weekday `json:"weekdays" db:"weekdays"`
}

// IsHard 检查是否为硬约束
func (c *TimetableConstraint) IsHard() bool {
	return c.Weight == nil
}

// LocalWeight 返回折算权重
// 硬约束返回固定值 HardLocalWeight；软约束返回 weight/MaxWeight。
func (c *TimetableConstraint) LocalWeight() float64 {
	if c.Weight == nil {
		return HardLocalWeight
	}
	w := *c.Weight
	if w < 1 {
		w = 1
	}
	if w > MaxWeight {
		w = MaxWeight
	}
	return float64(w) / float64(MaxWeight)
}

// AppliesToPeriod 检查约束是否作用于指定周期
func (c *TimetableConstraint) AppliesToPeriod(periodID uuid.UUID) bool {
	return c.PeriodID == nil || *c.PeriodID == periodID
}
