package model

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// CourseType 课程类型（讲座/习题课/实验课等）
type CourseType struct {
	BaseModel
	Name         string    `json:"name" db:"name"`
	DepartmentID uuid.UUID `json:"department_id" db:"department_id"`
	Duration     int       `json:"duration" db:"duration"` // 分钟
	// GroupKinds 该课程类型兼容的学生组类别
	GroupKinds []GroupKind `json:"group_kinds" db:"group_kinds"`
}

// Module 教学模块
type Module struct {
	BaseModel
	Name        string    `json:"name" db:"name"`
	Abbrev      string    `json:"abbrev" db:"abbrev"`
	TrainProgID uuid.UUID `json:"train_prog_id" db:"train_prog_id"`
	PeriodID    uuid.UUID `json:"period_id" db:"period_id"`
}

// Tutor 教师
type Tutor struct {
	BaseModel
	Username      string      `json:"username" db:"username"`
	FullName      string      `json:"full_name" db:"full_name"`
	DepartmentIDs []uuid.UUID `json:"department_ids" db:"department_ids"`
}

// Course 课程（一次待排的教学单元）
// 不变式：课程学生组所属培养方案必须与模块同院系。
type Course struct {
	BaseModel
	TypeID     uuid.UUID  `json:"type_id" db:"type_id"`
	ModuleID   uuid.UUID  `json:"module_id" db:"module_id"`
	PeriodID   uuid.UUID  `json:"period_id" db:"period_id"`
	RoomTypeID uuid.UUID  `json:"room_type_id" db:"room_type_id"`
	TutorID    *uuid.UUID `json:"tutor_id" db:"tutor_id"` // 主讲教师，可未指定
	// SuppTutorIDs 辅助教师（与主讲同时占用）
	SuppTutorIDs []uuid.UUID `json:"supp_tutor_ids" db:"supp_tutor_ids"`
	GroupIDs     []uuid.UUID `json:"group_ids" db:"group_ids"`
	Duration     int         `json:"duration" db:"duration"` // 分钟
}

// HasTutor 检查课程是否已指定主讲教师
func (c *Course) HasTutor() bool {
	return c.TutorID != nil && *c.TutorID != uuid.Nil
}

// GroupKey 返回学生组集合的规范化键，与切片顺序无关
func GroupKey(ids []uuid.UUID) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// HasGroup 检查课程是否面向指定学生组
func (c *Course) HasGroup(groupID uuid.UUID) bool {
	for _, gid := range c.GroupIDs {
		if gid == groupID {
			return true
		}
	}
	return false
}
