package constraint

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// registry 封闭注册表：kind 标签 -> 约束工厂
// 新增约束类型必须在此显式登记，未知标签一律报错。
var registry = map[string]func() ttmodel.Enricher{
	"lunch_break":               func() ttmodel.Enricher { return NewLunchBreak() },
	"min_busy_half_days":        func() ttmodel.Enricher { return NewMinBusyHalfDays() },
	"stabilization":             func() ttmodel.Enricher { return NewStabilization() },
	"not_alone_for_course_type": func() ttmodel.Enricher { return NewNotAloneForCourseType() },
	"curfew":                    func() ttmodel.Enricher { return NewCurfew() },
	"presence_cap":              func() ttmodel.Enricher { return NewPresenceCap() },
	"room_sort":                 func() ttmodel.Enricher { return NewRoomSort() },
	"course_begins_after":       func() ttmodel.Enricher { return NewCourseBeginsAfter() },
	"course_ends_before":        func() ttmodel.Enricher { return NewCourseEndsBefore() },
	"day_off":                   func() ttmodel.Enricher { return NewDayOff() },
	"limit_simultaneous":        func() ttmodel.Enricher { return NewLimitSimultaneous() },
	"precedence":                func() ttmodel.Enricher { return NewPrecedence() },
}

// Build 按 kind 标签实例化约束
// 作为 ttmodel.ConstraintBuilder 注入求解引擎。
func Build(row *model.TimetableConstraint) (ttmodel.Enricher, error) {
	factory, ok := registry[row.Kind]
	if !ok {
		return nil, fmt.Errorf("未知约束类型 '%s'", row.Kind)
	}
	return factory(), nil
}

// Kinds 返回已登记的约束类型标签
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}
