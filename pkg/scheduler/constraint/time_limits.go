package constraint

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/partition"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// CourseBeginsAfter 起始下限约束：选中课程不得早于阈值开始
type CourseBeginsAfter struct {
	BaseConstraint
}

// NewCourseBeginsAfter 创建起始下限约束
func NewCourseBeginsAfter() *CourseBeginsAfter {
	return &CourseBeginsAfter{BaseConstraint{kind: "course_begins_after"}}
}

type beginsAfterParams struct {
	Start int `json:"start"` // 最早开始时间（当日分钟）
}

// Enrich 注入模型
func (cb *CourseBeginsAfter) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p beginsAfterParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.Start <= 0 {
		return fmt.Errorf("start 必须为正: %d", p.Start)
	}
	for _, course := range SelectCourses(ctx.Data, row) {
		early := earlyLateExpr(ctx, course, row, func(s model.Slot) bool {
			return s.Start < p.Start
		})
		if early.IsEmpty() {
			continue
		}
		ctx.Impose(row, early, ilp.SenseLE, 0, "begins_after_"+shortUUID(course.ID))
	}
	return nil
}

// CompletePartition 把阈值前的时段涂为禁用
func (cb *CourseBeginsAfter) CompletePartition(p *partition.Partition, d *ttmodel.Data,
	row *model.TimetableConstraint, day string, tutorID uuid.UUID) {

	var params beginsAfterParams
	if err := DecodeParams(row, &params); err != nil || params.Start <= 0 {
		return
	}
	if !MatchesWeekday(row, day) || !rowSelectsTutor(row, tutorID) {
		return
	}
	p.AddSlot(partition.TimeInterval{Start: p.Origin().Start, End: params.Start},
		partition.SlotData{Forbidden: true, ConstraintType: cb.Kind()})
}

// CourseEndsBefore 结束上限约束：选中课程不得晚于阈值结束
type CourseEndsBefore struct {
	BaseConstraint
}

// NewCourseEndsBefore 创建结束上限约束
func NewCourseEndsBefore() *CourseEndsBefore {
	return &CourseEndsBefore{BaseConstraint{kind: "course_ends_before"}}
}

type endsBeforeParams struct {
	End int `json:"end"` // 最晚结束时间（当日分钟）
}

// Enrich 注入模型
func (ce *CourseEndsBefore) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p endsBeforeParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.End <= 0 {
		return fmt.Errorf("end 必须为正: %d", p.End)
	}
	for _, course := range SelectCourses(ctx.Data, row) {
		late := earlyLateExpr(ctx, course, row, func(s model.Slot) bool {
			return s.End > p.End
		})
		if late.IsEmpty() {
			continue
		}
		ctx.Impose(row, late, ilp.SenseLE, 0, "ends_before_"+shortUUID(course.ID))
	}
	return nil
}

// CompletePartition 把阈值后的时段涂为禁用
func (ce *CourseEndsBefore) CompletePartition(p *partition.Partition, d *ttmodel.Data,
	row *model.TimetableConstraint, day string, tutorID uuid.UUID) {

	var params endsBeforeParams
	if err := DecodeParams(row, &params); err != nil || params.End <= 0 {
		return
	}
	if !MatchesWeekday(row, day) || !rowSelectsTutor(row, tutorID) {
		return
	}
	p.AddSlot(partition.TimeInterval{Start: params.End, End: p.Origin().End},
		partition.SlotData{Forbidden: true, ConstraintType: ce.Kind()})
}

// DayOff 休息日约束：选中教师（或课程）在选定星期不排课
// 作用星期由约束行的星期选择器给出。
type DayOff struct {
	BaseConstraint
}

// NewDayOff 创建休息日约束
func NewDayOff() *DayOff {
	return &DayOff{BaseConstraint{kind: "day_off"}}
}

// Enrich 注入模型
func (do *DayOff) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	if len(row.Weekdays) == 0 {
		return fmt.Errorf("休息日约束必须指定星期")
	}

	if len(row.TutorIDs) > 0 {
		for _, tutor := range SelectTutors(ctx.Data, row) {
			expr := ilp.NewExpr()
			for key, v := range ctx.TTtutor {
				if key.TutorID == tutor.ID && MatchesWeekday(row, key.Slot.Day) {
					expr.AddTerm(v, 1)
				}
			}
			if expr.IsEmpty() {
				continue
			}
			ctx.Impose(row, expr, ilp.SenseLE, 0, "day_off_"+tutor.Username)
		}
		return nil
	}

	for _, course := range SelectCourses(ctx.Data, row) {
		expr := ctx.CourseExpr(course.ID, model.SlotFilter{Weekdays: row.Weekdays})
		if expr.IsEmpty() {
			continue
		}
		ctx.Impose(row, expr, ilp.SenseLE, 0, "day_off_"+shortUUID(course.ID))
	}
	return nil
}

// CompletePartition 休息日整天涂为禁用
func (do *DayOff) CompletePartition(p *partition.Partition, d *ttmodel.Data,
	row *model.TimetableConstraint, day string, tutorID uuid.UUID) {

	if len(row.Weekdays) == 0 || !rowSelectsTutor(row, tutorID) {
		return
	}
	if !MatchesWeekday(row, day) {
		return
	}
	p.AddSlot(p.Origin(), partition.SlotData{Forbidden: true, ConstraintType: do.Kind()})
}

// earlyLateExpr 课程落在违规时段的变量之和
func earlyLateExpr(ctx *ttmodel.Context, course *model.Course,
	row *model.TimetableConstraint, violates func(model.Slot) bool) *ilp.LinExpr {

	expr := ilp.NewExpr()
	for _, s := range ctx.CourseSlots[course.ID] {
		if !violates(s) || !MatchesWeekday(row, s.Day) {
			continue
		}
		if v, ok := ctx.ScheduledAt(course.ID, s); ok {
			expr.AddTerm(v, 1)
		}
	}
	return expr
}

// rowSelectsTutor 约束行是否作用于该教师（空选择器视为全体）
func rowSelectsTutor(row *model.TimetableConstraint, tutorID uuid.UUID) bool {
	if len(row.TutorIDs) == 0 {
		return true
	}
	for _, id := range row.TutorIDs {
		if id == tutorID {
			return true
		}
	}
	return false
}
