package constraint

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Precedence 先后约束：后继课程必须整体晚于前驱课程
// 按时间粒的严格偏序（IsAfter）逐对禁用非法组合。
type Precedence struct {
	BaseConstraint
}

// NewPrecedence 创建先后约束
func NewPrecedence() *Precedence {
	return &Precedence{BaseConstraint{kind: "precedence"}}
}

type precedenceParams struct {
	FirstCourseID  string `json:"first_course_id"`
	SecondCourseID string `json:"second_course_id"`
	// MinGap 两课之间的最短间隔（分钟），可为 0
	MinGap int `json:"min_gap"`
}

// Enrich 注入模型
func (pc *Precedence) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p precedenceParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	firstID, err := ParseUUID("first_course_id", p.FirstCourseID)
	if err != nil {
		return err
	}
	secondID, err := ParseUUID("second_course_id", p.SecondCourseID)
	if err != nil {
		return err
	}
	if p.MinGap < 0 {
		return fmt.Errorf("min_gap 不得为负: %d", p.MinGap)
	}
	first := ctx.Data.Course(firstID)
	second := ctx.Data.Course(secondID)
	if first == nil || second == nil {
		return fmt.Errorf("先后约束引用的课程不存在")
	}

	for _, s1 := range ctx.CourseSlots[first.ID] {
		v1, ok := ctx.ScheduledAt(first.ID, s1)
		if !ok {
			continue
		}
		for _, s2 := range ctx.CourseSlots[second.ID] {
			if precedes(s1, s2, p.MinGap) {
				continue
			}
			v2, ok := ctx.ScheduledAt(second.ID, s2)
			if !ok {
				continue
			}
			ctx.Impose(row, ilp.SumVars(v1, v2), ilp.SenseLE, 1,
				fmt.Sprintf("precedence_%s_%d_%d", s1.Day, s1.Start, s2.Start))
		}
	}
	return nil
}

// IsSatisfied 事后审计
func (pc *Precedence) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p precedenceParams
	if err := DecodeParams(row, &p); err != nil {
		return false
	}
	firstID, err1 := ParseUUID("first_course_id", p.FirstCourseID)
	secondID, err2 := ParseUUID("second_course_id", p.SecondCourseID)
	if err1 != nil || err2 != nil {
		return false
	}

	var s1, s2 *model.Slot
	for _, sc := range scheduled {
		course := d.Course(sc.CourseID)
		if course == nil {
			continue
		}
		slot := sc.Slot(course.Duration, course.PeriodID)
		switch sc.CourseID {
		case firstID:
			s1 = &slot
		case secondID:
			s2 = &slot
		}
	}
	if s1 == nil || s2 == nil {
		return true
	}
	return precedes(*s1, *s2, p.MinGap)
}

// precedes 检查 s2 是否在 s1 之后且满足最短间隔
func precedes(s1, s2 model.Slot, minGap int) bool {
	if !s2.IsAfter(s1) {
		return false
	}
	if s1.Day == s2.Day && s2.Start-s1.End < minGap {
		return false
	}
	return true
}
