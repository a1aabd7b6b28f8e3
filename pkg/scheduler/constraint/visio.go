package constraint

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Curfew 宵禁约束（远程模式专属）：晚于阈值结束的课必须转为远程，
// 不得占用实体教室
//
// 院系未开远程模式时整条约束静默不生效。
type Curfew struct {
	BaseConstraint
}

// NewCurfew 创建宵禁约束
func NewCurfew() *Curfew {
	return &Curfew{BaseConstraint{kind: "curfew"}}
}

type curfewParams struct {
	// After 阈值（当日分钟）：结束时间晚于该值的课受限
	After int `json:"after"`
}

// Enrich 注入模型
func (cf *Curfew) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p curfewParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.After <= 0 {
		return fmt.Errorf("after 必须为正: %d", p.After)
	}
	if !ctx.Data.Department.VisioMode {
		return nil
	}
	if !ctx.Data.Department.AllowRoomless {
		return fmt.Errorf("院系未允许无教室授课，宵禁无法成立")
	}

	selected := make(map[string]bool)
	for _, c := range SelectCourses(ctx.Data, row) {
		selected[c.ID.String()] = true
	}

	for key, v := range ctx.TTroom {
		if !selected[key.CourseID.String()] {
			continue
		}
		if key.Slot.End <= p.After || !MatchesWeekday(row, key.Slot.Day) {
			continue
		}
		ctx.Impose(row, ilp.Term(v, 1), ilp.SenseLE, 0,
			fmt.Sprintf("curfew_%s_%d", key.Slot.Day, key.Slot.Start))
	}
	return nil
}

// IsSatisfied 事后审计：阈值后的课不占实体教室
func (cf *Curfew) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p curfewParams
	if err := DecodeParams(row, &p); err != nil {
		return false
	}
	if !d.Department.VisioMode {
		return true
	}
	for _, sc := range scheduled {
		course := d.Course(sc.CourseID)
		if course == nil || !MatchesWeekday(row, sc.Day) {
			continue
		}
		if sc.Start+course.Duration > p.After && sc.RoomID != nil {
			return false
		}
	}
	return true
}

// PresenceCap 到场上限（远程模式专属）：任一时刻被选课程中占用
// 实体教室的比例不得超过阈值百分比
//
// 院系未开远程模式时整条约束静默不生效。
type PresenceCap struct {
	BaseConstraint
}

// NewPresenceCap 创建到场上限约束
func NewPresenceCap() *PresenceCap {
	return &PresenceCap{BaseConstraint{kind: "presence_cap"}}
}

type presenceCapParams struct {
	// Percent 允许到场的课程比例上限（0..100）
	Percent int `json:"percent"`
}

// Enrich 注入模型
func (pc *PresenceCap) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p presenceCapParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.Percent < 0 || p.Percent > 100 {
		return fmt.Errorf("percent 必须在 0..100 之间: %d", p.Percent)
	}
	if !ctx.Data.Department.VisioMode {
		return nil
	}
	if !ctx.Data.Department.AllowRoomless {
		return fmt.Errorf("院系未允许无教室授课，到场上限无法成立")
	}

	selected := make(map[uuid.UUID]bool)
	for _, c := range SelectCourses(ctx.Data, row) {
		selected[c.ID] = true
	}
	ratio := float64(p.Percent) / 100

	for _, g := range ctx.Granules {
		if !MatchesWeekday(row, g.Day) {
			continue
		}
		expr := ilp.NewExpr()
		physical := 0
		for key, v := range ctx.TTroom {
			if selected[key.CourseID] && key.Slot.IsSimultaneousTo(g) {
				expr.AddTerm(v, 1)
				physical++
			}
		}
		if physical == 0 {
			continue
		}
		for key, v := range ctx.TT {
			if selected[key.CourseID] && key.Slot.IsSimultaneousTo(g) {
				expr.AddTerm(v, -ratio)
			}
		}
		ctx.Impose(row, expr, ilp.SenseLE, 0,
			fmt.Sprintf("presence_cap_%s_%d", g.Day, g.Start))
	}
	return nil
}

// IsSatisfied 事后审计：逐时刻复核到场比例
func (pc *PresenceCap) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p presenceCapParams
	if err := DecodeParams(row, &p); err != nil {
		return false
	}
	if !d.Department.VisioMode {
		return true
	}
	selected := make(map[uuid.UUID]bool)
	for _, c := range SelectCourses(d, row) {
		selected[c.ID] = true
	}

	for _, ref := range scheduled {
		course := d.Course(ref.CourseID)
		if course == nil || !selected[ref.CourseID] || !MatchesWeekday(row, ref.Day) {
			continue
		}
		refSlot := ref.Slot(course.Duration, course.PeriodID)

		total, physical := 0, 0
		for _, sc := range scheduled {
			other := d.Course(sc.CourseID)
			if other == nil || !selected[sc.CourseID] {
				continue
			}
			if !refSlot.IsSimultaneousTo(sc.Slot(other.Duration, other.PeriodID)) {
				continue
			}
			total++
			if sc.RoomID != nil {
				physical++
			}
		}
		if float64(physical) > float64(p.Percent)/100*float64(total) {
			return false
		}
	}
	return true
}
