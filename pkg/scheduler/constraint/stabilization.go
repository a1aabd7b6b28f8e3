package constraint

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Stabilization 稳定化约束：重排时尽量贴近发布版的既有排定
//
// 硬形式把课程钉在原时段；软形式对偏离计成本，
// 同日不同时段的偏离按比例减轻（换天比换时段更伤）。
type Stabilization struct {
	BaseConstraint
}

// NewStabilization 创建稳定化约束
func NewStabilization() *Stabilization {
	return &Stabilization{BaseConstraint{kind: "stabilization"}}
}

type stabilizationParams struct {
	// Multiplier 偏离成本放大系数；0 取默认 1
	Multiplier float64 `json:"multiplier"`
	// SameDayFactor 换时段不换天的成本折减（0..1）；0 取默认 0.5
	SameDayFactor float64 `json:"same_day_factor"`
}

// Enrich 注入模型
func (st *Stabilization) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p stabilizationParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.Multiplier == 0 {
		p.Multiplier = 1
	}
	if p.SameDayFactor == 0 {
		p.SameDayFactor = 0.5
	}
	if p.SameDayFactor < 0 || p.SameDayFactor > 1 {
		return fmt.Errorf("same_day_factor 必须在 [0, 1]: %g", p.SameDayFactor)
	}

	for _, course := range SelectCourses(ctx.Data, row) {
		ref := ctx.Data.Reference[course.ID]
		if ref == nil {
			continue
		}

		if row.IsHard() {
			day := ref.Day
			start := ref.Start
			pinned := ctx.CourseExpr(course.ID, model.SlotFilter{Day: &day, StartsAfter: &start, EndsBefore: ptrInt(start + course.Duration)})
			ctx.M.AddConstraint(pinned, ilp.SenseEQ, 1, "stab_pin_"+course.ID.String()[:8])
			continue
		}

		// 软形式：每个偏离原排定的时段计成本
		weight := row.LocalWeight() * p.Multiplier
		for _, s := range ctx.CourseSlots[course.ID] {
			v, ok := ctx.ScheduledAt(course.ID, s)
			if !ok {
				continue
			}
			if s.Day == ref.Day && s.Start == ref.Start {
				continue
			}
			cost := weight
			if s.Day == ref.Day {
				cost *= p.SameDayFactor
			}
			ctx.AddGenericCost(ilp.Term(v, cost))
		}
	}
	return nil
}

// IsSatisfied 事后审计：硬形式要求与发布版完全一致
func (st *Stabilization) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	if !row.IsHard() {
		return true
	}
	selected := make(map[string]bool)
	for _, c := range SelectCourses(d, row) {
		selected[c.ID.String()] = true
	}
	for _, sc := range scheduled {
		if !selected[sc.CourseID.String()] {
			continue
		}
		ref := d.Reference[sc.CourseID]
		if ref == nil {
			continue
		}
		if sc.Day != ref.Day || sc.Start != ref.Start {
			return false
		}
	}
	return true
}

func ptrInt(v int) *int { return &v }
