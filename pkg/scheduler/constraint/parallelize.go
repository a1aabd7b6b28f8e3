package constraint

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// LimitSimultaneous 并行度约束：选中课程在任一原子粒上的并行数不超过上限
// 典型用途：同一模块的习题课最多同时开 N 组、考试周全院并行上限。
type LimitSimultaneous struct {
	BaseConstraint
}

// NewLimitSimultaneous 创建并行度约束
func NewLimitSimultaneous() *LimitSimultaneous {
	return &LimitSimultaneous{BaseConstraint{kind: "limit_simultaneous"}}
}

type limitSimultaneousParams struct {
	Limit int `json:"limit"`
}

// Enrich 注入模型
func (ls *LimitSimultaneous) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p limitSimultaneousParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.Limit <= 0 {
		return fmt.Errorf("limit 必须为正: %d", p.Limit)
	}

	courses := SelectCourses(ctx.Data, row)
	if len(courses) <= p.Limit {
		return nil
	}

	for _, g := range ctx.Granules {
		if !MatchesWeekday(row, g.Day) {
			continue
		}
		expr := ilp.NewExpr()
		for _, c := range courses {
			for _, s := range ctx.CourseSlots[c.ID] {
				if !s.IsSimultaneousTo(g) {
					continue
				}
				if v, ok := ctx.ScheduledAt(c.ID, s); ok {
					expr.AddTerm(v, 1)
				}
			}
		}
		if len(expr.Coeffs) <= p.Limit {
			continue
		}
		ctx.Impose(row, expr, ilp.SenseLE, float64(p.Limit),
			fmt.Sprintf("parallel_%s_%d", g.Day, g.Start))
	}
	return nil
}

// IsSatisfied 事后审计：逐原子粒统计实际并行数
func (ls *LimitSimultaneous) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p limitSimultaneousParams
	if err := DecodeParams(row, &p); err != nil || p.Limit <= 0 {
		return false
	}
	selected := make(map[string]bool)
	for _, c := range SelectCourses(d, row) {
		selected[c.ID.String()] = true
	}

	var placed []model.Slot
	for _, sc := range scheduled {
		course := d.Course(sc.CourseID)
		if course == nil || !selected[sc.CourseID.String()] {
			continue
		}
		placed = append(placed, sc.Slot(course.Duration, course.PeriodID))
	}
	for i, a := range placed {
		count := 1
		for j, b := range placed {
			if i != j && a.IsSimultaneousTo(b) {
				count++
			}
		}
		if count > p.Limit {
			return false
		}
	}
	return true
}
