package constraint

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/partition"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// LunchBreak 午休约束：每天在窗口内必须留出一段连续空闲
//
// 建模为"或"的析取：窗口内按粒度步进枚举候选午休段，
// 每段一个指示变量（该段无任何占用时才可为 1），至少一段成立。
type LunchBreak struct {
	BaseConstraint
}

// NewLunchBreak 创建午休约束
func NewLunchBreak() *LunchBreak {
	return &LunchBreak{BaseConstraint{kind: "lunch_break"}}
}

type lunchBreakParams struct {
	Start    int `json:"start"`    // 窗口起点（当日分钟）
	End      int `json:"end"`      // 窗口终点
	Duration int `json:"duration"` // 午休最短时长
}

func (p lunchBreakParams) validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("duration 必须为正: %d", p.Duration)
	}
	if p.End-p.Start < p.Duration {
		return fmt.Errorf("窗口 [%d, %d) 容不下 %d 分钟午休", p.Start, p.End, p.Duration)
	}
	return nil
}

// Enrich 注入模型
func (lb *LunchBreak) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p lunchBreakParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}

	for _, day := range SelectDays(ctx.Data, row) {
		for _, tutor := range lunchTutors(ctx.Data, row) {
			busyAt := func(window model.Slot) *ilp.LinExpr {
				return ctx.TutorBusy(tutor.ID, window)
			}
			lb.enrichEntity(ctx, row, p, day, "tutor_"+tutor.Username, busyAt)
		}
		for _, group := range lunchGroups(ctx.Data, row) {
			gid := group.ID
			busyAt := func(window model.Slot) *ilp.LinExpr {
				return ctx.GroupBusy(gid, window)
			}
			lb.enrichEntity(ctx, row, p, day, "group_"+group.Name, busyAt)
		}
	}
	return nil
}

// enrichEntity 为单个实体的单日落地析取构造
func (lb *LunchBreak) enrichEntity(ctx *ttmodel.Context, row *model.TimetableConstraint,
	p lunchBreakParams, day, entity string, busyAt func(model.Slot) *ilp.LinExpr) {

	var candidates []ilp.VarID
	for start := p.Start; start+p.Duration <= p.End; start += ctx.Settings.Granularity {
		window := model.NewSlot(day, start, p.Duration, uuid.Nil)
		busy := busyAt(window)
		if busy.IsEmpty() {
			// 该段不可能被占用，午休天然成立
			return
		}
		b := ctx.M.NewVar(fmt.Sprintf("lunch_%s_%s_%d", entity, day, start))
		// b=1 强制该段零占用
		n := float64(len(busy.Coeffs))
		guard := busy.Clone()
		guard.AddTerm(b, n)
		ctx.M.AddConstraint(guard, ilp.SenseLE, n,
			fmt.Sprintf("lunch_guard_%s_%s_%d", entity, day, start))
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return
	}
	ctx.Impose(row, ilp.SumVars(candidates...), ilp.SenseGE, 1,
		fmt.Sprintf("lunch_%s_%s", entity, day))
}

// CompletePartition 向预分析分区涂入午休的保底占用
// 仅当窗口未与既有禁用声明重叠时才涂，避免重复计账造成误报。
func (lb *LunchBreak) CompletePartition(p *partition.Partition, d *ttmodel.Data,
	row *model.TimetableConstraint, day string, tutorID uuid.UUID) {

	var params lunchBreakParams
	if err := DecodeParams(row, &params); err != nil || params.validate() != nil {
		return
	}
	if !MatchesWeekday(row, day) {
		return
	}
	window := model.NewSlot(day, params.Start, params.End-params.Start, uuid.Nil)
	for _, a := range d.UserAvailability[tutorID] {
		if a.IsForbidden() && a.Overlaps(window) {
			return
		}
	}
	p.AddSlot(partition.TimeInterval{Start: params.Start, End: params.Start + params.Duration},
		partition.SlotData{Forbidden: true, ConstraintType: lb.Kind()})
}

// IsSatisfied 事后审计：每个实体每天在窗口内存在无占用的连续午休段
func (lb *LunchBreak) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p lunchBreakParams
	if err := DecodeParams(row, &p); err != nil || p.validate() != nil {
		return false
	}

	occupied := func(day string, busy func(*model.Course) bool) []model.Slot {
		var slots []model.Slot
		for _, sc := range scheduled {
			course := d.Course(sc.CourseID)
			if course == nil || sc.Day != day || !busy(course) {
				continue
			}
			slots = append(slots, sc.Slot(course.Duration, course.PeriodID))
		}
		return slots
	}

	hasBreak := func(day string, slots []model.Slot) bool {
		for start := p.Start; start+p.Duration <= p.End; start += d.Department.Settings.Granularity {
			window := model.NewSlot(day, start, p.Duration, uuid.Nil)
			free := true
			for _, s := range slots {
				if s.IsSimultaneousTo(window) {
					free = false
					break
				}
			}
			if free {
				return true
			}
		}
		return false
	}

	for _, day := range SelectDays(d, row) {
		for _, tutor := range lunchTutors(d, row) {
			tid := tutor.ID
			slots := occupied(day, func(c *model.Course) bool {
				return d.TutorCanTeach(tid, c) || hasSupp(c, tid)
			})
			if !hasBreak(day, slots) {
				return false
			}
		}
		for _, group := range lunchGroups(d, row) {
			gid := group.ID
			slots := occupied(day, func(c *model.Course) bool {
				return d.GroupConflictsWithCourse(gid, c)
			})
			if !hasBreak(day, slots) {
				return false
			}
		}
	}
	return true
}

// lunchTutors 午休约束作用的教师：显式选择时取选择器，否则不作用于教师
func lunchTutors(d *ttmodel.Data, row *model.TimetableConstraint) []*model.Tutor {
	if len(row.TutorIDs) == 0 {
		return nil
	}
	return SelectTutors(d, row)
}

// lunchGroups 午休约束作用的学生组：显式选择时取选择器，否则为全部基本组
func lunchGroups(d *ttmodel.Data, row *model.TimetableConstraint) []*model.Group {
	if len(row.GroupIDs) > 0 {
		var groups []*model.Group
		for _, id := range row.GroupIDs {
			if g := d.Groups.Get(id); g != nil {
				groups = append(groups, g)
			}
		}
		return groups
	}
	if len(row.TutorIDs) > 0 {
		// 只点名教师时不隐式拉上全部学生组
		return nil
	}
	return d.Groups.BasicGroups()
}

func hasSupp(c *model.Course, tutorID uuid.UUID) bool {
	for _, id := range c.SuppTutorIDs {
		if id == tutorID {
			return true
		}
	}
	return false
}
