package constraint

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// MinBusyHalfDays 半天集中约束：教师的课尽量压进最少的半天
//
// 下界由贪心装箱给出（时长降序、首次适应），比朴素的
// 总时长/半天容量上取整更紧：三门 3 小时课装不进两个 4.5 小时
// 的半天，下界必须是 3。
type MinBusyHalfDays struct {
	BaseConstraint
}

// NewMinBusyHalfDays 创建半天集中约束
func NewMinBusyHalfDays() *MinBusyHalfDays {
	return &MinBusyHalfDays{BaseConstraint{kind: "min_busy_half_days"}}
}

type minBusyHalfDaysParams struct {
	// Limit 显式上限；0 表示用贪心下界
	Limit int `json:"limit"`
	// Slack 允许超出下界的半天数
	Slack int `json:"slack"`
}

// MinimalHalfDays 贪心装箱求最少半天数
// 时长降序排列后逐一放入首个装得下的箱子，装不下则开新箱。
func MinimalHalfDays(durations []int, capacity int) int {
	if capacity <= 0 {
		return len(durations)
	}
	sorted := make([]int, len(durations))
	copy(sorted, durations)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var bins []int
	for _, dur := range sorted {
		placed := false
		for i, used := range bins {
			if used+dur <= capacity {
				bins[i] += dur
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, dur)
		}
	}
	return len(bins)
}

// Enrich 注入模型
// 每个 (日, 半天) 一个忙碌指示变量（FloorVar：有任何占用即为 1），
// 忙碌半天总数不超过贪心下界加松弛。
func (hd *MinBusyHalfDays) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p minBusyHalfDaysParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	if p.Limit < 0 || p.Slack < 0 {
		return fmt.Errorf("limit/slack 不得为负")
	}

	settings := ctx.Settings
	days := SelectDays(ctx.Data, row)

	for _, tutor := range SelectTutors(ctx.Data, row) {
		courses := tutorSelectedCourses(ctx.Data, row, tutor.ID)
		if len(courses) == 0 {
			continue
		}

		limit := p.Limit
		if limit == 0 {
			durations := make([]int, len(courses))
			for i, c := range courses {
				durations[i] = c.Duration
			}
			limit = MinimalHalfDays(durations, settings.HalfDayDuration())
		}
		limit += p.Slack

		var busyVars []ilp.VarID
		for _, day := range days {
			for _, half := range []struct {
				name       string
				start, end int
			}{
				{"am", settings.DayStart, settings.MorningEnd},
				{"pm", settings.AfternoonStart, settings.DayEnd},
			} {
				window := model.NewSlot(day, half.start, half.end-half.start, uuid.Nil)
				occupation := ilp.NewExpr()
				for _, c := range courses {
					occupation.AddExpr(tutorCourseAt(ctx, tutor.ID, c, window))
				}
				if occupation.IsEmpty() {
					continue
				}
				upper := float64(len(occupation.Coeffs))
				b := ctx.M.NewFloorVar(occupation, 1, upper,
					fmt.Sprintf("busy_%s_%s_%s", tutor.Username, day, half.name))
				busyVars = append(busyVars, b)
			}
		}
		if len(busyVars) == 0 {
			continue
		}
		ctx.Impose(row, ilp.SumVars(busyVars...), ilp.SenseLE, float64(limit),
			fmt.Sprintf("half_days_%s", tutor.Username))
	}
	return nil
}

// IsSatisfied 事后审计：统计实际忙碌半天数
func (hd *MinBusyHalfDays) IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint,
	scheduled []*model.ScheduledCourse) bool {

	var p minBusyHalfDaysParams
	if err := DecodeParams(row, &p); err != nil {
		return false
	}
	settings := d.Department.Settings

	for _, tutor := range SelectTutors(d, row) {
		courses := tutorSelectedCourses(d, row, tutor.ID)
		if len(courses) == 0 {
			continue
		}
		limit := p.Limit
		if limit == 0 {
			durations := make([]int, len(courses))
			for i, c := range courses {
				durations[i] = c.Duration
			}
			limit = MinimalHalfDays(durations, settings.HalfDayDuration())
		}
		limit += p.Slack

		busy := make(map[string]bool)
		for _, sc := range scheduled {
			course := d.Course(sc.CourseID)
			if course == nil || sc.TutorID == nil || *sc.TutorID != tutor.ID {
				continue
			}
			half := "am"
			if sc.Slot(course.Duration, course.PeriodID).IsAfternoon(settings) {
				half = "pm"
			}
			busy[sc.Day+"_"+half] = true
		}
		if len(busy) > limit {
			return false
		}
	}
	return true
}

// tutorSelectedCourses 约束选中且教师可承担的课程
func tutorSelectedCourses(d *ttmodel.Data, row *model.TimetableConstraint, tutorID uuid.UUID) []*model.Course {
	var result []*model.Course
	for _, c := range SelectCourses(d, row) {
		if d.TutorCanTeach(tutorID, c) {
			result = append(result, c)
		}
	}
	return result
}

// tutorCourseAt 教师在窗口内承担该课程的变量之和
func tutorCourseAt(ctx *ttmodel.Context, tutorID uuid.UUID, c *model.Course, window model.Slot) *ilp.LinExpr {
	expr := ilp.NewExpr()
	for _, s := range ctx.CourseSlots[c.ID] {
		if !s.IsSimultaneousTo(window) {
			continue
		}
		key := ttmodel.SlotCourseTutor{Slot: s, CourseID: c.ID, TutorID: tutorID}
		if v, ok := ctx.TTtutor[key]; ok {
			expr.AddTerm(v, 1)
		}
	}
	return expr
}
