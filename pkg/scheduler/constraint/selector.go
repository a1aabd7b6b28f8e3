package constraint

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// SelectCourses 解析约束行的选择器，返回约束作用的课程集合
// 各维度按"与"组合；空选择器表示该维度不限。
// 学生组选择器先扩展为连通组集合再取交。
func SelectCourses(d *ttmodel.Data, row *model.TimetableConstraint) []*model.Course {
	groupSet := expandGroups(d, row.GroupIDs)

	return lo.Filter(d.Courses, func(c *model.Course, _ int) bool {
		if !row.AppliesToPeriod(c.PeriodID) {
			return false
		}
		if len(row.ModuleIDs) > 0 && !lo.Contains(row.ModuleIDs, c.ModuleID) {
			return false
		}
		if len(row.CourseTypeIDs) > 0 && !lo.Contains(row.CourseTypeIDs, c.TypeID) {
			return false
		}
		if len(row.RoomTypeIDs) > 0 && !lo.Contains(row.RoomTypeIDs, c.RoomTypeID) {
			return false
		}
		if len(row.TrainProgIDs) > 0 {
			m := d.Modules[c.ModuleID]
			if m == nil || !lo.Contains(row.TrainProgIDs, m.TrainProgID) {
				return false
			}
		}
		if len(groupSet) > 0 {
			touches := lo.SomeBy(c.GroupIDs, func(gid uuid.UUID) bool {
				return groupSet[gid]
			})
			if !touches {
				return false
			}
		}
		if len(row.TutorIDs) > 0 {
			eligible := d.EligibleTutors(c)
			overlap := lo.SomeBy(eligible, func(tid uuid.UUID) bool {
				return lo.Contains(row.TutorIDs, tid)
			})
			if !overlap {
				return false
			}
		}
		return true
	})
}

// SelectTutors 返回约束作用的教师集合（空选择器为全体教师）
func SelectTutors(d *ttmodel.Data, row *model.TimetableConstraint) []*model.Tutor {
	if len(row.TutorIDs) == 0 {
		tutors := make([]*model.Tutor, 0, len(d.Tutors))
		for _, t := range d.Tutors {
			tutors = append(tutors, t)
		}
		return tutors
	}
	var tutors []*model.Tutor
	for _, id := range row.TutorIDs {
		if t := d.Tutors[id]; t != nil {
			tutors = append(tutors, t)
		}
	}
	return tutors
}

// SelectDays 返回约束作用的日期集合
// 周期取约束行声明的周期（否则全部周期），星期取行的星期选择器
// （否则院系工作日）。
func SelectDays(d *ttmodel.Data, row *model.TimetableConstraint) []string {
	weekdays := row.Weekdays
	if len(weekdays) == 0 {
		weekdays = d.Department.Settings.Weekdays
	}

	var days []string
	for _, p := range d.Periods {
		if row.PeriodID != nil && p.ID != *row.PeriodID {
			continue
		}
		days = append(days, p.Dates(weekdays)...)
	}
	return days
}

// MatchesWeekday 检查日期是否落在约束的星期选择器内
func MatchesWeekday(row *model.TimetableConstraint, day string) bool {
	if len(row.Weekdays) == 0 {
		return true
	}
	wd, err := model.WeekdayOf(day)
	if err != nil {
		return false
	}
	return lo.Contains(row.Weekdays, wd)
}

// expandGroups 把选择器中的学生组扩展为连通组集合
func expandGroups(d *ttmodel.Data, ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool)
	for _, id := range ids {
		for _, g := range d.Groups.ConnectedGroups(id) {
			set[g.ID] = true
		}
	}
	return set
}
