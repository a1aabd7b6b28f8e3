package version

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Renumber 按时间顺序为发布版课程重排模块内编号
// 编号按 (模块, 课程类型, 学生组) 分序列，从既往周期的已排数量接续，
// 跨周期看编号即可知这是该模块的第几讲。平行学生组各自独立计数。
func (m *Manager) Renumber(ctx context.Context, d *ttmodel.Data, departmentID, periodID uuid.UUID) error {
	canonical, err := m.store.GetVersion(ctx, departmentID, periodID, model.CanonicalMajor)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "读取发布版失败")
	}
	if canonical == nil {
		return errors.NotFound("发布版", periodID.String())
	}
	scheduled, err := m.store.GetScheduledCourses(ctx, canonical.ID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "读取发布版排定失败")
	}
	if len(scheduled) == 0 {
		return nil
	}

	period := d.Period(periodID)
	if period == nil {
		return errors.NotFound("排课周期", periodID.String())
	}

	type seq struct {
		moduleID uuid.UUID
		typeID   uuid.UUID
		groups   string
	}
	bySeq := make(map[seq][]*model.ScheduledCourse)
	groupIDsOf := make(map[seq][]uuid.UUID)
	for _, sc := range scheduled {
		course := d.Course(sc.CourseID)
		if course == nil {
			continue
		}
		k := seq{moduleID: course.ModuleID, typeID: course.TypeID, groups: model.GroupKey(course.GroupIDs)}
		bySeq[k] = append(bySeq[k], sc)
		groupIDsOf[k] = course.GroupIDs
	}

	for k, group := range bySeq {
		base, err := m.store.PriorCount(ctx, k.moduleID, k.typeID, groupIDsOf[k], period.StartDate)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "统计既往编号失败")
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].Day != group[j].Day {
				return group[i].Day < group[j].Day
			}
			return group[i].Start < group[j].Start
		})
		for i, sc := range group {
			sc.Number = base + i + 1
		}
	}

	if err := m.store.SaveScheduledCourses(ctx, canonical.ID, scheduled); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "写回编号失败")
	}
	return nil
}
