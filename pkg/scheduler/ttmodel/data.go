package ttmodel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kebiao/kebiao/pkg/model"
)

// Data 一次求解的完整工作集（只读快照）
type Data struct {
	Department *model.Department
	Periods    []*model.SchedulingPeriod
	Courses    []*model.Course

	CourseTypes map[uuid.UUID]*model.CourseType
	Modules     map[uuid.UUID]*model.Module
	TrainProgs  map[uuid.UUID]*model.TrainProg
	Tutors      map[uuid.UUID]*model.Tutor
	RoomTypes   map[uuid.UUID]*model.RoomType

	// PossibleTutors 模块 -> 可授课教师
	PossibleTutors map[uuid.UUID][]uuid.UUID

	Groups *model.GroupHierarchy
	Rooms  *model.RoomIndex

	Constraints []*model.TimetableConstraint

	UserAvailability map[uuid.UUID][]*model.Availability
	RoomAvailability map[uuid.UUID][]*model.Availability
	// TrainProgAvailability 培养方案 -> 学生面时段偏好声明
	TrainProgAvailability map[uuid.UUID][]*model.Availability
	Reservations          map[uuid.UUID][]*model.RoomReservation

	// Reference 发布版的既有排定（课程 -> 位置），供稳定化约束参照
	Reference map[uuid.UUID]*model.ScheduledCourse
}

// LoadData 为院系与周期集合加载求解工作集
func LoadData(ctx context.Context, store Store, departmentID uuid.UUID, periodIDs []uuid.UUID) (*Data, error) {
	dept, err := store.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载院系失败: %w", err)
	}
	periods, err := store.GetPeriods(ctx, periodIDs)
	if err != nil {
		return nil, fmt.Errorf("加载排课周期失败: %w", err)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("未找到排课周期")
	}

	courses, err := store.GetCourses(ctx, departmentID, periodIDs)
	if err != nil {
		return nil, fmt.Errorf("加载课程失败: %w", err)
	}
	types, err := store.GetCourseTypes(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载课程类型失败: %w", err)
	}
	modules, err := store.GetModules(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载教学模块失败: %w", err)
	}
	trainProgs, err := store.GetTrainProgs(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载培养方案失败: %w", err)
	}
	tutors, err := store.GetTutors(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载教师失败: %w", err)
	}
	possibleTutors, err := store.GetPossibleTutors(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载授课资格失败: %w", err)
	}
	groups, err := store.GetGroups(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载学生组失败: %w", err)
	}
	hierarchy, err := model.NewGroupHierarchy(groups)
	if err != nil {
		return nil, fmt.Errorf("学生组层级无效: %w", err)
	}
	rooms, err := store.GetRooms(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载教室失败: %w", err)
	}
	roomTypes, err := store.GetRoomTypes(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("加载教室类型失败: %w", err)
	}
	constraints, err := store.GetActiveConstraints(ctx, departmentID, periodIDs)
	if err != nil {
		return nil, fmt.Errorf("加载约束失败: %w", err)
	}

	data := &Data{
		Department:     dept,
		Periods:        periods,
		Courses:        courses,
		CourseTypes:    indexByID(types, func(t *model.CourseType) uuid.UUID { return t.ID }),
		Modules:        indexByID(modules, func(m *model.Module) uuid.UUID { return m.ID }),
		TrainProgs:     indexByID(trainProgs, func(tp *model.TrainProg) uuid.UUID { return tp.ID }),
		Tutors:         indexByID(tutors, func(t *model.Tutor) uuid.UUID { return t.ID }),
		RoomTypes:      indexByID(roomTypes, func(rt *model.RoomType) uuid.UUID { return rt.ID }),
		PossibleTutors: possibleTutors,
		Groups:         hierarchy,
		Rooms:          model.NewRoomIndex(rooms),
		Constraints:    constraints,

		UserAvailability:      make(map[uuid.UUID][]*model.Availability),
		RoomAvailability:      make(map[uuid.UUID][]*model.Availability),
		TrainProgAvailability: make(map[uuid.UUID][]*model.Availability),
		Reservations:          make(map[uuid.UUID][]*model.RoomReservation),
		Reference:             make(map[uuid.UUID]*model.ScheduledCourse),
	}

	for _, p := range periods {
		scheduled, err := store.GetScheduledCourses(ctx, departmentID, p.ID, model.CanonicalMajor)
		if err != nil {
			return nil, fmt.Errorf("加载发布版排定失败: %w", err)
		}
		for _, sc := range scheduled {
			data.Reference[sc.CourseID] = sc
		}
	}

	// 可用度与预订按周期范围整体拉取
	startDate, endDate := data.dateSpan()
	for _, tutor := range tutors {
		avail, err := store.GetUserAvailability(ctx, tutor.ID, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("加载教师 %s 可用度失败: %w", tutor.Username, err)
		}
		data.UserAvailability[tutor.ID] = avail
	}
	for _, room := range rooms {
		avail, err := store.GetRoomAvailability(ctx, room.ID, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("加载教室 %s 可用度失败: %w", room.Name, err)
		}
		data.RoomAvailability[room.ID] = avail

		reservations, err := store.GetRoomReservations(ctx, room.ID, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("加载教室 %s 预订失败: %w", room.Name, err)
		}
		data.Reservations[room.ID] = reservations
	}
	for _, tp := range trainProgs {
		avail, err := store.GetTrainProgAvailability(ctx, tp.ID, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("加载培养方案 %s 时段偏好失败: %w", tp.Abbrev, err)
		}
		data.TrainProgAvailability[tp.ID] = avail
	}

	return data, nil
}

// dateSpan 返回全部周期覆盖的日期范围
func (d *Data) dateSpan() (string, string) {
	start, end := d.Periods[0].StartDate, d.Periods[0].EndDate
	for _, p := range d.Periods[1:] {
		if p.StartDate < start {
			start = p.StartDate
		}
		if p.EndDate > end {
			end = p.EndDate
		}
	}
	return start, end
}

// Period 按ID获取周期
func (d *Data) Period(id uuid.UUID) *model.SchedulingPeriod {
	for _, p := range d.Periods {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PeriodCourses 返回周期内的课程
func (d *Data) PeriodCourses(periodID uuid.UUID) []*model.Course {
	return lo.Filter(d.Courses, func(c *model.Course, _ int) bool {
		return c.PeriodID == periodID
	})
}

// Course 按ID获取课程
func (d *Data) Course(id uuid.UUID) *model.Course {
	for _, c := range d.Courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// EligibleTutors 返回课程的候选主讲教师
// 已指定主讲则只有该教师；否则为模块的可授课教师。
func (d *Data) EligibleTutors(c *model.Course) []uuid.UUID {
	if c.HasTutor() {
		return []uuid.UUID{*c.TutorID}
	}
	return d.PossibleTutors[c.ModuleID]
}

// TutorCanTeach 检查教师是否可承担课程
func (d *Data) TutorCanTeach(tutorID uuid.UUID, c *model.Course) bool {
	return lo.Contains(d.EligibleTutors(c), tutorID)
}

// TutorCourses 返回教师可承担（或已指定）的课程集合
func (d *Data) TutorCourses(tutorID uuid.UUID, periodID uuid.UUID) []*model.Course {
	return lo.Filter(d.Courses, func(c *model.Course, _ int) bool {
		if periodID != uuid.Nil && c.PeriodID != periodID {
			return false
		}
		return d.TutorCanTeach(tutorID, c) || lo.Contains(c.SuppTutorIDs, tutorID)
	})
}

// TutorAvailValue 返回教师对时间粒的可用度
// 取覆盖声明中的最小值；无声明视为中性值 4。
func (d *Data) TutorAvailValue(tutorID uuid.UUID, s model.Slot) int {
	value := -1
	for _, a := range d.UserAvailability[tutorID] {
		if a.Overlaps(s) {
			if value < 0 || a.Value < value {
				value = a.Value
			}
		}
	}
	if value < 0 {
		return model.AvailabilityMax / 2
	}
	return value
}

// TrainProgAvailValue 返回培养方案对时间粒的学生面偏好值
// 取覆盖声明中的最小值；无声明视为完全可用（不产生成本噪声）。
func (d *Data) TrainProgAvailValue(trainProgID uuid.UUID, s model.Slot) int {
	value := -1
	for _, a := range d.TrainProgAvailability[trainProgID] {
		if a.Overlaps(s) {
			if value < 0 || a.Value < value {
				value = a.Value
			}
		}
	}
	if value < 0 {
		return model.AvailabilityMax
	}
	return value
}

// TutorUnavailable 检查教师在时间粒是否不可用
func (d *Data) TutorUnavailable(tutorID uuid.UUID, s model.Slot) bool {
	return d.TutorAvailValue(tutorID, s) == model.AvailabilityForbidden
}

// RoomUnavailable 检查教室在时间粒是否不可用
// 教室假期声明与外部预订均视为硬性占用。
func (d *Data) RoomUnavailable(roomID uuid.UUID, s model.Slot) bool {
	for _, a := range d.RoomAvailability[roomID] {
		if a.IsForbidden() && a.Overlaps(s) {
			return true
		}
	}
	for _, r := range d.Reservations[roomID] {
		if r.Overlaps(s) {
			return true
		}
	}
	return false
}

// CoursesOfGroup 返回面向指定学生组（含连通组）的课程
func (d *Data) CoursesOfGroup(groupID uuid.UUID, periodID uuid.UUID) []*model.Course {
	connected := lo.Map(d.Groups.ConnectedGroups(groupID),
		func(g *model.Group, _ int) uuid.UUID { return g.ID })
	return lo.Filter(d.Courses, func(c *model.Course, _ int) bool {
		if periodID != uuid.Nil && c.PeriodID != periodID {
			return false
		}
		return lo.SomeBy(c.GroupIDs, func(gid uuid.UUID) bool {
			return lo.Contains(connected, gid)
		})
	})
}

// GroupConflictsWithCourse 检查课程是否占用某学生组
func (d *Data) GroupConflictsWithCourse(groupID uuid.UUID, c *model.Course) bool {
	for _, gid := range c.GroupIDs {
		if d.Groups.Conflicts(groupID, gid) {
			return true
		}
	}
	return false
}

// DepartmentOf 返回课程归属院系（经 模块 -> 培养方案）
func (d *Data) DepartmentOf(c *model.Course) uuid.UUID {
	m := d.Modules[c.ModuleID]
	if m == nil {
		return uuid.Nil
	}
	tp := d.TrainProgs[m.TrainProgID]
	if tp == nil {
		return uuid.Nil
	}
	return tp.DepartmentID
}

func indexByID[T any](items []*T, key func(*T) uuid.UUID) map[uuid.UUID]*T {
	result := make(map[uuid.UUID]*T, len(items))
	for _, item := range items {
		result[key(item)] = item
	}
	return result
}
