package ttmodel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
)

// memStore 内存工作集，测试替身
type memStore struct {
	department  *model.Department
	periods     []*model.SchedulingPeriod
	courses     []*model.Course
	courseTypes []*model.CourseType
	modules     []*model.Module
	trainProgs  []*model.TrainProg
	tutors      []*model.Tutor
	possible    map[uuid.UUID][]uuid.UUID
	groups      []*model.Group
	rooms       []*model.Room
	roomTypes   []*model.RoomType
	constraints []*model.TimetableConstraint
	userAvail   map[uuid.UUID][]*model.Availability
	roomAvail   map[uuid.UUID][]*model.Availability
	trainAvail  map[uuid.UUID][]*model.Availability
	reserved    map[uuid.UUID][]*model.RoomReservation
	scheduled   []*model.ScheduledCourse
}

func (s *memStore) GetDepartment(_ context.Context, id uuid.UUID) (*model.Department, error) {
	if s.department == nil || s.department.ID != id {
		return nil, errors.NotFound("院系", id.String())
	}
	return s.department, nil
}

func (s *memStore) GetPeriods(_ context.Context, ids []uuid.UUID) ([]*model.SchedulingPeriod, error) {
	var result []*model.SchedulingPeriod
	for _, p := range s.periods {
		for _, id := range ids {
			if p.ID == id {
				result = append(result, p)
			}
		}
	}
	return result, nil
}

func (s *memStore) GetCourses(_ context.Context, _ uuid.UUID, periodIDs []uuid.UUID) ([]*model.Course, error) {
	var result []*model.Course
	for _, c := range s.courses {
		for _, id := range periodIDs {
			if c.PeriodID == id {
				result = append(result, c)
			}
		}
	}
	return result, nil
}

func (s *memStore) GetCourseTypes(_ context.Context, _ uuid.UUID) ([]*model.CourseType, error) {
	return s.courseTypes, nil
}

func (s *memStore) GetModules(_ context.Context, _ uuid.UUID) ([]*model.Module, error) {
	return s.modules, nil
}

func (s *memStore) GetTrainProgs(_ context.Context, _ uuid.UUID) ([]*model.TrainProg, error) {
	return s.trainProgs, nil
}

func (s *memStore) GetTutors(_ context.Context, _ uuid.UUID) ([]*model.Tutor, error) {
	return s.tutors, nil
}

func (s *memStore) GetPossibleTutors(_ context.Context, _ uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	return s.possible, nil
}

func (s *memStore) GetGroups(_ context.Context, _ uuid.UUID) ([]*model.Group, error) {
	return s.groups, nil
}

func (s *memStore) GetRooms(_ context.Context, _ uuid.UUID) ([]*model.Room, error) {
	return s.rooms, nil
}

func (s *memStore) GetRoomTypes(_ context.Context, _ uuid.UUID) ([]*model.RoomType, error) {
	return s.roomTypes, nil
}

func (s *memStore) GetActiveConstraints(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*model.TimetableConstraint, error) {
	return s.constraints, nil
}

func (s *memStore) GetUserAvailability(_ context.Context, tutorID uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return s.userAvail[tutorID], nil
}

func (s *memStore) GetRoomAvailability(_ context.Context, roomID uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return s.roomAvail[roomID], nil
}

func (s *memStore) GetTrainProgAvailability(_ context.Context, trainProgID uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return s.trainAvail[trainProgID], nil
}

func (s *memStore) GetRoomReservations(_ context.Context, roomID uuid.UUID, _, _ string) ([]*model.RoomReservation, error) {
	return s.reserved[roomID], nil
}

func (s *memStore) GetScheduledCourses(_ context.Context, _, _ uuid.UUID, _ int) ([]*model.ScheduledCourse, error) {
	return s.scheduled, nil
}

// memPersister 记录写入的测试替身
type memPersister struct {
	freeMajor int
	saved     map[uuid.UUID][]*model.ScheduledCourse
}

func (p *memPersister) FirstFreeMajor(_ context.Context, _, _ uuid.UUID) (int, error) {
	return p.freeMajor, nil
}

func (p *memPersister) SaveSolution(_ context.Context, _, periodID uuid.UUID, _ int,
	courses []*model.ScheduledCourse, _ bool) error {
	if p.saved == nil {
		p.saved = make(map[uuid.UUID][]*model.ScheduledCourse)
	}
	p.saved[periodID] = courses
	return nil
}

// newTinyStore 构造最小可排场景：
// 一个周期（周一一天）、两门 60 分钟课程、一名教师、一间教室。
// 作息压缩到三个起点，保证进程内求解器瞬间完成。
func newTinyStore() *memStore {
	dept := &model.Department{
		BaseModel: model.NewBaseModel(),
		Name:      "信息学院",
		Abbrev:    "INFO",
		Settings: model.TimeSettings{
			DayStart:       480,
			MorningEnd:     600,
			AfternoonStart: 600,
			DayEnd:         660,
			Granularity:    60,
			Weekdays:       []time.Weekday{time.Monday},
		},
	}
	period := &model.SchedulingPeriod{
		BaseModel: model.NewBaseModel(),
		Name:      "第1周",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-02",
		Mode:      model.PeriodWeek,
	}
	trainProg := &model.TrainProg{BaseModel: model.NewBaseModel(), Name: "本科一年级", Abbrev: "Y1", DepartmentID: dept.ID}
	group := &model.Group{BaseModel: model.NewBaseModel(), Name: "1班", TrainProgID: trainProg.ID, Kind: model.GroupStructural, Size: 30}
	roomType := &model.RoomType{BaseModel: model.NewBaseModel(), Name: "普通教室", DepartmentID: dept.ID}
	room := &model.Room{BaseModel: model.NewBaseModel(), Name: "A101", TypeIDs: []uuid.UUID{roomType.ID}, DepartmentIDs: []uuid.UUID{dept.ID}}
	courseType := &model.CourseType{BaseModel: model.NewBaseModel(), Name: "讲座", DepartmentID: dept.ID, Duration: 60,
		GroupKinds: []model.GroupKind{model.GroupStructural}}
	module := &model.Module{BaseModel: model.NewBaseModel(), Name: "算法", Abbrev: "ALGO", TrainProgID: trainProg.ID, PeriodID: period.ID}
	tutor := &model.Tutor{BaseModel: model.NewBaseModel(), Username: "zhang", FullName: "张老师", DepartmentIDs: []uuid.UUID{dept.ID}}

	makeCourse := func() *model.Course {
		return &model.Course{
			BaseModel:  model.NewBaseModel(),
			TypeID:     courseType.ID,
			ModuleID:   module.ID,
			PeriodID:   period.ID,
			RoomTypeID: roomType.ID,
			GroupIDs:   []uuid.UUID{group.ID},
			Duration:   60,
		}
	}

	return &memStore{
		department:  dept,
		periods:     []*model.SchedulingPeriod{period},
		courses:     []*model.Course{makeCourse(), makeCourse()},
		courseTypes: []*model.CourseType{courseType},
		modules:     []*model.Module{module},
		trainProgs:  []*model.TrainProg{trainProg},
		tutors:      []*model.Tutor{tutor},
		possible:    map[uuid.UUID][]uuid.UUID{module.ID: {tutor.ID}},
		groups:      []*model.Group{group},
		rooms:       []*model.Room{room},
		roomTypes:   []*model.RoomType{roomType},
		userAvail:   map[uuid.UUID][]*model.Availability{},
		roomAvail:   map[uuid.UUID][]*model.Availability{},
		trainAvail:  map[uuid.UUID][]*model.Availability{},
		reserved:    map[uuid.UUID][]*model.RoomReservation{},
	}
}

func noConstraints(row *model.TimetableConstraint) (Enricher, error) {
	return nil, fmt.Errorf("未知约束类型 '%s'", row.Kind)
}

func TestEngine_RunSchedulesAllCourses(t *testing.T) {
	store := newTinyStore()
	persister := &memPersister{freeMajor: 1}
	engine := NewEngine(store, persister, noConstraints)

	req := &SolveRequest{
		DepartmentID: store.department.ID,
		PeriodIDs:    []uuid.UUID{store.periods[0].ID},
		SolverName:   "branchbound",
	}
	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, ilp.StatusOptimal, result.Status)
	require.Len(t, result.Courses, 2)

	// 同教师同组同教室：两门课必须错开
	a, b := result.Courses[0], result.Courses[1]
	slotA := a.Slot(60, store.periods[0].ID)
	slotB := b.Slot(60, store.periods[0].ID)
	assert.False(t, slotA.IsSimultaneousTo(slotB), "两门课不得重叠")

	for _, sc := range result.Courses {
		require.NotNil(t, sc.TutorID, "主讲教师必须落定")
		require.NotNil(t, sc.RoomID, "教室必须落定")
		assert.Equal(t, store.tutors[0].ID, *sc.TutorID)
		assert.Equal(t, store.rooms[0].ID, *sc.RoomID)
	}

	// 编号按时间顺序
	assert.ElementsMatch(t, []int{1, 2}, []int{a.Number, b.Number})

	// 写入使用首个空闲版本号
	assert.Equal(t, 1, result.Majors[store.periods[0].ID])
	assert.Len(t, persister.saved[store.periods[0].ID], 2)
}

func TestEngine_TutorForbiddenSlotNeverUsed(t *testing.T) {
	store := newTinyStore()
	tutor := store.tutors[0]
	// 教师周一 8:00-9:00 禁用
	store.userAvail[tutor.ID] = []*model.Availability{{
		BaseModel: model.NewBaseModel(),
		SubjectID: tutor.ID,
		Day:       "2026-03-02",
		Start:     480,
		End:       540,
		Value:     model.AvailabilityForbidden,
	}}

	engine := NewEngine(store, &memPersister{freeMajor: 1}, noConstraints)
	result, err := engine.Run(context.Background(), &SolveRequest{
		DepartmentID: store.department.ID,
		PeriodIDs:    []uuid.UUID{store.periods[0].ID},
		SolverName:   "branchbound",
	})
	require.NoError(t, err)
	for _, sc := range result.Courses {
		assert.NotEqual(t, 480, sc.Start, "禁用时间粒不得被使用")
	}
}

func TestEngine_TrainProgUnpreferredSlotAvoided(t *testing.T) {
	store := newTinyStore()
	trainProg := store.trainProgs[0]
	// 学生面声明：周一第一个时段尽量不排课
	store.trainAvail[trainProg.ID] = []*model.Availability{{
		BaseModel: model.NewBaseModel(),
		SubjectID: trainProg.ID,
		Day:       "2026-03-02",
		Start:     480,
		End:       540,
		Value:     1,
	}}

	engine := NewEngine(store, &memPersister{freeMajor: 1}, noConstraints)
	result, err := engine.Run(context.Background(), &SolveRequest{
		DepartmentID: store.department.ID,
		PeriodIDs:    []uuid.UUID{store.periods[0].ID},
		SolverName:   "branchbound",
	})
	require.NoError(t, err)
	require.Len(t, result.Courses, 2)
	// 剩余两个零成本起点足够容纳两门课
	for _, sc := range result.Courses {
		assert.NotEqual(t, 480, sc.Start, "低偏好时段在有余地时应被避开")
	}
}

func TestNumberCourses_ParallelGroupsCountSeparately(t *testing.T) {
	store := newTinyStore()
	groupB := &model.Group{BaseModel: model.NewBaseModel(), Name: "2班",
		TrainProgID: store.trainProgs[0].ID, Kind: model.GroupStructural, Size: 30}
	courseB := &model.Course{
		BaseModel:  model.NewBaseModel(),
		TypeID:     store.courseTypes[0].ID,
		ModuleID:   store.modules[0].ID,
		PeriodID:   store.periods[0].ID,
		RoomTypeID: store.roomTypes[0].ID,
		GroupIDs:   []uuid.UUID{groupB.ID},
		Duration:   60,
	}
	store.groups = append(store.groups, groupB)
	store.courses = append(store.courses, courseB)

	data, err := LoadData(context.Background(), store,
		store.department.ID, []uuid.UUID{store.periods[0].ID})
	require.NoError(t, err)

	// 1班两讲与2班一讲交错：编号按学生组分开计
	scheduled := []*model.ScheduledCourse{
		{BaseModel: model.NewBaseModel(), CourseID: store.courses[0].ID, Day: "2026-03-02", Start: 480},
		{BaseModel: model.NewBaseModel(), CourseID: courseB.ID, Day: "2026-03-02", Start: 540},
		{BaseModel: model.NewBaseModel(), CourseID: store.courses[1].ID, Day: "2026-03-02", Start: 600},
	}
	numberCourses(data, scheduled)

	assert.Equal(t, 1, scheduled[0].Number)
	assert.Equal(t, 2, scheduled[2].Number, "同组第二讲接续计数")
	assert.Equal(t, 1, scheduled[1].Number, "平行班独立从 1 起计")
}

func TestEngine_InfeasibleReported(t *testing.T) {
	store := newTinyStore()
	// 三门课挤进两个可用起点之外的容量：教师全天只剩两个可行粒
	store.courses = append(store.courses, &model.Course{
		BaseModel:  model.NewBaseModel(),
		TypeID:     store.courseTypes[0].ID,
		ModuleID:   store.modules[0].ID,
		PeriodID:   store.periods[0].ID,
		RoomTypeID: store.roomTypes[0].ID,
		GroupIDs:   []uuid.UUID{store.groups[0].ID},
		Duration:   60,
	})
	tutor := store.tutors[0]
	store.userAvail[tutor.ID] = []*model.Availability{{
		BaseModel: model.NewBaseModel(),
		SubjectID: tutor.ID,
		Day:       "2026-03-02",
		Start:     600,
		End:       660,
		Value:     model.AvailabilityForbidden,
	}}

	engine := NewEngine(store, &memPersister{freeMajor: 1}, noConstraints)
	_, err := engine.Run(context.Background(), &SolveRequest{
		DepartmentID: store.department.ID,
		PeriodIDs:    []uuid.UUID{store.periods[0].ID},
		SolverName:   "branchbound",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInfeasible), "必须上报不可行: %v", err)
}

func TestEngine_MalformedConstraintAborts(t *testing.T) {
	store := newTinyStore()
	store.constraints = []*model.TimetableConstraint{{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: store.department.ID,
		Kind:         "does_not_exist",
		IsActive:     true,
	}}

	engine := NewEngine(store, &memPersister{freeMajor: 1}, noConstraints)
	_, err := engine.Run(context.Background(), &SolveRequest{
		DepartmentID: store.department.ID,
		PeriodIDs:    []uuid.UUID{store.periods[0].ID},
		SolverName:   "branchbound",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeMalformedConstraint))
}

func TestEngine_PhaseOrderEnforced(t *testing.T) {
	engine := NewEngine(newTinyStore(), &memPersister{}, noConstraints)
	err := engine.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInvalidPhase))
}

func TestGenerateSlots(t *testing.T) {
	settings := model.TimeSettings{
		DayStart:    480,
		DayEnd:      660,
		Granularity: 60,
		Weekdays:    []time.Weekday{time.Monday},
	}
	period := &model.SchedulingPeriod{
		BaseModel: model.NewBaseModel(),
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
	}

	slots := GenerateSlots(settings, []*model.SchedulingPeriod{period}, 60)
	// 一周只有一个周一，三个起点
	require.Len(t, slots, 3)
	assert.Equal(t, 480, slots[0].Start)
	assert.Equal(t, 600, slots[2].Start)
	for _, s := range slots {
		assert.Equal(t, "2026-03-02", s.Day)
		assert.Equal(t, 60, s.Duration())
	}

	// 时长超出全天则无候选
	assert.Empty(t, GenerateSlots(settings, []*model.SchedulingPeriod{period}, 300))
}
