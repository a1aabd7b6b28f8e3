package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
	"github.com/kebiao/kebiao/pkg/version"
)

// fakeStore 内存工作集存储
type fakeStore struct {
	dept           *model.Department
	period         *model.SchedulingPeriod
	courses        []*model.Course
	courseTypes    []*model.CourseType
	modules        []*model.Module
	trainProgs     []*model.TrainProg
	tutors         []*model.Tutor
	possibleTutors map[uuid.UUID][]uuid.UUID
	groups         []*model.Group
	rooms          []*model.Room
	roomTypes      []*model.RoomType
	scheduled      []*model.ScheduledCourse
}

func (s *fakeStore) GetDepartment(_ context.Context, _ uuid.UUID) (*model.Department, error) {
	return s.dept, nil
}
func (s *fakeStore) GetPeriods(_ context.Context, _ []uuid.UUID) ([]*model.SchedulingPeriod, error) {
	return []*model.SchedulingPeriod{s.period}, nil
}
func (s *fakeStore) GetCourses(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*model.Course, error) {
	return s.courses, nil
}
func (s *fakeStore) GetCourseTypes(_ context.Context, _ uuid.UUID) ([]*model.CourseType, error) {
	return s.courseTypes, nil
}
func (s *fakeStore) GetModules(_ context.Context, _ uuid.UUID) ([]*model.Module, error) {
	return s.modules, nil
}
func (s *fakeStore) GetTrainProgs(_ context.Context, _ uuid.UUID) ([]*model.TrainProg, error) {
	return s.trainProgs, nil
}
func (s *fakeStore) GetTutors(_ context.Context, _ uuid.UUID) ([]*model.Tutor, error) {
	return s.tutors, nil
}
func (s *fakeStore) GetPossibleTutors(_ context.Context, _ uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	return s.possibleTutors, nil
}
func (s *fakeStore) GetGroups(_ context.Context, _ uuid.UUID) ([]*model.Group, error) {
	return s.groups, nil
}
func (s *fakeStore) GetRooms(_ context.Context, _ uuid.UUID) ([]*model.Room, error) {
	return s.rooms, nil
}
func (s *fakeStore) GetRoomTypes(_ context.Context, _ uuid.UUID) ([]*model.RoomType, error) {
	return s.roomTypes, nil
}
func (s *fakeStore) GetActiveConstraints(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*model.TimetableConstraint, error) {
	return nil, nil
}
func (s *fakeStore) GetUserAvailability(_ context.Context, _ uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return nil, nil
}
func (s *fakeStore) GetRoomAvailability(_ context.Context, _ uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return nil, nil
}
func (s *fakeStore) GetRoomReservations(_ context.Context, _ uuid.UUID, _, _ string) ([]*model.RoomReservation, error) {
	return nil, nil
}
func (s *fakeStore) GetTrainProgAvailability(_ context.Context, _ uuid.UUID, _, _ string) ([]*model.Availability, error) {
	return nil, nil
}
func (s *fakeStore) GetScheduledCourses(_ context.Context, _, _ uuid.UUID, _ int) ([]*model.ScheduledCourse, error) {
	return s.scheduled, nil
}

// crossStore 在工作集存储上叠加跨院系查询能力
type crossStore struct {
	*fakeStore
	external []*version.ExternalCourse
	queried  bool
}

func (s *crossStore) GetExternalPlacements(_ context.Context, _ uuid.UUID, _, _ string) ([]*version.ExternalCourse, error) {
	s.queried = true
	return s.external, nil
}

// fakePersister 记录写入的解
type fakePersister struct {
	saved map[uuid.UUID][]*model.ScheduledCourse
}

func (p *fakePersister) FirstFreeMajor(_ context.Context, _, _ uuid.UUID) (int, error) {
	return 1, nil
}
func (p *fakePersister) SaveSolution(_ context.Context, _, periodID uuid.UUID, _ int,
	courses []*model.ScheduledCourse, _ bool) error {
	if p.saved == nil {
		p.saved = make(map[uuid.UUID][]*model.ScheduledCourse)
	}
	p.saved[periodID] = courses
	return nil
}

// fakeVersionStore 版本操作不在本文件的测试范围
type fakeVersionStore struct{}

func (fakeVersionStore) GetVersion(context.Context, uuid.UUID, uuid.UUID, int) (*model.TimetableVersion, error) {
	return nil, nil
}
func (fakeVersionStore) ListVersions(context.Context, uuid.UUID, uuid.UUID) ([]*model.TimetableVersion, error) {
	return nil, nil
}
func (fakeVersionStore) CreateVersion(context.Context, *model.TimetableVersion) error { return nil }
func (fakeVersionStore) DeleteVersion(context.Context, uuid.UUID) error               { return nil }
func (fakeVersionStore) SwapMajors(context.Context, *model.TimetableVersion, *model.TimetableVersion) error {
	return nil
}
func (fakeVersionStore) GetScheduledCourses(context.Context, uuid.UUID) ([]*model.ScheduledCourse, error) {
	return nil, nil
}
func (fakeVersionStore) SaveScheduledCourses(context.Context, uuid.UUID, []*model.ScheduledCourse) error {
	return nil
}
func (fakeVersionStore) DeleteModifications(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (fakeVersionStore) PriorCount(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID, string) (int, error) {
	return 0, nil
}

// newFakeStore 单日、单课程、单教室的最小场景
func newFakeStore(withTutor bool) *fakeStore {
	dept := &model.Department{
		BaseModel: model.NewBaseModel(),
		Abbrev:    "INFO",
		Settings: model.TimeSettings{
			DayStart:       480,
			MorningEnd:     540,
			AfternoonStart: 540,
			DayEnd:         600,
			Granularity:    60,
			Weekdays:       []time.Weekday{time.Monday},
		},
	}
	period := &model.SchedulingPeriod{
		BaseModel: model.NewBaseModel(),
		StartDate: "2026-03-02",
		EndDate:   "2026-03-02",
	}
	trainProg := &model.TrainProg{BaseModel: model.NewBaseModel(), DepartmentID: dept.ID}
	group := &model.Group{BaseModel: model.NewBaseModel(), Name: "1班", TrainProgID: trainProg.ID, Kind: model.GroupStructural}
	roomType := &model.RoomType{BaseModel: model.NewBaseModel(), Name: "普通教室", DepartmentID: dept.ID}
	room := &model.Room{BaseModel: model.NewBaseModel(), Name: "A101", TypeIDs: []uuid.UUID{roomType.ID}}
	module := &model.Module{BaseModel: model.NewBaseModel(), TrainProgID: trainProg.ID, PeriodID: period.ID}
	courseType := &model.CourseType{BaseModel: model.NewBaseModel(), DepartmentID: dept.ID, Duration: 60}
	tutor := &model.Tutor{BaseModel: model.NewBaseModel(), Username: "zhang", DepartmentIDs: []uuid.UUID{dept.ID}}

	course := &model.Course{
		BaseModel:  model.NewBaseModel(),
		TypeID:     courseType.ID,
		ModuleID:   module.ID,
		PeriodID:   period.ID,
		RoomTypeID: roomType.ID,
		GroupIDs:   []uuid.UUID{group.ID},
		Duration:   60,
	}

	store := &fakeStore{
		dept:           dept,
		period:         period,
		courses:        []*model.Course{course},
		courseTypes:    []*model.CourseType{courseType},
		modules:        []*model.Module{module},
		trainProgs:     []*model.TrainProg{trainProg},
		groups:         []*model.Group{group},
		rooms:          []*model.Room{room},
		roomTypes:      []*model.RoomType{roomType},
		possibleTutors: map[uuid.UUID][]uuid.UUID{},
	}
	if withTutor {
		store.tutors = []*model.Tutor{tutor}
		store.possibleTutors[module.ID] = []uuid.UUID{tutor.ID}
	}
	return store
}

func testConfig() *config.Config {
	return &config.Config{
		Solver: config.SolverConfig{
			Name:      "branchbound",
			TimeLimit: 30 * time.Second,
			Threads:   1,
		},
	}
}

func TestSolve_PreAnalysisRejectsCourseWithoutTutor(t *testing.T) {
	svc := New(testConfig(), newFakeStore(false), &fakePersister{}, fakeVersionStore{})

	_, err := svc.Solve(context.Background(), &ttmodel.SolveRequest{
		DepartmentID: uuid.New(),
		PeriodIDs:    []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInfeasible))
}

func TestSolve_EndToEndWithDefaults(t *testing.T) {
	store := newFakeStore(true)
	persister := &fakePersister{}
	svc := New(testConfig(), store, persister, fakeVersionStore{})

	// 求解器、时限、线程数全部留空，由配置补齐
	result, err := svc.Solve(context.Background(), &ttmodel.SolveRequest{
		DepartmentID: store.dept.ID,
		PeriodIDs:    []uuid.UUID{store.period.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusOptimal, result.Status)
	require.Len(t, result.Courses, 1)
	require.NotNil(t, result.Courses[0].TutorID)
	assert.Len(t, persister.saved[store.period.ID], 1)
}

func TestGetConflicts_AutoFetchesOtherDepartments(t *testing.T) {
	base := newFakeStore(true)
	tutorID := base.tutors[0].ID
	base.scheduled = []*model.ScheduledCourse{{
		BaseModel: model.NewBaseModel(),
		CourseID:  base.courses[0].ID,
		Day:       "2026-03-02",
		Start:     480,
		TutorID:   &tutorID,
	}}
	// 另一院系发布版同一时刻占用同一教师
	store := &crossStore{fakeStore: base, external: []*version.ExternalCourse{{
		Scheduled: &model.ScheduledCourse{
			BaseModel: model.NewBaseModel(),
			CourseID:  uuid.New(),
			Day:       "2026-03-02",
			Start:     510,
			TutorID:   &tutorID,
		},
		Duration: 60,
	}}}
	svc := New(testConfig(), store, &fakePersister{}, fakeVersionStore{})

	conflicts, err := svc.GetConflicts(context.Background(), base.dept.ID, base.period.ID, 0, nil)
	require.NoError(t, err)
	assert.True(t, store.queried, "others 缺省时应自动拉取外部排定")
	require.Len(t, conflicts, 1)
	assert.Equal(t, "tutor", conflicts[0].Kind)
	assert.Equal(t, tutorID, conflicts[0].SubjectID)
}

func TestGetConflicts_CallerSuppliedOthersWins(t *testing.T) {
	base := newFakeStore(true)
	store := &crossStore{fakeStore: base, external: []*version.ExternalCourse{{
		Scheduled: &model.ScheduledCourse{BaseModel: model.NewBaseModel(), Day: "2026-03-02", Start: 480},
		Duration:  60,
	}}}
	svc := New(testConfig(), store, &fakePersister{}, fakeVersionStore{})

	_, err := svc.GetConflicts(context.Background(), base.dept.ID, base.period.ID, 0,
		[]*version.ExternalCourse{})
	require.NoError(t, err)
	assert.False(t, store.queried, "调用方已提供 others 时不再查询")
}

func TestPreAnalyse_ReportsAllBlockingReasons(t *testing.T) {
	store := newFakeStore(false)
	svc := New(testConfig(), store, &fakePersister{}, fakeVersionStore{})

	report, err := svc.PreAnalyse(context.Background(), store.dept.ID, []uuid.UUID{store.period.ID})
	require.NoError(t, err)
	assert.False(t, report.OK)
	require.NotEmpty(t, report.Messages)
	assert.Equal(t, "course_no_tutor", report.Messages[0].Kind)
}
