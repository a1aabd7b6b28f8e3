package constraint

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// newTestData 手工构造最小工作集：
// 单日两个起点（8:00 / 9:00）、一名教师、一间教室、若干 60 分钟课程。
func newTestData(t *testing.T, numCourses int) *ttmodel.Data {
	t.Helper()

	dept := &model.Department{
		BaseModel: model.NewBaseModel(),
		Name:      "信息学院",
		Abbrev:    "INFO",
		Settings: model.TimeSettings{
			DayStart:       480,
			MorningEnd:     540,
			AfternoonStart: 540,
			DayEnd:         600,
			Granularity:    60,
			Weekdays:       []time.Weekday{time.Monday},
		},
		AllowRoomless: false,
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
	hierarchy, err := model.NewGroupHierarchy([]*model.Group{group})
	require.NoError(t, err)

	roomType := &model.RoomType{BaseModel: model.NewBaseModel(), Name: "普通教室", DepartmentID: dept.ID}
	room := &model.Room{BaseModel: model.NewBaseModel(), Name: "A101", TypeIDs: []uuid.UUID{roomType.ID}}
	courseType := &model.CourseType{BaseModel: model.NewBaseModel(), Name: "讲座", DepartmentID: dept.ID, Duration: 60,
		GroupKinds: []model.GroupKind{model.GroupStructural}}
	module := &model.Module{BaseModel: model.NewBaseModel(), Name: "算法", Abbrev: "ALGO", TrainProgID: trainProg.ID, PeriodID: period.ID}
	tutor := &model.Tutor{BaseModel: model.NewBaseModel(), Username: "zhang", FullName: "张老师"}

	courses := make([]*model.Course, numCourses)
	for i := range courses {
		courses[i] = &model.Course{
			BaseModel:  model.NewBaseModel(),
			TypeID:     courseType.ID,
			ModuleID:   module.ID,
			PeriodID:   period.ID,
			RoomTypeID: roomType.ID,
			GroupIDs:   []uuid.UUID{group.ID},
			Duration:   60,
		}
	}

	return &ttmodel.Data{
		Department:  dept,
		Periods:     []*model.SchedulingPeriod{period},
		Courses:     courses,
		CourseTypes: map[uuid.UUID]*model.CourseType{courseType.ID: courseType},
		Modules:     map[uuid.UUID]*model.Module{module.ID: module},
		TrainProgs:  map[uuid.UUID]*model.TrainProg{trainProg.ID: trainProg},
		Tutors:      map[uuid.UUID]*model.Tutor{tutor.ID: tutor},
		RoomTypes:   map[uuid.UUID]*model.RoomType{roomType.ID: roomType},
		PossibleTutors: map[uuid.UUID][]uuid.UUID{
			module.ID: {tutor.ID},
		},
		Groups:           hierarchy,
		Rooms:            model.NewRoomIndex([]*model.Room{room}),
		UserAvailability: map[uuid.UUID][]*model.Availability{},
		RoomAvailability: map[uuid.UUID][]*model.Availability{},
		Reservations:     map[uuid.UUID][]*model.RoomReservation{},
		Reference:        map[uuid.UUID]*model.ScheduledCourse{},
	}
}

// buildAndSolve 核心建模 + 指定约束注入 + 进程内求解
func buildAndSolve(t *testing.T, d *ttmodel.Data, rows []*model.TimetableConstraint) (*ttmodel.Context, *ilp.Solution) {
	t.Helper()

	ctx := ttmodel.NewContext(d)
	require.NoError(t, ctx.BuildCore(logger.NewSolverLogger()))

	for _, row := range rows {
		enricher, err := Build(row)
		require.NoError(t, err)
		require.NoError(t, enricher.Enrich(ctx, row))
	}
	ctx.BuildObjective()

	sol, err := ilp.NewBranchBoundSolver().Solve(context.Background(), ctx.M, ilp.Options{})
	require.NoError(t, err)
	return ctx, sol
}

// buildContextOnly 仅完成核心建模，不注入用户约束
func buildContextOnly(t *testing.T, d *ttmodel.Data) (*ttmodel.Context, *ilp.Model) {
	t.Helper()
	ctx := ttmodel.NewContext(d)
	require.NoError(t, ctx.BuildCore(logger.NewSolverLogger()))
	return ctx, ctx.M
}

func TestBuild_UnknownKindRejected(t *testing.T) {
	row := &model.TimetableConstraint{Kind: "no_such_kind"}
	_, err := Build(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_kind")
}

func TestBuild_AllRegisteredKinds(t *testing.T) {
	for _, kind := range Kinds() {
		enricher, err := Build(&model.TimetableConstraint{Kind: kind})
		require.NoError(t, err, kind)
		assert.Equal(t, kind, enricher.Kind())
	}
}

func TestSelectCourses_Selectors(t *testing.T) {
	d := newTestData(t, 2)
	moduleID := d.Courses[0].ModuleID

	t.Run("空选择器不限", func(t *testing.T) {
		row := &model.TimetableConstraint{}
		assert.Len(t, SelectCourses(d, row), 2)
	})

	t.Run("模块选择器", func(t *testing.T) {
		row := &model.TimetableConstraint{ModuleIDs: []uuid.UUID{moduleID}}
		assert.Len(t, SelectCourses(d, row), 2)

		row = &model.TimetableConstraint{ModuleIDs: []uuid.UUID{uuid.New()}}
		assert.Empty(t, SelectCourses(d, row))
	})

	t.Run("教师选择器按资格过滤", func(t *testing.T) {
		var tutorID uuid.UUID
		for id := range d.Tutors {
			tutorID = id
		}
		row := &model.TimetableConstraint{TutorIDs: []uuid.UUID{tutorID}}
		assert.Len(t, SelectCourses(d, row), 2)

		row = &model.TimetableConstraint{TutorIDs: []uuid.UUID{uuid.New()}}
		assert.Empty(t, SelectCourses(d, row))
	})

	t.Run("周期选择器", func(t *testing.T) {
		other := uuid.New()
		row := &model.TimetableConstraint{PeriodID: &other}
		assert.Empty(t, SelectCourses(d, row))
	})
}

func TestPrecedence_OrdersCourses(t *testing.T) {
	d := newTestData(t, 2)
	first, second := d.Courses[0], d.Courses[1]

	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "precedence",
		Params: model.JSONMap{
			"first_course_id":  first.ID.String(),
			"second_course_id": second.ID.String(),
		},
	}
	ctx, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	require.Equal(t, ilp.StatusOptimal, sol.Status)

	courses, err := ctx.ExtractSolution(sol.Values)
	require.NoError(t, err)
	placement := make(map[uuid.UUID]int)
	for _, sc := range courses {
		placement[sc.CourseID] = sc.Start
	}
	assert.Less(t, placement[first.ID], placement[second.ID], "前驱必须先排")
}

func TestDayOff_HardMakesInfeasible(t *testing.T) {
	d := newTestData(t, 1)
	var tutorID uuid.UUID
	for id := range d.Tutors {
		tutorID = id
	}

	// 唯一工作日被声明为休息日
	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "day_off",
		TutorIDs:     []uuid.UUID{tutorID},
		Weekdays:     []time.Weekday{time.Monday},
	}
	_, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	assert.Equal(t, ilp.StatusInfeasible, sol.Status)
}

func TestLimitSimultaneous_NoOpWhenUnderLimit(t *testing.T) {
	d := newTestData(t, 2)
	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "limit_simultaneous",
		Params:    model.JSONMap{"limit": 2},
	}
	ctx := ttmodel.NewContext(d)
	require.NoError(t, ctx.BuildCore(logger.NewSolverLogger()))
	before := len(ctx.M.Constraints)

	enricher, err := Build(row)
	require.NoError(t, err)
	require.NoError(t, enricher.Enrich(ctx, row))
	assert.Equal(t, before, len(ctx.M.Constraints), "课程数不超上限时不加约束")
}

func TestCurfew_SilentWithoutVisioMode(t *testing.T) {
	d := newTestData(t, 1)
	d.Department.VisioMode = false

	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "curfew",
		Params:    model.JSONMap{"after": 540},
	}
	ctx := ttmodel.NewContext(d)
	require.NoError(t, ctx.BuildCore(logger.NewSolverLogger()))
	before := len(ctx.M.Constraints)

	enricher, err := Build(row)
	require.NoError(t, err)
	require.NoError(t, enricher.Enrich(ctx, row))
	assert.Equal(t, before, len(ctx.M.Constraints), "未开远程模式时宵禁不生效")
}

func TestStabilization_SoftPrefersReference(t *testing.T) {
	d := newTestData(t, 1)
	course := d.Courses[0]
	// 发布版把课排在 9:00
	d.Reference[course.ID] = &model.ScheduledCourse{
		BaseModel: model.NewBaseModel(),
		CourseID:  course.ID,
		Day:       "2026-03-02",
		Start:     540,
	}

	weight := 4
	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "stabilization",
		Weight:    &weight,
	}
	ctx, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	require.Equal(t, ilp.StatusOptimal, sol.Status)

	courses, err := ctx.ExtractSolution(sol.Values)
	require.NoError(t, err)
	assert.Equal(t, 540, courses[0].Start, "软稳定化应把课拉回原时段")
}
