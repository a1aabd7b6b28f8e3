package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/pkg/model"
)

// newMockDB 创建 sqlmock 连接并包上慢查询日志层
func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return &database.DB{DB: raw}, mock
}

func TestGetDepartment_ParsesSettings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimetableRepository(db)

	id := uuid.New()
	now := time.Now()
	settings := []byte(`{"day_start":480,"morning_end":750,"afternoon_start":840,"day_end":1125,"granularity":15,"weekdays":[1,2,3,4,5]}`)
	mock.ExpectQuery(`SELECT .+ FROM departments`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "name", "abbrev", "settings", "visio_mode", "allow_roomless",
		}).AddRow(id, now, now, "信息学院", "INFO", settings, false, false))

	dept, err := repo.GetDepartment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "INFO", dept.Abbrev)
	assert.Equal(t, 480, dept.Settings.DayStart)
	assert.Equal(t, 15, dept.Settings.Granularity)
	assert.Len(t, dept.Settings.Weekdays, 5)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserAvailability_TemplateFallback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimetableRepository(db)

	tutorID := uuid.New()
	now := time.Now()

	// 周一有带日期的声明，周二没有
	mock.ExpectQuery(`SELECT .+ FROM user_availability\s+WHERE subject_id = \$1 AND day >=`).
		WithArgs(tutorID, "2026-03-02", "2026-03-03").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "subject_id", "day", "start_time", "end_time", "value",
		}).AddRow(uuid.New(), now, now, tutorID, "2026-03-02", 480, 720, 2))

	// 周模板：周二 (weekday=2) 上午不可用
	mock.ExpectQuery(`SELECT .+ FROM user_availability\s+WHERE subject_id = \$1 AND day IS NULL`).
		WithArgs(tutorID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "subject_id", "weekday", "start_time", "end_time", "value",
		}).AddRow(uuid.New(), now, now, tutorID, 2, 480, 720, 0))

	avail, err := repo.GetUserAvailability(context.Background(), tutorID, "2026-03-02", "2026-03-03")
	require.NoError(t, err)
	require.Len(t, avail, 2)

	byDay := make(map[string]*model.Availability)
	for _, a := range avail {
		byDay[a.Day] = a
	}
	assert.Equal(t, 2, byDay["2026-03-02"].Value, "带日期声明原样保留")
	require.NotNil(t, byDay["2026-03-03"], "未声明日期套用周模板")
	assert.Equal(t, 0, byDay["2026-03-03"].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserAvailability_DatedBeatsTemplate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimetableRepository(db)

	tutorID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM user_availability\s+WHERE subject_id = \$1 AND day >=`).
		WithArgs(tutorID, "2026-03-02", "2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "subject_id", "day", "start_time", "end_time", "value",
		}).AddRow(uuid.New(), now, now, tutorID, "2026-03-02", 480, 720, 8))

	// 模板对周一也有声明，但该日期已有带日期声明，不再套用
	mock.ExpectQuery(`SELECT .+ FROM user_availability\s+WHERE subject_id = \$1 AND day IS NULL`).
		WithArgs(tutorID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "subject_id", "weekday", "start_time", "end_time", "value",
		}).AddRow(uuid.New(), now, now, tutorID, 1, 480, 720, 0))

	avail, err := repo.GetUserAvailability(context.Background(), tutorID, "2026-03-02", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, 8, avail[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSolution_CreatesVersionInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSolutionRepository(db)

	deptID, periodID := uuid.New(), uuid.New()
	courses := []*model.ScheduledCourse{
		{CourseID: uuid.New(), Day: "2026-03-02", Start: 480},
		{CourseID: uuid.New(), Day: "2026-03-02", Start: 540},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM timetable_versions`).
		WithArgs(deptID, periodID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"})) // 不存在
	mock.ExpectExec(`INSERT INTO timetable_versions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO scheduled_courses`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO scheduled_courses`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveSolution(context.Background(), deptID, periodID, 1, courses, false)
	require.NoError(t, err)
	assert.Equal(t, 1, courses[0].Major)
	assert.NotEqual(t, uuid.Nil, courses[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSolution_ExistingVersionWithoutOverwriteRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSolutionRepository(db)

	deptID, periodID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM timetable_versions`).
		WithArgs(deptID, periodID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	err := repo.SaveSolution(context.Background(), deptID, periodID, 2,
		[]*model.ScheduledCourse{{CourseID: uuid.New()}}, false)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirstFreeMajor_ReusesDeletedHole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSolutionRepository(db)

	deptID, periodID := uuid.New(), uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "department_id", "period_id", "major", "stamp",
	})
	// 版本号 2 被删除后留下空洞
	for _, major := range []int{0, 1, 3} {
		rows.AddRow(uuid.New(), now, now, deptID, periodID, major, 0)
	}
	mock.ExpectQuery(`SELECT .+ FROM timetable_versions`).
		WithArgs(deptID, periodID).
		WillReturnRows(rows)

	major, err := repo.FirstFreeMajor(context.Background(), deptID, periodID)
	require.NoError(t, err)
	assert.Equal(t, 2, major, "空洞优先于递增")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapMajors_SingleTransactionViaTempMajor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSolutionRepository(db)

	deptID, periodID := uuid.New(), uuid.New()
	a := &model.TimetableVersion{BaseModel: model.NewBaseModel(), DepartmentID: deptID, PeriodID: periodID, Major: 2, Stamp: 0}
	b := &model.TimetableVersion{BaseModel: model.NewBaseModel(), DepartmentID: deptID, PeriodID: periodID, Major: 0, Stamp: 5}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE timetable_versions SET major = \$2 WHERE id = \$1`).
		WithArgs(a.ID, tempMajor).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE timetable_versions SET major = \$2, stamp = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduled_courses SET major = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE timetable_versions SET major = \$2, stamp = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduled_courses SET major = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SwapMajors(context.Background(), a, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriorCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSolutionRepository(db)

	moduleID, typeID := uuid.New(), uuid.New()
	groupIDs := []uuid.UUID{uuid.New()}
	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM scheduled_courses`).
		WithArgs(moduleID, typeID, pq.Array(groupIDsToStrings(groupIDs)), "2026-03-02", model.CanonicalMajor).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.PriorCount(context.Background(), moduleID, typeID, groupIDs, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
