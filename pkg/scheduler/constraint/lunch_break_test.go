package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
)

// 全天只有两个起点，两门课必然占满；硬性午休无处安放
func TestLunchBreak_HardFullyBookedInfeasible(t *testing.T) {
	d := newTestData(t, 2)

	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "lunch_break",
		Params:       model.JSONMap{"start": 480, "end": 600, "duration": 60},
	}
	_, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	assert.Equal(t, ilp.StatusInfeasible, sol.Status)
}

// 同场景软化后必须可行，且违反计入目标
func TestLunchBreak_SoftViolationCosted(t *testing.T) {
	d := newTestData(t, 2)

	weight := 4
	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "lunch_break",
		Weight:       &weight,
		Params:       model.JSONMap{"start": 480, "end": 600, "duration": 60},
	}
	_, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	require.Equal(t, ilp.StatusOptimal, sol.Status)
	assert.Greater(t, sol.Objective, 0.0, "无法满足的软午休必须付出成本")
}

// 一门课时全天仍有空档，午休自然成立
func TestLunchBreak_FeasibleWithFreeSlot(t *testing.T) {
	d := newTestData(t, 1)

	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "lunch_break",
		Params:       model.JSONMap{"start": 480, "end": 600, "duration": 60},
	}
	_, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	assert.Equal(t, ilp.StatusOptimal, sol.Status)
}

func TestLunchBreak_RejectsImpossibleWindow(t *testing.T) {
	d := newTestData(t, 1)

	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "lunch_break",
		Params:    model.JSONMap{"start": 480, "end": 510, "duration": 60},
	}
	enricher, err := Build(row)
	require.NoError(t, err)

	ctxM, _ := buildContextOnly(t, d)
	assert.Error(t, enricher.Enrich(ctxM, row), "窗口装不下午休必须报错")
}

func TestLunchBreak_AuditDetectsViolation(t *testing.T) {
	d := newTestData(t, 2)
	lb := NewLunchBreak()
	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "lunch_break",
		Params:    model.JSONMap{"start": 480, "end": 600, "duration": 60},
	}

	// 两门课占满全天
	full := []*model.ScheduledCourse{
		{BaseModel: model.NewBaseModel(), CourseID: d.Courses[0].ID, Day: "2026-03-02", Start: 480},
		{BaseModel: model.NewBaseModel(), CourseID: d.Courses[1].ID, Day: "2026-03-02", Start: 540},
	}
	assert.False(t, lb.IsSatisfied(d, row, full))

	// 只排一门，留有午休
	partial := full[:1]
	assert.True(t, lb.IsSatisfied(d, row, partial))
}
