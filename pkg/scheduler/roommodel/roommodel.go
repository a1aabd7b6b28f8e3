// Package roommodel 在时间已定的前提下重解教室分配
//
// 第二阶段 ILP：起止时间沿用既有排定，只决策每门课用哪间教室。
// 互斥沿用包含关系闭包，跨院系的发布版占用按硬性不可用处理。
package roommodel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Options 重分配选项
type Options struct {
	SolverName string
	TimeLimit  time.Duration
	Threads    int

	// Major 目标版本号；为空写入首个空闲版本
	Major     *int
	Overwrite bool

	// MoveCost 课程换教室的成本；0 取默认 1
	MoveCost float64
	// Preferences 教室类型 -> 按优先级排序的教室；排名越靠后成本越高
	Preferences map[uuid.UUID][]uuid.UUID
	// Busy 其它院系发布版的占用（视为硬性不可用）
	Busy []*model.ScheduledCourse
	// BusyDurations 占用课程的时长（课程 -> 分钟），缺省按本院系课程表查
	BusyDurations map[uuid.UUID]int
}

// Result 重分配结果
type Result struct {
	Status    ilp.Status
	Objective float64
	Duration  time.Duration
	Majors    map[uuid.UUID]int
	Courses   []*model.ScheduledCourse
}

type courseVar struct {
	sc     *model.ScheduledCourse
	course *model.Course
	slot   model.Slot
	rooms  map[uuid.UUID]ilp.VarID
}

// Reassign 对一份排定重解教室分配并写入目标版本
// 每门课得到各自独立落定的教室。
func Reassign(ctx context.Context, d *ttmodel.Data, scheduled []*model.ScheduledCourse,
	persister ttmodel.Persister, opts Options) (*Result, error) {

	if len(scheduled) == 0 {
		return nil, errors.InvalidInput("scheduled", "没有可重分配的排定")
	}
	if opts.MoveCost == 0 {
		opts.MoveCost = 1
	}

	m := ilp.NewModel()
	vars, err := buildVars(m, d, scheduled, opts)
	if err != nil {
		return nil, err
	}
	buildAssignment(m, d, vars)
	buildExclusivity(m, d, vars)
	buildCosts(m, d, vars, opts)

	name := opts.SolverName
	if name == "" {
		name = "cbc"
	}
	solver, err := ilp.NewSolver(name)
	if err != nil {
		return nil, errors.SolverUnavailable(name, err)
	}
	sol, err := solver.Solve(ctx, m, ilp.Options{TimeLimit: opts.TimeLimit, Threads: opts.Threads})
	if err != nil {
		return nil, err
	}
	logger.NewSolverLogger().SolveComplete(d.Department.Abbrev, string(sol.Status), sol.Duration, sol.Objective)

	switch sol.Status {
	case ilp.StatusInfeasible:
		return nil, errors.Infeasible("教室容量不足以覆盖既有排定")
	case ilp.StatusNoSolution:
		return nil, errors.ErrNoIncumbent
	}

	courses := extract(vars, sol.Values)
	majors, err := persist(ctx, d, courses, persister, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Status:    sol.Status,
		Objective: sol.Objective,
		Duration:  sol.Duration,
		Majors:    majors,
		Courses:   courses,
	}, nil
}

// buildVars 为每门课创建候选教室变量
// 类型不符、当时被预订或被外部占用的教室不建变量。
func buildVars(m *ilp.Model, d *ttmodel.Data, scheduled []*model.ScheduledCourse, opts Options) ([]*courseVar, error) {
	busySlots := busyRoomSlots(d, opts)

	var vars []*courseVar
	for _, sc := range scheduled {
		course := d.Course(sc.CourseID)
		if course == nil {
			return nil, errors.NotFound("课程", sc.CourseID.String())
		}
		slot := sc.Slot(course.Duration, course.PeriodID)

		cv := &courseVar{sc: sc, course: course, slot: slot, rooms: make(map[uuid.UUID]ilp.VarID)}
		for _, room := range d.Rooms.CompatibleRooms(course.RoomTypeID) {
			if d.RoomUnavailable(room.ID, slot) {
				continue
			}
			if overlapsBusy(d, busySlots, room.ID, slot) {
				continue
			}
			cv.rooms[room.ID] = m.NewVar(fmt.Sprintf("r_%s_%s", sc.CourseID.String()[:8], room.Name))
		}
		vars = append(vars, cv)
	}
	return vars, nil
}

// busyRoomSlots 其它院系占用的 (教室, 时间粒)
func busyRoomSlots(d *ttmodel.Data, opts Options) map[uuid.UUID][]model.Slot {
	busy := make(map[uuid.UUID][]model.Slot)
	for _, sc := range opts.Busy {
		if sc.RoomID == nil {
			continue
		}
		duration := opts.BusyDurations[sc.CourseID]
		if duration == 0 {
			if c := d.Course(sc.CourseID); c != nil {
				duration = c.Duration
			}
		}
		if duration == 0 {
			continue
		}
		busy[*sc.RoomID] = append(busy[*sc.RoomID], sc.Slot(duration, uuid.Nil))
	}
	return busy
}

// overlapsBusy 检查教室（含包含关系闭包）是否与外部占用重叠
func overlapsBusy(d *ttmodel.Data, busy map[uuid.UUID][]model.Slot, roomID uuid.UUID, slot model.Slot) bool {
	for _, related := range d.Rooms.RelatedRooms(roomID) {
		for _, s := range busy[related.ID] {
			if s.IsSimultaneousTo(slot) {
				return true
			}
		}
	}
	return false
}

// buildAssignment 每门课恰好一间教室（院系允许无教室时放宽为至多一间）
func buildAssignment(m *ilp.Model, d *ttmodel.Data, vars []*courseVar) {
	sense := ilp.SenseEQ
	if d.Department.AllowRoomless {
		sense = ilp.SenseLE
	}
	for _, cv := range vars {
		expr := ilp.NewExpr()
		for _, v := range cv.rooms {
			expr.AddTerm(v, 1)
		}
		m.AddConstraint(expr, sense, 1, "assign_"+cv.sc.CourseID.String()[:8])
	}
}

// buildExclusivity 重叠课程不得占用同一教室或其包含闭包内的教室
func buildExclusivity(m *ilp.Model, d *ttmodel.Data, vars []*courseVar) {
	for i, a := range vars {
		for _, b := range vars[i+1:] {
			if !a.slot.IsSimultaneousTo(b.slot) {
				continue
			}
			for roomA, va := range a.rooms {
				related := make(map[uuid.UUID]bool)
				for _, r := range d.Rooms.RelatedRooms(roomA) {
					related[r.ID] = true
				}
				for roomB, vb := range b.rooms {
					if !related[roomB] {
						continue
					}
					m.AddConstraint(ilp.SumVars(va, vb), ilp.SenseLE, 1,
						fmt.Sprintf("room_excl_%s_%s", a.sc.CourseID.String()[:8], b.sc.CourseID.String()[:8]))
				}
			}
		}
	}
}

// buildCosts 换教室成本 + 教室排序偏好成本
func buildCosts(m *ilp.Model, d *ttmodel.Data, vars []*courseVar, opts Options) {
	for _, cv := range vars {
		if cv.sc.RoomID != nil {
			for roomID, v := range cv.rooms {
				if roomID != *cv.sc.RoomID {
					m.AddToObjective(ilp.Term(v, opts.MoveCost))
				}
			}
		}
		ranked := opts.Preferences[cv.course.RoomTypeID]
		for rank, roomID := range ranked {
			if v, ok := cv.rooms[roomID]; ok && rank > 0 {
				m.AddToObjective(ilp.Term(v, float64(rank)*0.1))
			}
		}
	}
}

// extract 还原每门课各自落定的教室
func extract(vars []*courseVar, values map[ilp.VarID]int) []*model.ScheduledCourse {
	result := make([]*model.ScheduledCourse, 0, len(vars))
	for _, cv := range vars {
		clone := *cv.sc
		clone.BaseModel = model.NewBaseModel()
		clone.RoomID = nil
		for roomID, v := range cv.rooms {
			if values[v] == 1 {
				id := roomID
				clone.RoomID = &id
				break
			}
		}
		result = append(result, &clone)
	}
	return result
}

// persist 按周期写入目标版本
func persist(ctx context.Context, d *ttmodel.Data, courses []*model.ScheduledCourse,
	persister ttmodel.Persister, opts Options) (map[uuid.UUID]int, error) {

	majors := make(map[uuid.UUID]int, len(d.Periods))
	for _, p := range d.Periods {
		major := 0
		if opts.Major != nil {
			major = *opts.Major
		} else {
			free, err := persister.FirstFreeMajor(ctx, d.Department.ID, p.ID)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询空闲版本号失败")
			}
			major = free
		}

		var periodCourses []*model.ScheduledCourse
		for _, sc := range courses {
			course := d.Course(sc.CourseID)
			if course != nil && course.PeriodID == p.ID {
				sc.Major = major
				periodCourses = append(periodCourses, sc)
			}
		}
		if len(periodCourses) == 0 {
			continue
		}
		if err := persister.SaveSolution(ctx, d.Department.ID, p.ID, major, periodCourses, opts.Overwrite); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "写入教室重分配失败")
		}
		majors[p.ID] = major
	}
	return majors, nil
}
