package ttmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
)

// Phase 求解流程阶段
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseLoaded    Phase = "loaded"
	PhaseBuilt     Phase = "built"
	PhaseSolved    Phase = "solved"
	PhasePersisted Phase = "persisted"
)

// Enricher 用户约束的建模能力：把一行存储态约束注入模型
type Enricher interface {
	Kind() string
	Enrich(ctx *Context, row *model.TimetableConstraint) error
}

// Message 预分析诊断消息
type Message struct {
	Level     string      `json:"level"` // KO / warning / info
	Kind      string      `json:"kind"`
	Text      string      `json:"text"`
	CourseIDs []uuid.UUID `json:"course_ids,omitempty"`
}

// KO 创建阻断级诊断
func KO(kind, format string, args ...interface{}) Message {
	return Message{Level: "KO", Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// Warning 创建告警级诊断
func Warning(kind, format string, args ...interface{}) Message {
	return Message{Level: "warning", Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// PreAnalyser 用户约束的预分析能力（可选实现）
// 只允许报告确定性的不可行，绝不允许误报 KO。
type PreAnalyser interface {
	PreAnalyse(d *Data, row *model.TimetableConstraint) []Message
}

// ConstraintBuilder 把存储态约束行实例化为建模能力
// 未知 kind 必须返回 error，不得静默跳过。
type ConstraintBuilder func(row *model.TimetableConstraint) (Enricher, error)

// SolveRequest 一次求解请求
type SolveRequest struct {
	DepartmentID uuid.UUID
	PeriodIDs    []uuid.UUID

	SolverName string
	TimeLimit  time.Duration
	Threads    int

	// Major 指定写入的版本号；为空则写入首个空闲版本
	Major *int
	// Overwrite 目标版本已存在时是否覆盖
	Overwrite bool
}

// SolveResult 一次求解结果
type SolveResult struct {
	Status      ilp.Status
	Objective   float64
	Duration    time.Duration
	Vars        int
	Constraints int
	// Majors 周期 -> 实际写入的版本号
	Majors  map[uuid.UUID]int
	Courses []*model.ScheduledCourse
}

// Engine 求解编排器（一次性使用，阶段单向推进）
type Engine struct {
	store     Store
	persister Persister
	builder   ConstraintBuilder
	log       *logger.SolverLogger

	phase    Phase
	data     *Data
	ctx      *Context
	solution *ilp.Solution
	courses  []*model.ScheduledCourse
}

// NewEngine 创建求解编排器
func NewEngine(store Store, persister Persister, builder ConstraintBuilder) *Engine {
	return &Engine{
		store:     store,
		persister: persister,
		builder:   builder,
		log:       logger.NewSolverLogger(),
		phase:     PhaseInit,
	}
}

// Context 返回建模上下文（Build 之后可用）
func (e *Engine) Context() *Context { return e.ctx }

// Data 返回工作集（Load 之后可用）
func (e *Engine) Data() *Data { return e.data }

func (e *Engine) advance(from, to Phase) error {
	if e.phase != from {
		return errors.New(errors.CodeInvalidPhase,
			fmt.Sprintf("阶段错误: 期望 %s，当前 %s", from, e.phase))
	}
	e.phase = to
	return nil
}

// Load 加载工作集
func (e *Engine) Load(ctx context.Context, req *SolveRequest) error {
	if err := e.advance(PhaseInit, PhaseLoaded); err != nil {
		return err
	}
	data, err := LoadData(ctx, e.store, req.DepartmentID, req.PeriodIDs)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	e.data = data
	e.log.StartSolve(data.Department.Abbrev, len(data.Periods), len(data.Courses))
	return nil
}

// Build 构建模型：核心约束 + 逐条注入用户约束
// 任何一条用户约束注入失败都立刻中止，绝不带着缺约束的模型继续求解。
func (e *Engine) Build() error {
	if err := e.advance(PhaseLoaded, PhaseBuilt); err != nil {
		return err
	}
	e.ctx = NewContext(e.data)
	if err := e.ctx.BuildCore(e.log); err != nil {
		return err
	}

	for _, row := range e.data.Constraints {
		enricher, err := e.builder(row)
		if err != nil {
			return errors.MalformedConstraint(row.Kind, row.ID.String(), err)
		}
		if err := enricher.Enrich(e.ctx, row); err != nil {
			return errors.MalformedConstraint(row.Kind, row.ID.String(), err)
		}
		e.log.ConstraintApplied(row.Kind, row.ID.String())
	}

	e.ctx.BuildObjective()
	return nil
}

// Solve 运行求解器并抽取解
// 超时但带回可行解按成功处理；不可行与超时无解按不同错误码上报。
func (e *Engine) Solve(ctx context.Context, req *SolveRequest) error {
	if err := e.advance(PhaseBuilt, PhaseSolved); err != nil {
		return err
	}

	name := req.SolverName
	if name == "" {
		name = "cbc"
	}
	solver, err := ilp.NewSolver(name)
	if err != nil {
		return errors.SolverUnavailable(name, err)
	}

	sol, err := solver.Solve(ctx, e.ctx.M, ilp.Options{
		TimeLimit: req.TimeLimit,
		Threads:   req.Threads,
	})
	if err != nil {
		return err
	}
	e.solution = sol
	e.log.SolveComplete(e.data.Department.Abbrev, string(sol.Status), sol.Duration, sol.Objective)

	switch sol.Status {
	case ilp.StatusInfeasible:
		return errors.Infeasible("约束集合无解")
	case ilp.StatusNoSolution:
		return errors.ErrNoIncumbent
	}

	courses, err := e.ctx.ExtractSolution(sol.Values)
	if err != nil {
		return err
	}
	e.courses = courses
	return nil
}

// Persist 把解写入存储
// 每个周期单独确定版本号；写入由实现方保证事务性。
func (e *Engine) Persist(ctx context.Context, req *SolveRequest) (map[uuid.UUID]int, error) {
	if err := e.advance(PhaseSolved, PhasePersisted); err != nil {
		return nil, err
	}

	majors := make(map[uuid.UUID]int, len(e.data.Periods))
	for _, p := range e.data.Periods {
		major := 0
		if req.Major != nil {
			major = *req.Major
		} else {
			free, err := e.persister.FirstFreeMajor(ctx, req.DepartmentID, p.ID)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询空闲版本号失败")
			}
			major = free
		}

		var periodCourses []*model.ScheduledCourse
		for _, sc := range e.courses {
			course := e.data.Course(sc.CourseID)
			if course != nil && course.PeriodID == p.ID {
				sc.Major = major
				periodCourses = append(periodCourses, sc)
			}
		}
		if err := e.persister.SaveSolution(ctx, req.DepartmentID, p.ID, major, periodCourses, req.Overwrite); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "写入解失败")
		}
		majors[p.ID] = major
	}
	return majors, nil
}

// Run 端到端执行一次求解：加载、建模、求解、持久化
func (e *Engine) Run(ctx context.Context, req *SolveRequest) (*SolveResult, error) {
	if err := e.Load(ctx, req); err != nil {
		return nil, err
	}
	if err := e.Build(); err != nil {
		return nil, err
	}
	if err := e.Solve(ctx, req); err != nil {
		return nil, err
	}
	majors, err := e.Persist(ctx, req)
	if err != nil {
		return nil, err
	}

	vars, constraints := e.ctx.M.Stats()
	return &SolveResult{
		Status:      e.solution.Status,
		Objective:   e.solution.Objective,
		Duration:    e.solution.Duration,
		Vars:        vars,
		Constraints: constraints,
		Majors:      majors,
		Courses:     e.courses,
	}, nil
}
