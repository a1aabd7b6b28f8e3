package ilp

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Status 求解结局
type Status string

const (
	// StatusOptimal 求得最优解
	StatusOptimal Status = "optimal"
	// StatusFeasible 超时但带回可行解（按成功处理）
	StatusFeasible Status = "feasible"
	// StatusInfeasible 证明不可行
	StatusInfeasible Status = "infeasible"
	// StatusNoSolution 超时且无任何可行解（区别于不可行）
	StatusNoSolution Status = "no_solution_found"
)

// Options 求解选项
type Options struct {
	TimeLimit time.Duration
	Threads   int
}

// Solution 求解结果
type Solution struct {
	Status    Status
	Values    map[VarID]int
	Objective float64
	Duration  time.Duration
}

// Solver 求解器接口（外部黑盒，仅接收目标与约束集合）
type Solver interface {
	// Solve 求解模型；求解器自身崩溃或不可用时返回 error
	Solve(ctx context.Context, m *Model, opts Options) (*Solution, error)

	// Name 返回求解器名称
	Name() string
}

// 求解器注册表（封闭式：新增求解器需显式注册）
var solvers = map[string]func() Solver{
	"cbc":         func() Solver { return NewCBCSolver() },
	"branchbound": func() Solver { return NewBranchBoundSolver() },
}

// NewSolver 按名称创建求解器
func NewSolver(name string) (Solver, error) {
	factory, ok := solvers[name]
	if !ok {
		return nil, fmt.Errorf("未知求解器 '%s'，可选: %v", name, SolverNames())
	}
	return factory(), nil
}

// SolverNames 返回已注册的求解器名称
func SolverNames() []string {
	names := make([]string, 0, len(solvers))
	for name := range solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
