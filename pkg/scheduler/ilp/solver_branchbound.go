package ilp

import (
	"context"
	"math"
	"time"
)

// branchBoundSolver 进程内分支定界求解器
// 不依赖外部二进制，适合小模型与测试；完整枚举保证
// 不可行判定是确定性的。
type branchBoundSolver struct{}

// NewBranchBoundSolver 创建分支定界求解器
func NewBranchBoundSolver() Solver {
	return &branchBoundSolver{}
}

// Name 返回求解器名称
func (s *branchBoundSolver) Name() string { return "branchbound" }

// bbState 搜索过程的共享状态
type bbState struct {
	m         *Model
	values    []int8 // -1 未定, 0/1 已定
	best      map[VarID]int
	bestObj   float64
	deadline  time.Time
	timedOut  bool
	exhausted bool
}

// Solve 求解模型
func (s *branchBoundSolver) Solve(ctx context.Context, m *Model, opts Options) (*Solution, error) {
	start := time.Now()

	st := &bbState{
		m:         m,
		values:    make([]int8, len(m.Vars)),
		bestObj:   math.Inf(1),
		exhausted: true,
	}
	for i := range st.values {
		st.values[i] = -1
	}
	if opts.TimeLimit > 0 {
		st.deadline = start.Add(opts.TimeLimit)
	}

	st.search(ctx, 0)

	sol := &Solution{Duration: time.Since(start)}
	switch {
	case st.best != nil && st.exhausted:
		sol.Status = StatusOptimal
		sol.Values = st.best
		sol.Objective = st.bestObj
	case st.best != nil:
		// 超时但有在手解：按成功处理
		sol.Status = StatusFeasible
		sol.Values = st.best
		sol.Objective = st.bestObj
	case st.exhausted:
		sol.Status = StatusInfeasible
	default:
		sol.Status = StatusNoSolution
	}
	return sol, nil
}

// search 深度优先枚举，带可行性与目标下界剪枝
func (st *bbState) search(ctx context.Context, depth int) {
	if st.timedOut {
		return
	}
	if !st.deadline.IsZero() && time.Now().After(st.deadline) || ctx.Err() != nil {
		st.timedOut = true
		st.exhausted = false
		return
	}

	if !st.feasiblePartial() {
		return
	}
	if st.objectiveLowerBound() >= st.bestObj {
		return
	}

	if depth == len(st.m.Vars) {
		st.record()
		return
	}

	for _, v := range []int8{0, 1} {
		st.values[depth] = v
		st.search(ctx, depth+1)
		st.values[depth] = -1
	}
}

// record 记录完整可行解
func (st *bbState) record() {
	values := make(map[VarID]int, len(st.values))
	obj := st.m.Objective.Constant
	for id, v := range st.values {
		if v == 1 {
			values[VarID(id)] = 1
			obj += st.m.Objective.Coeffs[VarID(id)]
		}
	}
	if obj < st.bestObj {
		st.bestObj = obj
		st.best = values
	}
}

// feasiblePartial 检查部分赋值下各约束仍可能满足
// 对每条约束计算自由变量能达到的 LHS 区间，与 RHS 比较。
func (st *bbState) feasiblePartial() bool {
	for _, c := range st.m.Constraints {
		lo, hi := c.Expr.Constant, c.Expr.Constant
		for v, coeff := range c.Expr.Coeffs {
			switch st.values[v] {
			case 1:
				lo += coeff
				hi += coeff
			case -1:
				if coeff > 0 {
					hi += coeff
				} else {
					lo += coeff
				}
			}
		}
		const eps = 1e-6
		switch c.Sense {
		case SenseEQ:
			if lo > c.RHS+eps || hi < c.RHS-eps {
				return false
			}
		case SenseLE:
			if lo > c.RHS+eps {
				return false
			}
		default:
			if hi < c.RHS-eps {
				return false
			}
		}
	}
	return true
}

// objectiveLowerBound 计算当前部分赋值下目标的下界
func (st *bbState) objectiveLowerBound() float64 {
	lb := st.m.Objective.Constant
	for v, coeff := range st.m.Objective.Coeffs {
		switch st.values[v] {
		case 1:
			lb += coeff
		case -1:
			if coeff < 0 {
				lb += coeff
			}
		}
	}
	return lb
}
