package ilp

import (
	"fmt"
)

// Sense 约束方向
type Sense string

const (
	SenseEQ Sense = "=="
	SenseLE Sense = "<="
	SenseGE Sense = ">="
)

// BigM 条件软约束线性化用的大 M 常数
// 可调参数：必须大于被线性化差值的最大可能取值，否则构造不成立。
const BigM = 100.0

// Var 决策变量（全部为 0/1 布尔变量）
type Var struct {
	ID   VarID
	Name string
}

// Constraint 线性约束
type Constraint struct {
	Expr  *LinExpr
	Sense Sense
	RHS   float64
	Label string // 约束来源标识，便于诊断不可行
}

// Satisfied 按赋值检查约束是否成立
func (c *Constraint) Satisfied(values map[VarID]int) bool {
	lhs := c.Expr.Eval(values)
	const eps = 1e-6
	switch c.Sense {
	case SenseEQ:
		return lhs > c.RHS-eps && lhs < c.RHS+eps
	case SenseLE:
		return lhs <= c.RHS+eps
	default:
		return lhs >= c.RHS-eps
	}
}

// Model 0/1 整数线性规划模型（目标恒为最小化）
type Model struct {
	Vars        []*Var
	Constraints []*Constraint
	Objective   *LinExpr
}

// NewModel 创建空模型
func NewModel() *Model {
	return &Model{Objective: NewExpr()}
}

// NewVar 创建布尔决策变量
func (m *Model) NewVar(name string) VarID {
	id := VarID(len(m.Vars))
	m.Vars = append(m.Vars, &Var{ID: id, Name: name})
	return id
}

// AddConstraint 添加约束
func (m *Model) AddConstraint(expr *LinExpr, sense Sense, rhs float64, label string) {
	m.Constraints = append(m.Constraints, &Constraint{
		Expr:  expr,
		Sense: sense,
		RHS:   rhs,
		Label: label,
	})
}

// AddToObjective 向目标函数累加成本项
func (m *Model) AddToObjective(expr *LinExpr) {
	m.Objective.AddExpr(expr)
}

// NewFloorVar 创建指示变量 b：b=1 当且仅当 expr >= threshold
//
// 线性化（upper 为 expr 的取值上界）：
//	expr >= threshold * b          （b=1 时强制达到阈值）
//	expr <= threshold - 1 + (upper - threshold + 1) * b （未达阈值时强制 b=0）
func (m *Model) NewFloorVar(expr *LinExpr, threshold, upper float64, name string) VarID {
	b := m.NewVar(name)

	lower := expr.Clone()
	lower.AddTerm(b, -threshold)
	m.AddConstraint(lower, SenseGE, 0, name+"_floor_lo")

	upperC := expr.Clone()
	upperC.AddTerm(b, -(upper - threshold + 1))
	m.AddConstraint(upperC, SenseLE, threshold-1, name+"_floor_hi")

	return b
}

// NewViolationVar 创建违反指示变量 v：当 lhs > rhs 不得不成立时 v 被迫为 1
//
// 大 M 线性化：lhs - rhs <= M * v。用于"尽量满足 lhs <= rhs"的软约束，
// 调用方把 v 计入成本即可。
func (m *Model) NewViolationVar(lhs *LinExpr, rhs float64, name string) VarID {
	v := m.NewVar(name)
	c := lhs.Clone()
	c.AddTerm(v, -BigM)
	m.AddConstraint(c, SenseLE, rhs, name+"_bigm")
	return v
}

// Stats 返回模型规模
func (m *Model) Stats() (vars, constraints int) {
	return len(m.Vars), len(m.Constraints)
}

// CheckSolution 校验赋值满足全部约束，返回首个被违反的约束
func (m *Model) CheckSolution(values map[VarID]int) error {
	for _, c := range m.Constraints {
		if !c.Satisfied(values) {
			return fmt.Errorf("约束 '%s' 被违反: %s %s %g", c.Label, c.Expr, c.Sense, c.RHS)
		}
	}
	return nil
}
