// Package ilp 提供整数线性规划的建模词汇与可插拔求解器
package ilp

import (
	"fmt"
	"sort"
	"strings"
)

// VarID 决策变量标识
type VarID int

// LinExpr 线性表达式（系数映射 + 常数项）
type LinExpr struct {
	Coeffs   map[VarID]float64
	Constant float64
}

// NewExpr 创建空表达式
func NewExpr() *LinExpr {
	return &LinExpr{Coeffs: make(map[VarID]float64)}
}

// Term 创建单项表达式
func Term(v VarID, coeff float64) *LinExpr {
	e := NewExpr()
	e.Coeffs[v] = coeff
	return e
}

// AddTerm 累加一项
func (e *LinExpr) AddTerm(v VarID, coeff float64) *LinExpr {
	e.Coeffs[v] += coeff
	return e
}

// AddExpr 累加另一表达式
func (e *LinExpr) AddExpr(other *LinExpr) *LinExpr {
	if other == nil {
		return e
	}
	for v, c := range other.Coeffs {
		e.Coeffs[v] += c
	}
	e.Constant += other.Constant
	return e
}

// AddConstant 累加常数项
func (e *LinExpr) AddConstant(c float64) *LinExpr {
	e.Constant += c
	return e
}

// Scale 返回表达式的倍数（新表达式）
func (e *LinExpr) Scale(factor float64) *LinExpr {
	scaled := NewExpr()
	for v, c := range e.Coeffs {
		scaled.Coeffs[v] = c * factor
	}
	scaled.Constant = e.Constant * factor
	return scaled
}

// Clone 返回表达式副本
func (e *LinExpr) Clone() *LinExpr {
	cloned := NewExpr()
	for v, c := range e.Coeffs {
		cloned.Coeffs[v] = c
	}
	cloned.Constant = e.Constant
	return cloned
}

// IsEmpty 检查表达式是否无变量项
func (e *LinExpr) IsEmpty() bool {
	return len(e.Coeffs) == 0
}

// Eval 按变量赋值求值
func (e *LinExpr) Eval(values map[VarID]int) float64 {
	total := e.Constant
	for v, c := range e.Coeffs {
		total += c * float64(values[v])
	}
	return total
}

// String 返回可读表示（变量按ID排序，便于调试与测试）
func (e *LinExpr) String() string {
	ids := make([]VarID, 0, len(e.Coeffs))
	for v := range e.Coeffs {
		ids = append(ids, v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	for i, v := range ids {
		if i > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString(fmt.Sprintf("%g*x%d", e.Coeffs[v], v))
	}
	if e.Constant != 0 {
		if sb.Len() > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString(fmt.Sprintf("%g", e.Constant))
	}
	if sb.Len() == 0 {
		return "0"
	}
	return sb.String()
}

// Sum 求若干表达式之和
func Sum(exprs ...*LinExpr) *LinExpr {
	total := NewExpr()
	for _, e := range exprs {
		total.AddExpr(e)
	}
	return total
}

// SumVars 求若干变量之和
func SumVars(vars ...VarID) *LinExpr {
	total := NewExpr()
	for _, v := range vars {
		total.AddTerm(v, 1)
	}
	return total
}
