package ilp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kebiao/kebiao/pkg/errors"
)

const cbcPath = "cbc"

// cbcSolver 调用外部 CBC 进程求解
// 模型写成 CPLEX-LP 文件喂给 cbc，再解析其解文件。
type cbcSolver struct{}

// NewCBCSolver 创建 CBC 求解器
func NewCBCSolver() Solver {
	return &cbcSolver{}
}

// Name 返回求解器名称
func (s *cbcSolver) Name() string { return "cbc" }

// Solve 求解模型
func (s *cbcSolver) Solve(ctx context.Context, m *Model, opts Options) (*Solution, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "kebiao-cbc-")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(dir)

	lpFile := filepath.Join(dir, "model.lp")
	solFile := filepath.Join(dir, "model.sol")

	if err := os.WriteFile(lpFile, []byte(writeLP(m)), 0644); err != nil {
		return nil, fmt.Errorf("写入 LP 文件失败: %w", err)
	}

	args := []string{lpFile}
	if opts.TimeLimit > 0 {
		args = append(args, "sec", strconv.Itoa(int(opts.TimeLimit.Seconds())))
	}
	if opts.Threads > 0 {
		args = append(args, "threads", strconv.Itoa(opts.Threads))
	}
	args = append(args, "solve", "solu", solFile)

	cmd := exec.CommandContext(ctx, cbcPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// 进程无法启动或崩溃：对本次求解致命，不静默重试
		return nil, errors.SolverUnavailable("cbc",
			fmt.Errorf("%w: %s", err, stderr.String()))
	}

	sol, err := parseCBCSolution(m, solFile)
	if err != nil {
		return nil, errors.SolverUnavailable("cbc", err)
	}
	sol.Duration = time.Since(start)
	return sol, nil
}

// writeLP 将模型写成 CPLEX-LP 格式
func writeLP(m *Model) string {
	var sb strings.Builder
	sb.WriteString("Minimize\n obj: ")
	sb.WriteString(lpExpr(m.Objective))
	sb.WriteString("\nSubject To\n")
	for i, c := range m.Constraints {
		// 常数项移到右侧
		rhs := c.RHS - c.Expr.Constant
		sb.WriteString(fmt.Sprintf(" c%d: %s %s %g\n", i, lpTerms(c.Expr), lpSense(c.Sense), rhs))
	}
	sb.WriteString("Binary\n")
	for _, v := range m.Vars {
		sb.WriteString(fmt.Sprintf(" x%d\n", v.ID))
	}
	sb.WriteString("End\n")
	return sb.String()
}

// lpExpr 渲染目标表达式（常数项在 LP 格式中省略，不影响最优解）
func lpExpr(e *LinExpr) string {
	terms := lpTerms(e)
	if terms == "" {
		return "0 x0"
	}
	return terms
}

// lpTerms 渲染变量项
func lpTerms(e *LinExpr) string {
	ids := make([]VarID, 0, len(e.Coeffs))
	for v := range e.Coeffs {
		ids = append(ids, v)
	}
	// 稳定输出便于排查
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}

	var sb strings.Builder
	first := true
	for _, v := range ids {
		c := e.Coeffs[v]
		if c == 0 {
			continue
		}
		if first {
			sb.WriteString(fmt.Sprintf("%g x%d", c, v))
			first = false
			continue
		}
		if c >= 0 {
			sb.WriteString(fmt.Sprintf(" + %g x%d", c, v))
		} else {
			sb.WriteString(fmt.Sprintf(" - %g x%d", -c, v))
		}
	}
	return sb.String()
}

func lpSense(s Sense) string {
	switch s {
	case SenseEQ:
		return "="
	case SenseLE:
		return "<="
	default:
		return ">="
	}
}

// parseCBCSolution 解析 CBC 解文件
// 首行形如 "Optimal - objective value 12.5" / "Infeasible ..." /
// "Stopped on time limit - objective value ..."。
func parseCBCSolution(m *Model, path string) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取解文件失败: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("解文件为空")
	}
	header := scanner.Text()

	sol := &Solution{Values: make(map[VarID]int)}
	switch {
	case strings.HasPrefix(header, "Optimal"):
		sol.Status = StatusOptimal
	case strings.Contains(header, "Infeasible") || strings.Contains(header, "infeasible"):
		sol.Status = StatusInfeasible
		return sol, nil
	case strings.Contains(header, "Stopped") && strings.Contains(header, "objective value"):
		// 超时但带回了当前最好解
		sol.Status = StatusFeasible
	default:
		sol.Status = StatusNoSolution
		return sol, nil
	}

	if idx := strings.Index(header, "objective value"); idx >= 0 {
		fields := strings.Fields(header[idx:])
		if len(fields) >= 3 {
			if obj, err := strconv.ParseFloat(fields[2], 64); err == nil {
				sol.Objective = obj
			}
		}
	}

	// 余下各行: "<index> x<id> <value> <reduced cost>"
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[1], "x") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(fields[1], "x"))
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		if value > 0.5 {
			sol.Values[VarID(id)] = 1
		}
	}
	return sol, scanner.Err()
}
