// KeBiao 排课引擎
// 批处理入口：加载配置，连接数据库，执行求解或预分析。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/internal/repository"
	"github.com/kebiao/kebiao/internal/service"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	var (
		command    = flag.String("cmd", "solve", "执行的命令: solve / preanalyse / audit")
		department = flag.String("department", "", "院系ID")
		periods    = flag.String("periods", "", "排课周期ID，逗号分隔")
		solverName = flag.String("solver", cfg.Solver.Name, "求解器名称")
		major      = flag.Int("major", -1, "目标版本号，-1 表示首个空闲版本")
		overwrite  = flag.Bool("overwrite", false, "目标版本已存在时覆盖")
		showVer    = flag.Bool("version", false, "打印版本信息")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("kebiao v%s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	departmentID, err := uuid.Parse(*department)
	if err != nil {
		fmt.Fprintf(os.Stderr, "院系ID无效: %v\n", err)
		os.Exit(1)
	}
	periodIDs, err := parsePeriods(*periods)
	if err != nil {
		fmt.Fprintf(os.Stderr, "周期ID无效: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("数据库连接失败")
	}
	defer db.Close()

	svc := service.New(cfg,
		repository.NewTimetableRepository(db),
		repository.NewSolutionRepository(db),
		repository.NewSolutionRepository(db),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Solver.TimeLimit*2)
	defer cancel()

	switch *command {
	case "solve":
		req := &ttmodel.SolveRequest{
			DepartmentID: departmentID,
			PeriodIDs:    periodIDs,
			SolverName:   *solverName,
			TimeLimit:    cfg.Solver.TimeLimit,
			Threads:      cfg.Solver.Threads,
			Overwrite:    *overwrite,
		}
		if *major >= 0 {
			req.Major = major
		}
		result, err := svc.Solve(ctx, req)
		if err != nil {
			logger.Fatal().Err(err).Msg("求解失败")
		}
		printJSON(result)

	case "preanalyse":
		report, err := svc.PreAnalyse(ctx, departmentID, periodIDs)
		if err != nil {
			logger.Fatal().Err(err).Msg("预分析失败")
		}
		printJSON(report)
		if !report.OK {
			os.Exit(2)
		}

	case "audit":
		if len(periodIDs) != 1 {
			fmt.Fprintln(os.Stderr, "audit 需要恰好一个周期ID")
			os.Exit(1)
		}
		m := 0
		if *major >= 0 {
			m = *major
		}
		messages, err := svc.Audit(ctx, departmentID, periodIDs[0], m)
		if err != nil {
			logger.Fatal().Err(err).Msg("审计失败")
		}
		printJSON(messages)

	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n", *command)
		os.Exit(1)
	}
}

// parsePeriods 解析逗号分隔的周期ID列表
func parsePeriods(s string) ([]uuid.UUID, error) {
	if s == "" {
		return nil, fmt.Errorf("缺少周期ID")
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(s, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
