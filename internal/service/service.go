// Package service 汇聚排课引擎的业务入口
//
// 对外只暴露语义化操作：求解、预分析、教室重排、版本管理、
// 冲突检查与课程编号。数据访问细节由仓储层承担。
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/preanalysis"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/roommodel"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
	"github.com/kebiao/kebiao/pkg/version"
)

// Service 排课业务门面
type Service struct {
	cfg       *config.Config
	store     ttmodel.Store
	persister ttmodel.Persister
	versions  *version.Manager
	builder   ttmodel.ConstraintBuilder
}

// New 创建业务门面
// 约束目录固定为内置注册表。
func New(cfg *config.Config, store ttmodel.Store, persister ttmodel.Persister, versionStore version.Store) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		persister: persister,
		versions:  version.NewManager(versionStore),
		builder:   constraint.Build,
	}
}

// Solve 端到端执行一次求解
// 先做预分析：确定性不可行直接拒绝，不浪费求解时间。
func (s *Service) Solve(ctx context.Context, req *ttmodel.SolveRequest) (*ttmodel.SolveResult, error) {
	s.applyDefaults(req)

	data, err := ttmodel.LoadData(ctx, s.store, req.DepartmentID, req.PeriodIDs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	report := preanalysis.New(s.builder).PreAnalyse(data)
	if !report.OK {
		var reasons []string
		for _, m := range report.Messages {
			if m.Level == "KO" {
				reasons = append(reasons, m.Text)
			}
		}
		return nil, errors.Infeasible("预分析不通过: " + strings.Join(reasons, "; "))
	}

	engine := ttmodel.NewEngine(s.store, s.persister, s.builder)
	return engine.Run(ctx, req)
}

// PreAnalyse 对院系周期做确定性可行性体检
func (s *Service) PreAnalyse(ctx context.Context, departmentID uuid.UUID, periodIDs []uuid.UUID) (*preanalysis.Report, error) {
	data, err := ttmodel.LoadData(ctx, s.store, departmentID, periodIDs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	return preanalysis.New(s.builder).PreAnalyse(data), nil
}

// ReassignRooms 在不动开课时间的前提下重排某版本的教室
func (s *Service) ReassignRooms(ctx context.Context, departmentID, periodID uuid.UUID, major int,
	opts roommodel.Options) (*roommodel.Result, error) {

	data, err := ttmodel.LoadData(ctx, s.store, departmentID, []uuid.UUID{periodID})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	scheduled, err := s.store.GetScheduledCourses(ctx, departmentID, periodID, major)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载版本排定失败")
	}
	if opts.SolverName == "" {
		opts.SolverName = s.cfg.Solver.Name
	}
	if opts.TimeLimit == 0 {
		opts.TimeLimit = s.cfg.Solver.TimeLimit
	}
	return roommodel.Reassign(ctx, data, scheduled, s.persister, opts)
}

// Audit 对某版本已排结果做逐约束事后审计
func (s *Service) Audit(ctx context.Context, departmentID, periodID uuid.UUID, major int) ([]ttmodel.Message, error) {
	data, err := ttmodel.LoadData(ctx, s.store, departmentID, []uuid.UUID{periodID})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	scheduled, err := s.store.GetScheduledCourses(ctx, departmentID, periodID, major)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载版本排定失败")
	}
	return preanalysis.New(s.builder).Audit(data, scheduled), nil
}

// SwapVersion 把工作副本与发布版互换
func (s *Service) SwapVersion(ctx context.Context, departmentID, periodID uuid.UUID, major int) (version.Status, error) {
	return s.versions.Swap(ctx, departmentID, periodID, major)
}

// DuplicateVersion 复制版本为新的工作副本
func (s *Service) DuplicateVersion(ctx context.Context, departmentID, periodID uuid.UUID, sourceMajor int) (version.Status, int, error) {
	return s.versions.Duplicate(ctx, departmentID, periodID, sourceMajor)
}

// DeleteVersion 删除一个工作副本
func (s *Service) DeleteVersion(ctx context.Context, departmentID, periodID uuid.UUID, major int) (version.Status, error) {
	return s.versions.Delete(ctx, departmentID, periodID, major)
}

// DeleteAllUnusedVersions 删除与发布版无差异的工作副本，返回删除数
func (s *Service) DeleteAllUnusedVersions(ctx context.Context, departmentID, periodID uuid.UUID) (int, error) {
	return s.versions.DeleteAllUnused(ctx, departmentID, periodID)
}

// ExternalReader 跨院系发布版占用的读取能力（可选）
type ExternalReader interface {
	GetExternalPlacements(ctx context.Context, departmentID uuid.UUID, startDate, endDate string) ([]*version.ExternalCourse, error)
}

// GetConflicts 把某版本排定与其它院系发布版对撞
// others 为 nil 且存储支持跨院系查询时自动拉取周期内的外部排定。
func (s *Service) GetConflicts(ctx context.Context, departmentID, periodID uuid.UUID, major int,
	others []*version.ExternalCourse) ([]version.Conflict, error) {

	data, err := ttmodel.LoadData(ctx, s.store, departmentID, []uuid.UUID{periodID})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	mine, err := s.store.GetScheduledCourses(ctx, departmentID, periodID, major)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载版本排定失败")
	}
	if others == nil {
		if reader, ok := s.store.(ExternalReader); ok {
			period := data.Period(periodID)
			others, err = reader.GetExternalPlacements(ctx, departmentID, period.StartDate, period.EndDate)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载外部排定失败")
			}
		}
	}
	conflicts := version.Conflicts(data, mine, others)
	logger.Info().
		Str("department", departmentID.String()).
		Int("conflicts", len(conflicts)).
		Msg("跨院系冲突检查完成")
	return conflicts, nil
}

// NumberCourses 按时间顺序为发布版课程重排编号
func (s *Service) NumberCourses(ctx context.Context, departmentID, periodID uuid.UUID) error {
	data, err := ttmodel.LoadData(ctx, s.store, departmentID, []uuid.UUID{periodID})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "加载工作集失败")
	}
	return s.versions.Renumber(ctx, data, departmentID, periodID)
}

// applyDefaults 用配置补齐请求缺省项
func (s *Service) applyDefaults(req *ttmodel.SolveRequest) {
	if req.SolverName == "" {
		req.SolverName = s.cfg.Solver.Name
	}
	if req.TimeLimit == 0 {
		req.TimeLimit = s.cfg.Solver.TimeLimit
	}
	if req.Threads == 0 {
		req.Threads = s.cfg.Solver.Threads
	}
}
