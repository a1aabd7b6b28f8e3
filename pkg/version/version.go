// Package version 管理课表版本：发布版与工作副本的换版、复制、清理与编号
//
// 业务性结局（源为空、无可删除）用 Status 值表达，错误只留给
// 存储故障等真正的异常。
package version

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
)

// Status 业务结局
type Status struct {
	OK   bool   `json:"ok"`
	More string `json:"more,omitempty"`
}

// ok 成功结局
func ok() Status { return Status{OK: true} }

// ko 失败结局（业务层面，不是异常）
func ko(format string, args ...interface{}) Status {
	return Status{OK: false, More: fmt.Sprintf(format, args...)}
}

// Store 版本存储协作方
// 换版与级联删除的原子性由实现方保证。
type Store interface {
	GetVersion(ctx context.Context, departmentID, periodID uuid.UUID, major int) (*model.TimetableVersion, error)
	ListVersions(ctx context.Context, departmentID, periodID uuid.UUID) ([]*model.TimetableVersion, error)
	CreateVersion(ctx context.Context, v *model.TimetableVersion) error
	// DeleteVersion 删除版本并级联删除其已排课程
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	// SwapMajors 原子地互换两个版本的 major 并落盘两者的 Stamp
	SwapMajors(ctx context.Context, a, b *model.TimetableVersion) error

	GetScheduledCourses(ctx context.Context, versionID uuid.UUID) ([]*model.ScheduledCourse, error)
	SaveScheduledCourses(ctx context.Context, versionID uuid.UUID, courses []*model.ScheduledCourse) error

	// DeleteModifications 清空发布版的变更历史
	DeleteModifications(ctx context.Context, departmentID, periodID uuid.UUID) error
	// PriorCount 统计指定日期前同模块同类型同学生组已排课程数（跨周期续号用）
	PriorCount(ctx context.Context, moduleID, typeID uuid.UUID, groupIDs []uuid.UUID, before string) (int, error)
}

// Manager 版本操作入口
type Manager struct {
	store Store
}

// NewManager 创建版本管理器
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Swap 把工作副本与发布版互换
// 新发布版 Stamp 单调递增，发布版的变更历史随换版一并清空。
func (m *Manager) Swap(ctx context.Context, departmentID, periodID uuid.UUID, major int) (Status, error) {
	if major == model.CanonicalMajor {
		return ko("版本 %d 已是发布版", major), nil
	}
	canonical, err := m.store.GetVersion(ctx, departmentID, periodID, model.CanonicalMajor)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "读取发布版失败")
	}
	target, err := m.store.GetVersion(ctx, departmentID, periodID, major)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "读取目标版本失败")
	}
	if target == nil {
		return ko("版本 %d 不存在", major), nil
	}
	if canonical == nil {
		return ko("发布版不存在"), nil
	}

	canonical.Major, target.Major = target.Major, canonical.Major
	target.Stamp = canonical.Stamp + 1
	if err := m.store.SwapMajors(ctx, canonical, target); err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "换版失败")
	}
	if err := m.store.DeleteModifications(ctx, departmentID, periodID); err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "清空变更历史失败")
	}

	logger.Info().
		Str("department", departmentID.String()).
		Str("period", periodID.String()).
		Int("major", major).
		Msg("工作副本已发布")
	return ok(), nil
}

// Duplicate 把版本复制为新的工作副本，返回新版本号
// 源版本无排定时返回 KO 结局。
func (m *Manager) Duplicate(ctx context.Context, departmentID, periodID uuid.UUID, sourceMajor int) (Status, int, error) {
	source, err := m.store.GetVersion(ctx, departmentID, periodID, sourceMajor)
	if err != nil {
		return Status{}, 0, errors.Wrap(err, errors.CodeDatabaseError, "读取源版本失败")
	}
	if source == nil {
		return ko("版本 %d 不存在", sourceMajor), 0, nil
	}
	courses, err := m.store.GetScheduledCourses(ctx, source.ID)
	if err != nil {
		return Status{}, 0, errors.Wrap(err, errors.CodeDatabaseError, "读取源版本排定失败")
	}
	if len(courses) == 0 {
		return ko("版本 %d 没有任何排定，无从复制", sourceMajor), 0, nil
	}

	free, err := m.firstFreeMajor(ctx, departmentID, periodID)
	if err != nil {
		return Status{}, 0, err
	}
	target := &model.TimetableVersion{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: departmentID,
		PeriodID:     periodID,
		Major:        free,
	}
	if err := m.store.CreateVersion(ctx, target); err != nil {
		return Status{}, 0, errors.Wrap(err, errors.CodeDatabaseError, "创建目标版本失败")
	}

	cloned := make([]*model.ScheduledCourse, len(courses))
	for i, sc := range courses {
		c := *sc
		c.BaseModel = model.NewBaseModel()
		c.VersionID = target.ID
		c.Major = free
		cloned[i] = &c
	}
	if err := m.store.SaveScheduledCourses(ctx, target.ID, cloned); err != nil {
		return Status{}, 0, errors.Wrap(err, errors.CodeDatabaseError, "写入复制排定失败")
	}
	return ok(), free, nil
}

// Delete 删除一个工作副本
// 发布版不可删除；目标不存在时返回带说明的 KO 结局。
func (m *Manager) Delete(ctx context.Context, departmentID, periodID uuid.UUID, major int) (Status, error) {
	if major == model.CanonicalMajor {
		return ko("发布版不可删除"), nil
	}
	target, err := m.store.GetVersion(ctx, departmentID, periodID, major)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "读取目标版本失败")
	}
	if target == nil {
		return ko("版本 %d 不存在，没有可删除的排定", major), nil
	}
	if err := m.store.DeleteVersion(ctx, target.ID); err != nil {
		return Status{}, errors.Wrap(err, errors.CodeDatabaseError, "删除版本失败")
	}
	return ok(), nil
}

// DeleteAllUnused 删除与发布版无差异的工作副本，返回删除数
// 排定与发布版不同的草稿视为有价值的在改内容，予以保留。
func (m *Manager) DeleteAllUnused(ctx context.Context, departmentID, periodID uuid.UUID) (int, error) {
	versions, err := m.store.ListVersions(ctx, departmentID, periodID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "读取版本列表失败")
	}

	var canonicalSet placementSet
	for _, v := range versions {
		if !v.IsCanonical() {
			continue
		}
		courses, err := m.store.GetScheduledCourses(ctx, v.ID)
		if err != nil {
			return 0, errors.Wrap(err, errors.CodeDatabaseError, "读取发布版排定失败")
		}
		canonicalSet = newPlacementSet(courses)
	}

	deleted := 0
	for _, v := range versions {
		if v.IsCanonical() {
			continue
		}
		courses, err := m.store.GetScheduledCourses(ctx, v.ID)
		if err != nil {
			return deleted, errors.Wrap(err, errors.CodeDatabaseError, "读取版本排定失败")
		}
		if !canonicalSet.equals(newPlacementSet(courses)) {
			continue
		}
		if err := m.store.DeleteVersion(ctx, v.ID); err != nil {
			return deleted, errors.Wrap(err, errors.CodeDatabaseError, "删除版本失败")
		}
		deleted++
	}
	return deleted, nil
}

// placement 排定的可比较投影，忽略行 ID 等非实质字段
type placement struct {
	courseID uuid.UUID
	day      string
	start    int
	roomID   uuid.UUID
	tutorID  uuid.UUID
}

// placementSet 排定多重集，重复排定按次数计
type placementSet map[placement]int

func newPlacementSet(courses []*model.ScheduledCourse) placementSet {
	set := make(placementSet, len(courses))
	for _, sc := range courses {
		p := placement{courseID: sc.CourseID, day: sc.Day, start: sc.Start}
		if sc.RoomID != nil {
			p.roomID = *sc.RoomID
		}
		if sc.TutorID != nil {
			p.tutorID = *sc.TutorID
		}
		set[p]++
	}
	return set
}

func (s placementSet) equals(other placementSet) bool {
	if len(s) != len(other) {
		return false
	}
	for p, n := range s {
		if other[p] != n {
			return false
		}
	}
	return true
}

// FirstFreeMajor 返回版本列表中首个未被占用的正版本号
// 优先复用被删除版本留下的空洞，而不是一味递增。
func FirstFreeMajor(versions []*model.TimetableVersion) int {
	used := make(map[int]bool, len(versions))
	for _, v := range versions {
		used[v.Major] = true
	}
	for major := 1; ; major++ {
		if !used[major] {
			return major
		}
	}
}

// firstFreeMajor 读取版本列表并返回首个空闲版本号
func (m *Manager) firstFreeMajor(ctx context.Context, departmentID, periodID uuid.UUID) (int, error) {
	versions, err := m.store.ListVersions(ctx, departmentID, periodID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "读取版本列表失败")
	}
	return FirstFreeMajor(versions), nil
}
