package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/version"
)

// tempMajor 换版中转编号，避开 (院系, 周期, major) 唯一索引
const tempMajor = -1

// SolutionRepository 解与版本仓储
// 写路径（保存解、换版、级联删除）全部在单个事务内完成。
type SolutionRepository struct {
	db TxDB
}

// NewSolutionRepository 创建解仓储
func NewSolutionRepository(db TxDB) *SolutionRepository {
	return &SolutionRepository{db: db}
}

// FirstFreeMajor 返回首个未被占用的版本号
// 与版本管理器共用同一套空洞复用语义。
func (r *SolutionRepository) FirstFreeMajor(ctx context.Context, departmentID, periodID uuid.UUID) (int, error) {
	versions, err := r.ListVersions(ctx, departmentID, periodID)
	if err != nil {
		return 0, fmt.Errorf("查询空闲版本号失败: %w", err)
	}
	return version.FirstFreeMajor(versions), nil
}

// SaveSolution 在单个事务内保存一份解
// overwrite 为真时清空目标版本的既有排定；版本行不存在则创建。
func (r *SolutionRepository) SaveSolution(ctx context.Context, departmentID, periodID uuid.UUID, major int,
	courses []*model.ScheduledCourse, overwrite bool) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		versionID, existed, err := findVersion(ctx, tx, departmentID, periodID, major)
		if err != nil {
			return err
		}
		if existed {
			if !overwrite {
				return fmt.Errorf("版本 %d 已存在且未允许覆盖", major)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM scheduled_courses WHERE version_id = $1`, versionID); err != nil {
				return fmt.Errorf("清空目标版本排定失败: %w", err)
			}
		} else {
			versionID = uuid.New()
			if err := insertVersion(ctx, tx, versionID, departmentID, periodID, major); err != nil {
				return err
			}
		}
		return insertScheduledCourses(ctx, tx, versionID, major, courses)
	})
}

// GetVersion 获取指定版本号的版本行，不存在返回 nil
func (r *SolutionRepository) GetVersion(ctx context.Context, departmentID, periodID uuid.UUID, major int) (*model.TimetableVersion, error) {
	query := `
		SELECT id, created_at, updated_at, department_id, period_id, major, stamp
		FROM timetable_versions
		WHERE department_id = $1 AND period_id = $2 AND major = $3 AND deleted_at IS NULL
	`
	v := &model.TimetableVersion{}
	err := r.db.QueryRowContext(ctx, query, departmentID, periodID, major).Scan(
		&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.DepartmentID, &v.PeriodID, &v.Major, &v.Stamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询课表版本失败: %w", err)
	}
	return v, nil
}

// ListVersions 列出院系周期下的全部版本
func (r *SolutionRepository) ListVersions(ctx context.Context, departmentID, periodID uuid.UUID) ([]*model.TimetableVersion, error) {
	query := `
		SELECT id, created_at, updated_at, department_id, period_id, major, stamp
		FROM timetable_versions
		WHERE department_id = $1 AND period_id = $2 AND deleted_at IS NULL
		ORDER BY major
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID, periodID)
	if err != nil {
		return nil, fmt.Errorf("查询版本列表失败: %w", err)
	}
	defer rows.Close()

	var versions []*model.TimetableVersion
	for rows.Next() {
		v := &model.TimetableVersion{}
		if err := rows.Scan(
			&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.DepartmentID, &v.PeriodID, &v.Major, &v.Stamp,
		); err != nil {
			return nil, fmt.Errorf("扫描课表版本失败: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// CreateVersion 创建版本行
func (r *SolutionRepository) CreateVersion(ctx context.Context, v *model.TimetableVersion) error {
	if v.ID == uuid.Nil {
		v.BaseModel = model.NewBaseModel()
	}
	query := `
		INSERT INTO timetable_versions (id, created_at, updated_at, department_id, period_id, major, stamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.CreatedAt, v.UpdatedAt, v.DepartmentID, v.PeriodID, v.Major, v.Stamp,
	)
	if err != nil {
		return fmt.Errorf("创建课表版本失败: %w", err)
	}
	return nil
}

// DeleteVersion 删除版本并级联删除其已排课程
func (r *SolutionRepository) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM scheduled_courses WHERE version_id = $1`, id); err != nil {
			return fmt.Errorf("删除版本排定失败: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM timetable_versions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("删除课表版本失败: %w", err)
		}
		return nil
	})
}

// SwapMajors 原子地互换两个版本的 major 并落盘两者的 Stamp
// 先借道中转编号，绕开 (院系, 周期, major) 唯一索引。
func (r *SolutionRepository) SwapMajors(ctx context.Context, a, b *model.TimetableVersion) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE timetable_versions SET major = $2 WHERE id = $1`, a.ID, tempMajor); err != nil {
			return fmt.Errorf("换版失败: %w", err)
		}
		for _, v := range []*model.TimetableVersion{b, a} {
			if _, err := tx.ExecContext(ctx,
				`UPDATE timetable_versions SET major = $2, stamp = $3, updated_at = $4 WHERE id = $1`,
				v.ID, v.Major, v.Stamp, time.Now()); err != nil {
				return fmt.Errorf("换版失败: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE scheduled_courses SET major = $2 WHERE version_id = $1`,
				v.ID, v.Major); err != nil {
				return fmt.Errorf("同步排定版本号失败: %w", err)
			}
		}
		return nil
	})
}

// GetScheduledCourses 获取版本的已排课程
func (r *SolutionRepository) GetScheduledCourses(ctx context.Context, versionID uuid.UUID) ([]*model.ScheduledCourse, error) {
	query := `
		SELECT id, created_at, updated_at, course_id, version_id, major,
			day, start_time, room_id, tutor_id, number
		FROM scheduled_courses
		WHERE version_id = $1 AND deleted_at IS NULL
		ORDER BY day, start_time
	`
	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("查询版本排定失败: %w", err)
	}
	defer rows.Close()
	return scanScheduledCourses(rows)
}

// SaveScheduledCourses 整体替换版本的已排课程
func (r *SolutionRepository) SaveScheduledCourses(ctx context.Context, versionID uuid.UUID, courses []*model.ScheduledCourse) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM scheduled_courses WHERE version_id = $1`, versionID); err != nil {
			return fmt.Errorf("清空版本排定失败: %w", err)
		}
		major := 0
		if len(courses) > 0 {
			major = courses[0].Major
		}
		return insertScheduledCourses(ctx, tx, versionID, major, courses)
	})
}

// DeleteModifications 清空发布版的变更历史
func (r *SolutionRepository) DeleteModifications(ctx context.Context, departmentID, periodID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM course_modifications WHERE department_id = $1 AND period_id = $2`,
		departmentID, periodID)
	if err != nil {
		return fmt.Errorf("清空变更历史失败: %w", err)
	}
	return nil
}

// PriorCount 统计指定日期前同模块同类型同学生组已排课程数（发布版，跨周期续号用）
func (r *SolutionRepository) PriorCount(ctx context.Context, moduleID, typeID uuid.UUID, groupIDs []uuid.UUID, before string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM scheduled_courses sc
		JOIN timetable_versions v ON v.id = sc.version_id
		JOIN courses c ON c.id = sc.course_id
		WHERE c.module_id = $1 AND c.type_id = $2 AND c.group_ids && $3
			AND sc.day < $4 AND v.major = $5 AND sc.deleted_at IS NULL
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, moduleID, typeID, pq.Array(groupIDsToStrings(groupIDs)), before, model.CanonicalMajor).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("统计既往编号失败: %w", err)
	}
	return count, nil
}

func groupIDsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// findVersion 查找版本行，返回 (id, 是否存在)
func findVersion(ctx context.Context, tx *sql.Tx, departmentID, periodID uuid.UUID, major int) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM timetable_versions
		 WHERE department_id = $1 AND period_id = $2 AND major = $3 AND deleted_at IS NULL`,
		departmentID, periodID, major).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("查询课表版本失败: %w", err)
	}
	return id, true, nil
}

// insertVersion 在事务内创建版本行
func insertVersion(ctx context.Context, tx *sql.Tx, id uuid.UUID, departmentID, periodID uuid.UUID, major int) error {
	now := time.Now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO timetable_versions (id, created_at, updated_at, department_id, period_id, major, stamp)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		id, now, now, departmentID, periodID, major)
	if err != nil {
		return fmt.Errorf("创建课表版本失败: %w", err)
	}
	return nil
}

// insertScheduledCourses 在事务内批量写入已排课程
func insertScheduledCourses(ctx context.Context, tx *sql.Tx, versionID uuid.UUID, major int, courses []*model.ScheduledCourse) error {
	query := `
		INSERT INTO scheduled_courses (
			id, created_at, updated_at, course_id, version_id, major,
			day, start_time, room_id, tutor_id, number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	for _, sc := range courses {
		if sc.ID == uuid.Nil {
			sc.ID = uuid.New()
		}
		sc.VersionID = versionID
		sc.Major = major
		if _, err := tx.ExecContext(ctx, query,
			sc.ID, now, now, sc.CourseID, sc.VersionID, sc.Major,
			sc.Day, sc.Start, sc.RoomID, sc.TutorID, sc.Number,
		); err != nil {
			return fmt.Errorf("写入已排课程失败: %w", err)
		}
	}
	return nil
}
