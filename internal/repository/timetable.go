package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/version"
)

// TimetableRepository 排课工作集仓储
// 为求解引擎提供只读快照加载。
type TimetableRepository struct {
	db DB
}

// NewTimetableRepository 创建排课工作集仓储
func NewTimetableRepository(db DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// GetDepartment 根据ID获取院系
func (r *TimetableRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	query := `
		SELECT id, created_at, updated_at, name, abbrev, settings, visio_mode, allow_roomless
		FROM departments
		WHERE id = $1 AND deleted_at IS NULL
	`
	d := &model.Department{}
	var settingsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.CreatedAt, &d.UpdatedAt, &d.Name, &d.Abbrev,
		&settingsJSON, &d.VisioMode, &d.AllowRoomless,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("院系 %s 不存在", id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询院系失败: %w", err)
	}
	if err := json.Unmarshal(settingsJSON, &d.Settings); err != nil {
		return nil, fmt.Errorf("解析院系作息设置失败: %w", err)
	}
	return d, nil
}

// GetPeriods 批量获取排课周期
func (r *TimetableRepository) GetPeriods(ctx context.Context, ids []uuid.UUID) ([]*model.SchedulingPeriod, error) {
	query := `
		SELECT id, created_at, updated_at, name, start_date, end_date, mode
		FROM scheduling_periods
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY start_date
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("查询排课周期失败: %w", err)
	}
	defer rows.Close()

	var periods []*model.SchedulingPeriod
	for rows.Next() {
		p := &model.SchedulingPeriod{}
		if err := rows.Scan(
			&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Name, &p.StartDate, &p.EndDate, &p.Mode,
		); err != nil {
			return nil, fmt.Errorf("扫描排课周期失败: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// GetCourses 获取院系在周期集合内的待排课程
func (r *TimetableRepository) GetCourses(ctx context.Context, departmentID uuid.UUID, periodIDs []uuid.UUID) ([]*model.Course, error) {
	query := `
		SELECT c.id, c.created_at, c.updated_at, c.type_id, c.module_id, c.period_id,
			c.room_type_id, c.tutor_id, c.supp_tutor_ids, c.group_ids, c.duration
		FROM courses c
		JOIN modules m ON m.id = c.module_id
		JOIN train_progs tp ON tp.id = m.train_prog_id
		WHERE tp.department_id = $1 AND c.period_id = ANY($2) AND c.deleted_at IS NULL
		ORDER BY c.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID, pq.Array(periodIDs))
	if err != nil {
		return nil, fmt.Errorf("查询课程失败: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		c := &model.Course{}
		if err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.TypeID, &c.ModuleID, &c.PeriodID,
			&c.RoomTypeID, &c.TutorID, pq.Array(&c.SuppTutorIDs), pq.Array(&c.GroupIDs), &c.Duration,
		); err != nil {
			return nil, fmt.Errorf("扫描课程失败: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetCourseTypes 获取院系的课程类型
func (r *TimetableRepository) GetCourseTypes(ctx context.Context, departmentID uuid.UUID) ([]*model.CourseType, error) {
	query := `
		SELECT id, created_at, updated_at, name, department_id, duration, group_kinds
		FROM course_types
		WHERE department_id = $1 AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询课程类型失败: %w", err)
	}
	defer rows.Close()

	var types []*model.CourseType
	for rows.Next() {
		t := &model.CourseType{}
		var kinds pq.StringArray
		if err := rows.Scan(
			&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.Name, &t.DepartmentID, &t.Duration, &kinds,
		); err != nil {
			return nil, fmt.Errorf("扫描课程类型失败: %w", err)
		}
		for _, k := range kinds {
			t.GroupKinds = append(t.GroupKinds, model.GroupKind(k))
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// GetModules 获取院系的教学模块
func (r *TimetableRepository) GetModules(ctx context.Context, departmentID uuid.UUID) ([]*model.Module, error) {
	query := `
		SELECT m.id, m.created_at, m.updated_at, m.name, m.abbrev, m.train_prog_id, m.period_id
		FROM modules m
		JOIN train_progs tp ON tp.id = m.train_prog_id
		WHERE tp.department_id = $1 AND m.deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询教学模块失败: %w", err)
	}
	defer rows.Close()

	var modules []*model.Module
	for rows.Next() {
		m := &model.Module{}
		if err := rows.Scan(
			&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.Name, &m.Abbrev, &m.TrainProgID, &m.PeriodID,
		); err != nil {
			return nil, fmt.Errorf("扫描教学模块失败: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetTrainProgs 获取院系的培养方案
func (r *TimetableRepository) GetTrainProgs(ctx context.Context, departmentID uuid.UUID) ([]*model.TrainProg, error) {
	query := `
		SELECT id, created_at, updated_at, name, abbrev, department_id
		FROM train_progs
		WHERE department_id = $1 AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询培养方案失败: %w", err)
	}
	defer rows.Close()

	var progs []*model.TrainProg
	for rows.Next() {
		tp := &model.TrainProg{}
		if err := rows.Scan(
			&tp.ID, &tp.CreatedAt, &tp.UpdatedAt, &tp.Name, &tp.Abbrev, &tp.DepartmentID,
		); err != nil {
			return nil, fmt.Errorf("扫描培养方案失败: %w", err)
		}
		progs = append(progs, tp)
	}
	return progs, rows.Err()
}

// GetTutors 获取院系的教师
func (r *TimetableRepository) GetTutors(ctx context.Context, departmentID uuid.UUID) ([]*model.Tutor, error) {
	query := `
		SELECT id, created_at, updated_at, username, full_name, department_ids
		FROM tutors
		WHERE $1 = ANY(department_ids) AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询教师失败: %w", err)
	}
	defer rows.Close()

	var tutors []*model.Tutor
	for rows.Next() {
		t := &model.Tutor{}
		if err := rows.Scan(
			&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.Username, &t.FullName, pq.Array(&t.DepartmentIDs),
		); err != nil {
			return nil, fmt.Errorf("扫描教师失败: %w", err)
		}
		tutors = append(tutors, t)
	}
	return tutors, rows.Err()
}

// GetPossibleTutors 返回 模块 -> 可授课教师 的映射
func (r *TimetableRepository) GetPossibleTutors(ctx context.Context, departmentID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	query := `
		SELECT pt.module_id, pt.tutor_id
		FROM possible_tutors pt
		JOIN modules m ON m.id = pt.module_id
		JOIN train_progs tp ON tp.id = m.train_prog_id
		WHERE tp.department_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询授课资格失败: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var moduleID, tutorID uuid.UUID
		if err := rows.Scan(&moduleID, &tutorID); err != nil {
			return nil, fmt.Errorf("扫描授课资格失败: %w", err)
		}
		result[moduleID] = append(result[moduleID], tutorID)
	}
	return result, rows.Err()
}

// GetGroups 获取院系的学生组
func (r *TimetableRepository) GetGroups(ctx context.Context, departmentID uuid.UUID) ([]*model.Group, error) {
	query := `
		SELECT g.id, g.created_at, g.updated_at, g.name, g.train_prog_id, g.kind, g.size,
			g.parent_ids, g.conflicting_ids, g.parallel_ids
		FROM student_groups g
		JOIN train_progs tp ON tp.id = g.train_prog_id
		WHERE tp.department_id = $1 AND g.deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询学生组失败: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		g := &model.Group{}
		if err := rows.Scan(
			&g.ID, &g.CreatedAt, &g.UpdatedAt, &g.Name, &g.TrainProgID, &g.Kind, &g.Size,
			pq.Array(&g.ParentIDs), pq.Array(&g.ConflictingIDs), pq.Array(&g.ParallelIDs),
		); err != nil {
			return nil, fmt.Errorf("扫描学生组失败: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetRooms 获取院系可用的教室（含共享教室）
func (r *TimetableRepository) GetRooms(ctx context.Context, departmentID uuid.UUID) ([]*model.Room, error) {
	query := `
		SELECT id, created_at, updated_at, name, subroom_ids, type_ids, department_ids
		FROM rooms
		WHERE $1 = ANY(department_ids) AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询教室失败: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		room := &model.Room{}
		if err := rows.Scan(
			&room.ID, &room.CreatedAt, &room.UpdatedAt, &room.Name,
			pq.Array(&room.SubroomIDs), pq.Array(&room.TypeIDs), pq.Array(&room.DepartmentIDs),
		); err != nil {
			return nil, fmt.Errorf("扫描教室失败: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetRoomTypes 获取院系的教室类型
func (r *TimetableRepository) GetRoomTypes(ctx context.Context, departmentID uuid.UUID) ([]*model.RoomType, error) {
	query := `
		SELECT id, created_at, updated_at, name, department_id
		FROM room_types
		WHERE department_id = $1 AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询教室类型失败: %w", err)
	}
	defer rows.Close()

	var types []*model.RoomType
	for rows.Next() {
		rt := &model.RoomType{}
		if err := rows.Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt, &rt.Name, &rt.DepartmentID); err != nil {
			return nil, fmt.Errorf("扫描教室类型失败: %w", err)
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}

// GetActiveConstraints 获取作用于周期集合的启用约束
// period_id 为空的约束不限周期，一并返回。
func (r *TimetableRepository) GetActiveConstraints(ctx context.Context, departmentID uuid.UUID, periodIDs []uuid.UUID) ([]*model.TimetableConstraint, error) {
	query := `
		SELECT id, created_at, updated_at, department_id, period_id, kind, title, weight,
			is_active, params, train_prog_ids, module_ids, group_ids, tutor_ids,
			course_type_ids, room_type_ids, weekdays
		FROM timetable_constraints
		WHERE department_id = $1
			AND (period_id IS NULL OR period_id = ANY($2))
			AND is_active AND deleted_at IS NULL
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID, pq.Array(periodIDs))
	if err != nil {
		return nil, fmt.Errorf("查询约束失败: %w", err)
	}
	defer rows.Close()

	var constraints []*model.TimetableConstraint
	for rows.Next() {
		c := &model.TimetableConstraint{}
		var paramsJSON []byte
		var weekdays pq.Int64Array
		if err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.DepartmentID, &c.PeriodID, &c.Kind,
			&c.Title, &c.Weight, &c.IsActive, &paramsJSON,
			pq.Array(&c.TrainProgIDs), pq.Array(&c.ModuleIDs), pq.Array(&c.GroupIDs),
			pq.Array(&c.TutorIDs), pq.Array(&c.CourseTypeIDs), pq.Array(&c.RoomTypeIDs),
			&weekdays,
		); err != nil {
			return nil, fmt.Errorf("扫描约束失败: %w", err)
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &c.Params); err != nil {
				return nil, fmt.Errorf("解析约束 %s 参数失败: %w", c.ID, err)
			}
		}
		c.Weekdays = toWeekdays(weekdays)
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

// GetUserAvailability 查询教师在日期范围内的可用度
// 带日期的声明优先；无声明的日期回退到默认周模板（day 为空、按 weekday 存储）。
func (r *TimetableRepository) GetUserAvailability(ctx context.Context, tutorID uuid.UUID, startDate, endDate string) ([]*model.Availability, error) {
	return r.availabilityWithFallback(ctx, "user_availability", tutorID, startDate, endDate)
}

// GetRoomAvailability 查询教室在日期范围内的可用度
func (r *TimetableRepository) GetRoomAvailability(ctx context.Context, roomID uuid.UUID, startDate, endDate string) ([]*model.Availability, error) {
	return r.availabilityWithFallback(ctx, "room_availability", roomID, startDate, endDate)
}

// GetTrainProgAvailability 查询培养方案声明的学生面时段偏好
func (r *TimetableRepository) GetTrainProgAvailability(ctx context.Context, trainProgID uuid.UUID, startDate, endDate string) ([]*model.Availability, error) {
	return r.availabilityWithFallback(ctx, "train_prog_availability", trainProgID, startDate, endDate)
}

// availabilityWithFallback 拉取带日期声明，再用默认周模板补齐未声明的日期
func (r *TimetableRepository) availabilityWithFallback(ctx context.Context, table string, subjectID uuid.UUID, startDate, endDate string) ([]*model.Availability, error) {
	query := fmt.Sprintf(`
		SELECT id, created_at, updated_at, subject_id, day, start_time, end_time, value
		FROM %s
		WHERE subject_id = $1 AND day >= $2 AND day <= $3 AND deleted_at IS NULL
		ORDER BY day, start_time
	`, table)

	rows, err := r.db.QueryContext(ctx, query, subjectID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询可用度失败: %w", err)
	}
	defer rows.Close()

	var dated []*model.Availability
	declaredDays := make(map[string]bool)
	for rows.Next() {
		a := &model.Availability{}
		if err := rows.Scan(
			&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.SubjectID, &a.Day, &a.Start, &a.End, &a.Value,
		); err != nil {
			return nil, fmt.Errorf("扫描可用度失败: %w", err)
		}
		dated = append(dated, a)
		declaredDays[a.Day] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	templates, err := r.availabilityTemplate(ctx, table, subjectID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return dated, nil
	}

	// 未声明的日期套用周模板
	start, err1 := time.Parse(model.DateLayout, startDate)
	end, err2 := time.Parse(model.DateLayout, endDate)
	if err1 != nil || err2 != nil {
		return dated, nil
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(model.DateLayout)
		if declaredDays[day] {
			continue
		}
		for _, tpl := range templates[d.Weekday()] {
			a := *tpl
			a.Day = day
			dated = append(dated, &a)
		}
	}
	return dated, nil
}

// availabilityTemplate 拉取默认周模板（day 为空的行，按 weekday 分桶）
func (r *TimetableRepository) availabilityTemplate(ctx context.Context, table string, subjectID uuid.UUID) (map[time.Weekday][]*model.Availability, error) {
	query := fmt.Sprintf(`
		SELECT id, created_at, updated_at, subject_id, weekday, start_time, end_time, value
		FROM %s
		WHERE subject_id = $1 AND day IS NULL AND deleted_at IS NULL
	`, table)

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("查询可用度周模板失败: %w", err)
	}
	defer rows.Close()

	templates := make(map[time.Weekday][]*model.Availability)
	for rows.Next() {
		a := &model.Availability{}
		var weekday int
		if err := rows.Scan(
			&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.SubjectID, &weekday, &a.Start, &a.End, &a.Value,
		); err != nil {
			return nil, fmt.Errorf("扫描可用度周模板失败: %w", err)
		}
		wd := time.Weekday(weekday)
		templates[wd] = append(templates[wd], a)
	}
	return templates, rows.Err()
}

// GetRoomReservations 返回外部预订（视为硬性不可用）
func (r *TimetableRepository) GetRoomReservations(ctx context.Context, roomID uuid.UUID, startDate, endDate string) ([]*model.RoomReservation, error) {
	query := `
		SELECT id, created_at, updated_at, room_id, day, start_time, end_time, title
		FROM room_reservations
		WHERE room_id = $1 AND day >= $2 AND day <= $3 AND deleted_at IS NULL
		ORDER BY day, start_time
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询教室预订失败: %w", err)
	}
	defer rows.Close()

	var reservations []*model.RoomReservation
	for rows.Next() {
		res := &model.RoomReservation{}
		if err := rows.Scan(
			&res.ID, &res.CreatedAt, &res.UpdatedAt, &res.RoomID, &res.Day, &res.Start, &res.End, &res.Title,
		); err != nil {
			return nil, fmt.Errorf("扫描教室预订失败: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

// GetScheduledCourses 获取院系周期某版本号的已排课程
func (r *TimetableRepository) GetScheduledCourses(ctx context.Context, departmentID, periodID uuid.UUID, major int) ([]*model.ScheduledCourse, error) {
	query := `
		SELECT sc.id, sc.created_at, sc.updated_at, sc.course_id, sc.version_id, sc.major,
			sc.day, sc.start_time, sc.room_id, sc.tutor_id, sc.number
		FROM scheduled_courses sc
		JOIN timetable_versions v ON v.id = sc.version_id
		WHERE v.department_id = $1 AND v.period_id = $2 AND v.major = $3
			AND sc.deleted_at IS NULL
		ORDER BY sc.day, sc.start_time
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID, periodID, major)
	if err != nil {
		return nil, fmt.Errorf("查询已排课程失败: %w", err)
	}
	defer rows.Close()
	return scanScheduledCourses(rows)
}

// GetExternalPlacements 获取其它院系发布版在日期范围内的排定
// 附带课程时长与辅助教师，跨院系冲突检查不必再逐课回查。
func (r *TimetableRepository) GetExternalPlacements(ctx context.Context, departmentID uuid.UUID, startDate, endDate string) ([]*version.ExternalCourse, error) {
	query := `
		SELECT sc.id, sc.created_at, sc.updated_at, sc.course_id, sc.version_id, sc.major,
			sc.day, sc.start_time, sc.room_id, sc.tutor_id, sc.number,
			c.duration, c.supp_tutor_ids
		FROM scheduled_courses sc
		JOIN timetable_versions v ON v.id = sc.version_id
		JOIN courses c ON c.id = sc.course_id
		WHERE v.department_id <> $1 AND v.major = $2
			AND sc.day >= $3 AND sc.day <= $4 AND sc.deleted_at IS NULL
		ORDER BY sc.day, sc.start_time
	`
	rows, err := r.db.QueryContext(ctx, query, departmentID, model.CanonicalMajor, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询外部排定失败: %w", err)
	}
	defer rows.Close()

	var result []*version.ExternalCourse
	for rows.Next() {
		ec := &version.ExternalCourse{Scheduled: &model.ScheduledCourse{}}
		sc := ec.Scheduled
		if err := rows.Scan(
			&sc.ID, &sc.CreatedAt, &sc.UpdatedAt, &sc.CourseID, &sc.VersionID, &sc.Major,
			&sc.Day, &sc.Start, &sc.RoomID, &sc.TutorID, &sc.Number,
			&ec.Duration, pq.Array(&ec.SuppTutorIDs),
		); err != nil {
			return nil, fmt.Errorf("扫描外部排定失败: %w", err)
		}
		result = append(result, ec)
	}
	return result, rows.Err()
}

// scanScheduledCourses 扫描已排课程结果集
func scanScheduledCourses(rows *sql.Rows) ([]*model.ScheduledCourse, error) {
	var courses []*model.ScheduledCourse
	for rows.Next() {
		sc := &model.ScheduledCourse{}
		if err := rows.Scan(
			&sc.ID, &sc.CreatedAt, &sc.UpdatedAt, &sc.CourseID, &sc.VersionID, &sc.Major,
			&sc.Day, &sc.Start, &sc.RoomID, &sc.TutorID, &sc.Number,
		); err != nil {
			return nil, fmt.Errorf("扫描已排课程失败: %w", err)
		}
		courses = append(courses, sc)
	}
	return courses, rows.Err()
}
