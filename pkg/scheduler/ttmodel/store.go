// Package ttmodel 实现排课核心的 ILP 建模与求解编排
package ttmodel

import (
	"context"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
)

// Store 数据访问协作方（语义接口，持久化细节由实现方负责）
// 一次求解开始时把工作集整体读入内存，核心不依赖惰性查询。
type Store interface {
	GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error)
	GetPeriods(ctx context.Context, ids []uuid.UUID) ([]*model.SchedulingPeriod, error)
	GetCourses(ctx context.Context, departmentID uuid.UUID, periodIDs []uuid.UUID) ([]*model.Course, error)
	GetCourseTypes(ctx context.Context, departmentID uuid.UUID) ([]*model.CourseType, error)
	GetModules(ctx context.Context, departmentID uuid.UUID) ([]*model.Module, error)
	GetTrainProgs(ctx context.Context, departmentID uuid.UUID) ([]*model.TrainProg, error)
	GetTutors(ctx context.Context, departmentID uuid.UUID) ([]*model.Tutor, error)
	// GetPossibleTutors 返回 模块 -> 可授课教师 的映射
	GetPossibleTutors(ctx context.Context, departmentID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	GetGroups(ctx context.Context, departmentID uuid.UUID) ([]*model.Group, error)
	GetRooms(ctx context.Context, departmentID uuid.UUID) ([]*model.Room, error)
	GetRoomTypes(ctx context.Context, departmentID uuid.UUID) ([]*model.RoomType, error)
	GetActiveConstraints(ctx context.Context, departmentID uuid.UUID, periodIDs []uuid.UUID) ([]*model.TimetableConstraint, error)
	// GetUserAvailability 查询教师在日期范围内的可用度（实现方负责默认周模板回退）
	GetUserAvailability(ctx context.Context, tutorID uuid.UUID, startDate, endDate string) ([]*model.Availability, error)
	GetRoomAvailability(ctx context.Context, roomID uuid.UUID, startDate, endDate string) ([]*model.Availability, error)
	// GetTrainProgAvailability 查询培养方案（学生面）声明的时段偏好
	GetTrainProgAvailability(ctx context.Context, trainProgID uuid.UUID, startDate, endDate string) ([]*model.Availability, error)
	// GetRoomReservations 返回外部预订（视为硬性不可用）
	GetRoomReservations(ctx context.Context, roomID uuid.UUID, startDate, endDate string) ([]*model.RoomReservation, error)
	GetScheduledCourses(ctx context.Context, departmentID, periodID uuid.UUID, major int) ([]*model.ScheduledCourse, error)
}

// Persister 解的持久化协作方
// SaveSolution 必须在单个事务内完成：写入失败只能留下旧状态或新状态。
type Persister interface {
	FirstFreeMajor(ctx context.Context, departmentID, periodID uuid.UUID) (int, error)
	SaveSolution(ctx context.Context, departmentID, periodID uuid.UUID, major int,
		courses []*model.ScheduledCourse, overwrite bool) error
}
