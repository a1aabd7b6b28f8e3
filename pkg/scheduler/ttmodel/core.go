package ttmodel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
)

// BuildCore 构建核心模型：决策变量、必排约束、资源互斥与默认偏好成本
// 用户约束注入前必须先完成核心构建。
func (c *Context) BuildCore(log *logger.SolverLogger) error {
	phase := func(name string) {
		vars, constraints := c.M.Stats()
		log.PhaseDone(name, vars, constraints)
	}

	if err := c.buildVariables(); err != nil {
		return err
	}
	phase("variables")

	c.buildScheduling()
	c.buildTutorLinks()
	c.buildRoomLinks()
	phase("links")

	c.buildExclusivity()
	phase("exclusivity")

	c.buildAvailabilityCosts()
	phase("availability_costs")
	return nil
}

// buildVariables 创建决策变量
// 禁用组合（教师不可用、教室被占或类型不符）不生成变量，
// 变量规模因此远小于全笛卡尔积。
func (c *Context) buildVariables() error {
	for _, course := range c.Data.Courses {
		slots := c.CourseSlots[course.ID]
		if len(slots) == 0 {
			return errors.Infeasible(fmt.Sprintf("课程 %s 无任何候选时间粒", course.ID))
		}
		eligible := c.Data.EligibleTutors(course)

		for _, s := range slots {
			key := SlotCourse{Slot: s, CourseID: course.ID}
			c.TT[key] = c.M.NewVar(VarName("tt", s, course.ID))

			for _, tutorID := range eligible {
				if c.Data.TutorUnavailable(tutorID, s) {
					continue
				}
				tKey := SlotCourseTutor{Slot: s, CourseID: course.ID, TutorID: tutorID}
				c.TTtutor[tKey] = c.M.NewVar(VarName("tutor", s, tutorID))
			}

			for _, room := range c.Data.Rooms.CompatibleRooms(course.RoomTypeID) {
				if c.Data.RoomUnavailable(room.ID, s) {
					continue
				}
				rKey := SlotCourseRoom{Slot: s, CourseID: course.ID, RoomID: room.ID}
				c.TTroom[rKey] = c.M.NewVar(VarName("room", s, room.ID))
			}
		}
	}
	return nil
}

// buildScheduling 每门课程必须且只能排一次
func (c *Context) buildScheduling() {
	for _, course := range c.Data.Courses {
		expr := ilp.NewExpr()
		for _, s := range c.CourseSlots[course.ID] {
			if v, ok := c.ScheduledAt(course.ID, s); ok {
				expr.AddTerm(v, 1)
			}
		}
		c.M.AddConstraint(expr, ilp.SenseEQ, 1, "sched_once_"+shortID(course.ID))
	}
}

// buildTutorLinks 课程排定当且仅当恰有一名主讲教师到位
// 某时间粒无任何可用主讲时求和为空，等式把 TT 压为 0。
func (c *Context) buildTutorLinks() {
	for key, tt := range c.TT {
		expr := ilp.NewExpr()
		for _, tutorID := range c.Data.EligibleTutors(c.Data.Course(key.CourseID)) {
			tKey := SlotCourseTutor{Slot: key.Slot, CourseID: key.CourseID, TutorID: tutorID}
			if v, ok := c.TTtutor[tKey]; ok {
				expr.AddTerm(v, 1)
			}
		}
		expr.AddTerm(tt, -1)
		c.M.AddConstraint(expr, ilp.SenseEQ, 0, "tutor_link_"+shortID(key.CourseID))
	}
}

// buildRoomLinks 课程排定时占用恰好一间教室
// 院系允许无教室（纯远程）时放宽为至多一间。
func (c *Context) buildRoomLinks() {
	sense := ilp.SenseEQ
	if c.Data.Department.AllowRoomless {
		sense = ilp.SenseLE
	}
	for key, tt := range c.TT {
		course := c.Data.Course(key.CourseID)
		expr := ilp.NewExpr()
		for _, room := range c.Data.Rooms.CompatibleRooms(course.RoomTypeID) {
			rKey := SlotCourseRoom{Slot: key.Slot, CourseID: key.CourseID, RoomID: room.ID}
			if v, ok := c.TTroom[rKey]; ok {
				expr.AddTerm(v, 1)
			}
		}
		expr.AddTerm(tt, -1)
		c.M.AddConstraint(expr, sense, 0, "room_link_"+shortID(key.CourseID))
	}
}

// buildExclusivity 资源互斥：每个原子粒上教师、学生组、教室至多被占一次
func (c *Context) buildExclusivity() {
	for _, g := range c.Granules {
		for tutorID := range c.Data.Tutors {
			expr := c.TutorBusy(tutorID, g)
			if len(expr.Coeffs) > 1 {
				c.M.AddConstraint(expr, ilp.SenseLE, 1,
					fmt.Sprintf("tutor_excl_%s_%s_%d", shortID(tutorID), g.Day, g.Start))
			}
		}
		for _, group := range c.Data.Groups.All() {
			expr := c.GroupBusy(group.ID, g)
			if len(expr.Coeffs) > 1 {
				c.M.AddConstraint(expr, ilp.SenseLE, 1,
					fmt.Sprintf("group_excl_%s_%s_%d", shortID(group.ID), g.Day, g.Start))
			}
		}
		for _, room := range c.Data.Rooms.All() {
			expr := c.RoomBusy(room.ID, g)
			if len(expr.Coeffs) > 1 {
				c.M.AddConstraint(expr, ilp.SenseLE, 1,
					fmt.Sprintf("room_excl_%s_%s_%d", shortID(room.ID), g.Day, g.Start))
			}
		}
	}
}

// buildAvailabilityCosts 默认偏好成本：可用度越低的时间粒成本越高
// 教师成本挂在教师账户上，培养方案声明的时段偏好挂在学生组账户上。
// 可用度 8 为零成本，1 为最高软成本；0（禁用）不会生成变量。
func (c *Context) buildAvailabilityCosts() {
	for key, v := range c.TTtutor {
		value := c.Data.TutorAvailValue(key.TutorID, key.Slot)
		if value >= model.AvailabilityMax {
			continue
		}
		cost := float64(model.AvailabilityMax-value) / float64(model.AvailabilityMax)
		c.AddTutorCost(key.TutorID, ilp.Term(v, cost))
	}

	for key, v := range c.TT {
		course := c.Data.Course(key.CourseID)
		if course == nil {
			continue
		}
		m := c.Data.Modules[course.ModuleID]
		if m == nil {
			continue
		}
		value := c.Data.TrainProgAvailValue(m.TrainProgID, key.Slot)
		if value >= model.AvailabilityMax {
			continue
		}
		cost := float64(model.AvailabilityMax-value) / float64(model.AvailabilityMax)
		c.AddGroupCost(m.TrainProgID, ilp.Term(v, cost))
	}
}

// ExtractSolution 从求解赋值还原已排课程
// 每门课程读取其排定时间粒，再补齐落定的主讲与教室。
func (c *Context) ExtractSolution(values map[ilp.VarID]int) ([]*model.ScheduledCourse, error) {
	var result []*model.ScheduledCourse
	for _, course := range c.Data.Courses {
		var placed *model.Slot
		for _, s := range c.CourseSlots[course.ID] {
			if v, ok := c.ScheduledAt(course.ID, s); ok && values[v] == 1 {
				slot := s
				placed = &slot
				break
			}
		}
		if placed == nil {
			return nil, errors.New(errors.CodeInternal,
				fmt.Sprintf("解中缺少课程 %s 的排定时间", course.ID))
		}

		sc := &model.ScheduledCourse{
			BaseModel: model.NewBaseModel(),
			CourseID:  course.ID,
			Day:       placed.Day,
			Start:     placed.Start,
		}
		for _, tutorID := range c.Data.EligibleTutors(course) {
			tKey := SlotCourseTutor{Slot: *placed, CourseID: course.ID, TutorID: tutorID}
			if v, ok := c.TTtutor[tKey]; ok && values[v] == 1 {
				id := tutorID
				sc.TutorID = &id
				break
			}
		}
		for _, room := range c.Data.Rooms.CompatibleRooms(course.RoomTypeID) {
			rKey := SlotCourseRoom{Slot: *placed, CourseID: course.ID, RoomID: room.ID}
			if v, ok := c.TTroom[rKey]; ok && values[v] == 1 {
				id := room.ID
				sc.RoomID = &id
				break
			}
		}
		result = append(result, sc)
	}

	numberCourses(c.Data, result)
	return result, nil
}

// numberCourses 按模块+课程类型+学生组的时间顺序为已排课程编号
// 平行学生组各自从 1 开始独立计数。
func numberCourses(d *Data, courses []*model.ScheduledCourse) {
	type seq struct {
		moduleID uuid.UUID
		typeID   uuid.UUID
		groups   string
	}
	bySeq := make(map[seq][]*model.ScheduledCourse)
	for _, sc := range courses {
		course := d.Course(sc.CourseID)
		if course == nil {
			continue
		}
		k := seq{moduleID: course.ModuleID, typeID: course.TypeID, groups: model.GroupKey(course.GroupIDs)}
		bySeq[k] = append(bySeq[k], sc)
	}
	for _, group := range bySeq {
		// 插入排序足够：同一序列通常只有个位数课程
		for i := 1; i < len(group); i++ {
			for j := i; j > 0 && scBefore(group[j], group[j-1]); j-- {
				group[j], group[j-1] = group[j-1], group[j]
			}
		}
		for i, sc := range group {
			sc.Number = i + 1
		}
	}
}

func scBefore(a, b *model.ScheduledCourse) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Start < b.Start
}
