package ttmodel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
)

// SlotCourse 课程时间变量键
type SlotCourse struct {
	Slot     model.Slot
	CourseID uuid.UUID
}

// SlotCourseTutor 课程教师变量键
type SlotCourseTutor struct {
	Slot     model.Slot
	CourseID uuid.UUID
	TutorID  uuid.UUID
}

// SlotCourseRoom 课程教室变量键
type SlotCourseRoom struct {
	Slot     model.Slot
	CourseID uuid.UUID
	RoomID   uuid.UUID
}

// Context 建模上下文：工作集 + ILP 模型 + 决策变量索引 + 成本桶
// 核心与用户约束都通过它读写同一个模型。
type Context struct {
	Data     *Data
	Settings model.TimeSettings
	M        *ilp.Model

	// CourseSlots 每门课程的候选时间粒（按时长生成后缓存）
	CourseSlots map[uuid.UUID][]model.Slot
	// Granules 原子时间粒（互斥约束的计数单位）
	Granules []model.Slot

	// TT[s,c]=1 表示课程 c 排在时间粒 s
	TT map[SlotCourse]ilp.VarID
	// TTtutor[s,c,t]=1 表示教师 t 在时间粒 s 主讲课程 c
	TTtutor map[SlotCourseTutor]ilp.VarID
	// TTroom[s,c,r]=1 表示课程 c 在时间粒 s 占用教室 r
	TTroom map[SlotCourseRoom]ilp.VarID

	// 成本桶：按归属维度累加，便于诊断时按教师/学生组拆分目标值
	tutorCosts  map[uuid.UUID]*ilp.LinExpr
	groupCosts  map[uuid.UUID]*ilp.LinExpr
	genericCost *ilp.LinExpr
}

// NewContext 创建建模上下文并生成候选时间粒
func NewContext(data *Data) *Context {
	c := &Context{
		Data:        data,
		Settings:    data.Department.Settings,
		M:           ilp.NewModel(),
		CourseSlots: make(map[uuid.UUID][]model.Slot),
		TT:          make(map[SlotCourse]ilp.VarID),
		TTtutor:     make(map[SlotCourseTutor]ilp.VarID),
		TTroom:      make(map[SlotCourseRoom]ilp.VarID),
		tutorCosts:  make(map[uuid.UUID]*ilp.LinExpr),
		groupCosts:  make(map[uuid.UUID]*ilp.LinExpr),
		genericCost: ilp.NewExpr(),
	}

	// 同一时长的课程共享一份时间粒序列
	byDuration := make(map[int][]model.Slot)
	for _, course := range data.Courses {
		if _, ok := byDuration[course.Duration]; !ok {
			byDuration[course.Duration] = GenerateSlots(c.Settings, data.Periods, course.Duration)
		}
		c.CourseSlots[course.ID] = byDuration[course.Duration]
	}
	c.Granules = GenerateGranules(c.Settings, data.Periods)
	return c
}

// ScheduledAt 返回课程在时间粒上的决策变量
func (c *Context) ScheduledAt(courseID uuid.UUID, s model.Slot) (ilp.VarID, bool) {
	v, ok := c.TT[SlotCourse{Slot: s, CourseID: courseID}]
	return v, ok
}

// CourseExpr 返回课程在满足过滤器的时间粒上的变量之和
func (c *Context) CourseExpr(courseID uuid.UUID, f model.SlotFilter) *ilp.LinExpr {
	expr := ilp.NewExpr()
	for _, s := range c.CourseSlots[courseID] {
		if !f.Match(s, c.Settings) {
			continue
		}
		if v, ok := c.ScheduledAt(courseID, s); ok {
			expr.AddTerm(v, 1)
		}
	}
	return expr
}

// CoursesExpr 返回一组课程在满足过滤器的时间粒上的变量之和
func (c *Context) CoursesExpr(courses []*model.Course, f model.SlotFilter) *ilp.LinExpr {
	expr := ilp.NewExpr()
	for _, course := range courses {
		expr.AddExpr(c.CourseExpr(course.ID, f))
	}
	return expr
}

// TutorBusy 返回教师在原子粒上的占用表达式
// 主讲经 TTtutor 计，辅助教师随课程本体（TT）计。
func (c *Context) TutorBusy(tutorID uuid.UUID, granule model.Slot) *ilp.LinExpr {
	expr := ilp.NewExpr()
	for key, v := range c.TTtutor {
		if key.TutorID == tutorID && key.Slot.IsSimultaneousTo(granule) {
			expr.AddTerm(v, 1)
		}
	}
	for _, course := range c.Data.Courses {
		for _, sid := range course.SuppTutorIDs {
			if sid != tutorID {
				continue
			}
			for _, s := range c.CourseSlots[course.ID] {
				if !s.IsSimultaneousTo(granule) {
					continue
				}
				if v, ok := c.ScheduledAt(course.ID, s); ok {
					expr.AddTerm(v, 1)
				}
			}
		}
	}
	return expr
}

// GroupBusy 返回学生组在原子粒上的占用表达式
// 计入所有与该组冲突（连通链、横切声明）的课程。
func (c *Context) GroupBusy(groupID uuid.UUID, granule model.Slot) *ilp.LinExpr {
	expr := ilp.NewExpr()
	for _, course := range c.Data.Courses {
		if !c.Data.GroupConflictsWithCourse(groupID, course) {
			continue
		}
		for _, s := range c.CourseSlots[course.ID] {
			if !s.IsSimultaneousTo(granule) {
				continue
			}
			if v, ok := c.ScheduledAt(course.ID, s); ok {
				expr.AddTerm(v, 1)
			}
		}
	}
	return expr
}

// RoomBusy 返回教室在原子粒上的占用表达式
// 包含关系闭包内的任何教室被占用都计入。
func (c *Context) RoomBusy(roomID uuid.UUID, granule model.Slot) *ilp.LinExpr {
	related := make(map[uuid.UUID]bool)
	for _, r := range c.Data.Rooms.RelatedRooms(roomID) {
		related[r.ID] = true
	}

	expr := ilp.NewExpr()
	for key, v := range c.TTroom {
		if related[key.RoomID] && key.Slot.IsSimultaneousTo(granule) {
			expr.AddTerm(v, 1)
		}
	}
	return expr
}

// AddTutorCost 向教师成本桶累加
func (c *Context) AddTutorCost(tutorID uuid.UUID, expr *ilp.LinExpr) {
	if c.tutorCosts[tutorID] == nil {
		c.tutorCosts[tutorID] = ilp.NewExpr()
	}
	c.tutorCosts[tutorID].AddExpr(expr)
}

// AddGroupCost 向学生组成本桶累加
func (c *Context) AddGroupCost(groupID uuid.UUID, expr *ilp.LinExpr) {
	if c.groupCosts[groupID] == nil {
		c.groupCosts[groupID] = ilp.NewExpr()
	}
	c.groupCosts[groupID].AddExpr(expr)
}

// AddGenericCost 向全局成本桶累加
func (c *Context) AddGenericCost(expr *ilp.LinExpr) {
	c.genericCost.AddExpr(expr)
}

// TutorCost 返回教师成本桶（诊断用）
func (c *Context) TutorCost(tutorID uuid.UUID) *ilp.LinExpr {
	if e := c.tutorCosts[tutorID]; e != nil {
		return e
	}
	return ilp.NewExpr()
}

// Impose 按约束行的权重落地一条不等式
// 硬约束直接加入模型；软约束创建违反变量并按折算权重计入成本。
func (c *Context) Impose(row *model.TimetableConstraint, expr *ilp.LinExpr, sense ilp.Sense, rhs float64, label string) {
	if row.IsHard() {
		c.M.AddConstraint(expr, sense, rhs, label)
		return
	}
	switch sense {
	case ilp.SenseLE:
		v := c.M.NewViolationVar(expr, rhs, label)
		c.AddGenericCost(ilp.Term(v, row.LocalWeight()))
	case ilp.SenseGE:
		// lhs >= rhs 等价于 -lhs <= -rhs
		v := c.M.NewViolationVar(expr.Scale(-1), -rhs, label)
		c.AddGenericCost(ilp.Term(v, row.LocalWeight()))
	default:
		vLo := c.M.NewViolationVar(expr.Scale(-1), -rhs, label+"_lo")
		vHi := c.M.NewViolationVar(expr, rhs, label+"_hi")
		c.AddGenericCost(ilp.Term(vLo, row.LocalWeight()).AddExpr(ilp.Term(vHi, row.LocalWeight())))
	}
}

// BuildObjective 把全部成本桶合并进目标函数
func (c *Context) BuildObjective() {
	for _, e := range c.tutorCosts {
		c.M.AddToObjective(e)
	}
	for _, e := range c.groupCosts {
		c.M.AddToObjective(e)
	}
	c.M.AddToObjective(c.genericCost)
}

// VarName 构造决策变量名（排查不可行时可读）
func VarName(prefix string, s model.Slot, id uuid.UUID) string {
	return fmt.Sprintf("%s_%s_%d_%s", prefix, s.Day, s.Start, shortID(id))
}

func shortID(id uuid.UUID) string {
	str := id.String()
	if len(str) > 8 {
		return str[:8]
	}
	return str
}
