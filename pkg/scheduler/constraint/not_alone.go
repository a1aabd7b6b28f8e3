package constraint

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// NotAloneForCourseType 新手陪跑约束：点名教师讲某类课时，
// 必须有指导教师在同一时段讲同类课
//
// 硬形式为逐时段不等式；软形式经大 M 线性化计违反成本。
type NotAloneForCourseType struct {
	BaseConstraint
}

// NewNotAloneForCourseType 创建陪跑约束
func NewNotAloneForCourseType() *NotAloneForCourseType {
	return &NotAloneForCourseType{BaseConstraint{kind: "not_alone_for_course_type"}}
}

type notAloneParams struct {
	CourseTypeID  string   `json:"course_type_id"`
	GuideTutorIDs []string `json:"guide_tutor_ids"`
}

// Enrich 注入模型
func (na *NotAloneForCourseType) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p notAloneParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	typeID, err := ParseUUID("course_type_id", p.CourseTypeID)
	if err != nil {
		return err
	}
	guides, err := ParseUUIDs("guide_tutor_ids", p.GuideTutorIDs)
	if err != nil {
		return err
	}
	if len(guides) == 0 {
		return fmt.Errorf("guide_tutor_ids 不得为空")
	}
	if len(row.TutorIDs) == 0 {
		return fmt.Errorf("陪跑约束必须点名受约束教师")
	}

	typed := lo.Filter(ctx.Data.Courses, func(c *model.Course, _ int) bool {
		return c.TypeID == typeID
	})

	for _, tutorID := range row.TutorIDs {
		for _, c := range typed {
			if !ctx.Data.TutorCanTeach(tutorID, c) {
				continue
			}
			for _, s := range ctx.CourseSlots[c.ID] {
				key := ttmodel.SlotCourseTutor{Slot: s, CourseID: c.ID, TutorID: tutorID}
				v, ok := ctx.TTtutor[key]
				if !ok {
					continue
				}
				guideSum := guidePresence(ctx, typed, c.ID, guides, s)
				// v <= guideSum：新手开讲时至少一名指导在场
				expr := ilp.Term(v, 1).AddExpr(guideSum.Scale(-1))
				ctx.Impose(row, expr, ilp.SenseLE, 0,
					fmt.Sprintf("not_alone_%s_%s_%d", shortUUID(tutorID), s.Day, s.Start))
			}
		}
	}
	return nil
}

// guidePresence 指导教师在重叠时段讲同类课的变量之和
func guidePresence(ctx *ttmodel.Context, typed []*model.Course, excludeCourse uuid.UUID,
	guides []uuid.UUID, window model.Slot) *ilp.LinExpr {

	expr := ilp.NewExpr()
	for _, gc := range typed {
		if gc.ID == excludeCourse {
			continue
		}
		for _, gs := range ctx.CourseSlots[gc.ID] {
			if !gs.IsSimultaneousTo(window) {
				continue
			}
			for _, guideID := range guides {
				key := ttmodel.SlotCourseTutor{Slot: gs, CourseID: gc.ID, TutorID: guideID}
				if v, ok := ctx.TTtutor[key]; ok {
					expr.AddTerm(v, 1)
				}
			}
		}
	}
	return expr
}

func shortUUID(id uuid.UUID) string {
	return id.String()[:8]
}
