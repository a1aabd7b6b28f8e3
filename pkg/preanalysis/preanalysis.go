// Package preanalysis 在启动昂贵的 ILP 求解前做确定性可行性体检
//
// 只报告必然不可行的事实，绝不误报：任何 KO 都意味着
// 无论求解器怎么排都无解。可疑但不确定的情况最多给告警。
package preanalysis

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/partition"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Report 预分析结果
// OK 为假时 Messages 含全部阻断原因（不短路，一次收齐）。
type Report struct {
	OK       bool              `json:"ok"`
	Messages []ttmodel.Message `json:"messages"`
}

// Engine 预分析引擎
type Engine struct {
	builder ttmodel.ConstraintBuilder
	log     *logger.SolverLogger
}

// New 创建预分析引擎
func New(builder ttmodel.ConstraintBuilder) *Engine {
	return &Engine{builder: builder, log: logger.NewSolverLogger()}
}

// PreAnalyse 对工作集做全量体检
func (e *Engine) PreAnalyse(d *ttmodel.Data) *Report {
	var messages []ttmodel.Message

	messages = append(messages, e.checkCourseTutors(d)...)
	messages = append(messages, e.checkTutorHours(d)...)
	messages = append(messages, e.checkConstraints(d)...)

	report := &Report{OK: true, Messages: messages}
	for _, m := range messages {
		if m.Level == "KO" {
			report.OK = false
			break
		}
	}
	e.log.PreAnalyseResult(d.Department.Abbrev, report.OK, len(report.Messages))
	return report
}

// checkCourseTutors 每门课必须有候选主讲
func (e *Engine) checkCourseTutors(d *ttmodel.Data) []ttmodel.Message {
	var messages []ttmodel.Message
	for _, c := range d.Courses {
		if len(d.EligibleTutors(c)) == 0 {
			m := ttmodel.KO("course_no_tutor", "课程 %s 没有任何候选主讲教师", c.ID)
			m.CourseIDs = []uuid.UUID{c.ID}
			messages = append(messages, m)
		}
	}
	return messages
}

// checkTutorHours 基于分区的教师课时可行性
// 只计该教师别无他选的课程（确定性下界），可用时长按
// 禁用声明与约束的分区补全扣减。
func (e *Engine) checkTutorHours(d *ttmodel.Data) []ttmodel.Message {
	var messages []ttmodel.Message
	settings := d.Department.Settings

	for tutorID, tutor := range d.Tutors {
		required := 0
		var courseIDs []uuid.UUID
		for _, c := range d.Courses {
			eligible := d.EligibleTutors(c)
			if len(eligible) == 1 && eligible[0] == tutorID {
				required += c.Duration
				courseIDs = append(courseIDs, c.ID)
			}
		}
		if required == 0 {
			continue
		}

		available := 0
		for _, p := range d.Periods {
			for _, day := range p.Dates(settings.Weekdays) {
				part, err := e.dayPartition(d, tutorID, day)
				if err != nil {
					continue
				}
				available += part.AvailableDuration()
			}
		}
		if required > available {
			m := ttmodel.KO("tutor_overbooked",
				"教师 %s 必须承担 %d 分钟课程，但可用时间只有 %d 分钟",
				tutor.Username, required, available)
			m.CourseIDs = courseIDs
			messages = append(messages, m)
		}
	}
	return messages
}

// dayPartition 构造教师某日的可用度分区
func (e *Engine) dayPartition(d *ttmodel.Data, tutorID uuid.UUID, day string) (*partition.Partition, error) {
	settings := d.Department.Settings
	part, err := partition.New(settings.DayStart, settings.DayEnd)
	if err != nil {
		return nil, err
	}

	for _, a := range d.UserAvailability[tutorID] {
		if a.Day != day || !a.IsForbidden() {
			continue
		}
		part.AddSlot(partition.TimeInterval{Start: a.Start, End: a.End},
			partition.SlotData{Forbidden: true, ConstraintType: "availability"})
	}

	for _, row := range d.Constraints {
		if !row.IsHard() {
			// 软约束允许被违反，不得折算为确定性禁用
			continue
		}
		enricher, err := e.builder(row)
		if err != nil {
			continue // 畸形约束由 checkConstraints 统一上报
		}
		if pc, ok := enricher.(constraint.PartitionCompleter); ok {
			pc.CompletePartition(part, d, row, day, tutorID)
		}
	}
	return part, nil
}

// checkConstraints 逐条探测约束的预分析能力
// 无该能力的约束静默跳过；实例化失败按 KO 上报。
func (e *Engine) checkConstraints(d *ttmodel.Data) []ttmodel.Message {
	var messages []ttmodel.Message
	for _, row := range d.Constraints {
		enricher, err := e.builder(row)
		if err != nil {
			messages = append(messages, ttmodel.KO("malformed_constraint",
				"约束 %s(%s) 无法实例化: %v", row.Kind, row.ID, err))
			continue
		}
		if pa, ok := enricher.(ttmodel.PreAnalyser); ok {
			messages = append(messages, pa.PreAnalyse(d, row)...)
		}
	}
	return messages
}

// Audit 事后审计：对已排结果逐约束检查满足情况
// 仅具备审计能力的约束参与；违反以告警上报（解本身仍然成立）。
func (e *Engine) Audit(d *ttmodel.Data, scheduled []*model.ScheduledCourse) []ttmodel.Message {
	var messages []ttmodel.Message
	for _, row := range d.Constraints {
		enricher, err := e.builder(row)
		if err != nil {
			continue
		}
		auditor, ok := enricher.(constraint.Auditor)
		if !ok {
			continue
		}
		if !auditor.IsSatisfied(d, row, scheduled) {
			level := "warning"
			if row.IsHard() {
				level = "KO"
			}
			messages = append(messages, ttmodel.Message{
				Level: level,
				Kind:  row.Kind,
				Text:  fmt.Sprintf("已排结果违反约束 %s(%s)", row.Kind, row.ID),
			})
		}
	}
	return messages
}
