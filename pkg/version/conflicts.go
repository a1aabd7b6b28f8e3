package version

import (
	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// Conflict 与其它院系发布版的一处资源撞车
type Conflict struct {
	Kind          string    `json:"kind"` // tutor / room
	SubjectID     uuid.UUID `json:"subject_id"`
	CourseID      uuid.UUID `json:"course_id"`
	OtherCourseID uuid.UUID `json:"other_course_id"`
	Day           string    `json:"day"`
	Start         int       `json:"start_time"`
}

// ExternalCourse 其它院系发布版的一条排定（带时长，省去跨库课程查询）
type ExternalCourse struct {
	Scheduled *model.ScheduledCourse
	Duration  int
	// SuppTutorIDs 该课程的辅助教师（同样占用）
	SuppTutorIDs []uuid.UUID
}

// Conflicts 把一份排定与其它院系的发布版对撞，报告共享教师与教室的冲突
// 纯检查：只产出结构化报告，任何冲突都不会让调用失败。
func Conflicts(d *ttmodel.Data, mine []*model.ScheduledCourse, others []*ExternalCourse) []Conflict {
	var result []Conflict

	for _, sc := range mine {
		course := d.Course(sc.CourseID)
		if course == nil {
			continue
		}
		slot := sc.Slot(course.Duration, course.PeriodID)

		for _, other := range others {
			otherSlot := other.Scheduled.Slot(other.Duration, uuid.Nil)
			if !slot.IsSimultaneousTo(otherSlot) {
				continue
			}

			if sc.TutorID != nil && occupiesTutor(other, *sc.TutorID) {
				result = append(result, Conflict{
					Kind:          "tutor",
					SubjectID:     *sc.TutorID,
					CourseID:      sc.CourseID,
					OtherCourseID: other.Scheduled.CourseID,
					Day:           sc.Day,
					Start:         sc.Start,
				})
			}
			for _, supp := range course.SuppTutorIDs {
				if occupiesTutor(other, supp) {
					result = append(result, Conflict{
						Kind:          "tutor",
						SubjectID:     supp,
						CourseID:      sc.CourseID,
						OtherCourseID: other.Scheduled.CourseID,
						Day:           sc.Day,
						Start:         sc.Start,
					})
				}
			}

			if sc.RoomID != nil && other.Scheduled.RoomID != nil &&
				roomsCollide(d, *sc.RoomID, *other.Scheduled.RoomID) {
				result = append(result, Conflict{
					Kind:          "room",
					SubjectID:     *sc.RoomID,
					CourseID:      sc.CourseID,
					OtherCourseID: other.Scheduled.CourseID,
					Day:           sc.Day,
					Start:         sc.Start,
				})
			}
		}
	}
	return result
}

// occupiesTutor 外部排定是否占用该教师
func occupiesTutor(other *ExternalCourse, tutorID uuid.UUID) bool {
	if other.Scheduled.TutorID != nil && *other.Scheduled.TutorID == tutorID {
		return true
	}
	for _, id := range other.SuppTutorIDs {
		if id == tutorID {
			return true
		}
	}
	return false
}

// roomsCollide 两间教室是否互斥（同一间或处于包含关系闭包）
func roomsCollide(d *ttmodel.Data, a, b uuid.UUID) bool {
	if a == b {
		return true
	}
	for _, r := range d.Rooms.RelatedRooms(a) {
		if r.ID == b {
			return true
		}
	}
	return false
}
