package constraint

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// RoomSort 教室偏好排序：被选课程尽量排进排名靠前的教室
//
// 参数给出偏好教室的先后顺序，未列出的兼容教室按名称排在其后。
// 首选教室零成本，名次每靠后一位成本递增一档。
type RoomSort struct {
	BaseConstraint
}

// NewRoomSort 创建教室偏好排序约束
func NewRoomSort() *RoomSort {
	return &RoomSort{BaseConstraint{kind: "room_sort"}}
}

type roomSortParams struct {
	// Preferences 教室 UUID 列表，最偏好的排最前
	Preferences []string `json:"preferences"`
}

// Enrich 注入模型
func (rs *RoomSort) Enrich(ctx *ttmodel.Context, row *model.TimetableConstraint) error {
	var p roomSortParams
	if err := DecodeParams(row, &p); err != nil {
		return err
	}
	preferred, err := ParseUUIDs("preferences", p.Preferences)
	if err != nil {
		return err
	}

	weight := row.LocalWeight()
	rankings := make(map[uuid.UUID]map[uuid.UUID]int)
	selected := make(map[uuid.UUID]uuid.UUID)
	for _, c := range SelectCourses(ctx.Data, row) {
		if rankings[c.RoomTypeID] == nil {
			rankings[c.RoomTypeID] = roomRanking(ctx.Data, c.RoomTypeID, preferred)
		}
		selected[c.ID] = c.RoomTypeID
	}

	for key, v := range ctx.TTroom {
		roomTypeID, ok := selected[key.CourseID]
		if !ok || !MatchesWeekday(row, key.Slot.Day) {
			continue
		}
		rank := rankings[roomTypeID][key.RoomID]
		if rank == 0 {
			continue
		}
		ctx.AddGenericCost(ilp.Term(v, weight*0.1*float64(rank)))
	}
	return nil
}

// roomRanking 为教室类型计算名次表（首选为 0）
// 偏好列表中的教室按给定顺序在前，其余兼容教室按名称补在后面。
func roomRanking(d *ttmodel.Data, roomTypeID uuid.UUID, preferred []uuid.UUID) map[uuid.UUID]int {
	compatible := d.Rooms.CompatibleRooms(roomTypeID)
	inType := make(map[uuid.UUID]bool, len(compatible))
	for _, r := range compatible {
		inType[r.ID] = true
	}

	ranking := make(map[uuid.UUID]int)
	next := 0
	for _, id := range preferred {
		if !inType[id] {
			continue
		}
		if _, seen := ranking[id]; seen {
			continue
		}
		ranking[id] = next
		next++
	}

	rest := make([]*model.Room, 0, len(compatible))
	for _, r := range compatible {
		if _, seen := ranking[r.ID]; !seen {
			rest = append(rest, r)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	for _, r := range rest {
		ranking[r.ID] = next
		next++
	}
	return ranking
}
