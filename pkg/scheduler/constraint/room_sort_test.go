package constraint

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/ilp"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// addRoom 为工作集追加一间同类型教室
func addRoom(d *ttmodel.Data, name string) *model.Room {
	roomType := d.Courses[0].RoomTypeID
	room := &model.Room{BaseModel: model.NewBaseModel(), Name: name, TypeIDs: []uuid.UUID{roomType}}
	d.Rooms = model.NewRoomIndex(append(d.Rooms.All(), room))
	return room
}

func TestRoomSort_PrefersRankedRoom(t *testing.T) {
	d := newTestData(t, 1)
	better := addRoom(d, "B202")

	weight := 4
	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "room_sort",
		Weight:       &weight,
		Params: model.JSONMap{
			"preferences": []string{better.ID.String()},
		},
	}
	ctx, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	require.Equal(t, ilp.StatusOptimal, sol.Status)

	courses, err := ctx.ExtractSolution(sol.Values)
	require.NoError(t, err)
	require.NotNil(t, courses[0].RoomID)
	assert.Equal(t, better.ID, *courses[0].RoomID, "有余地时应选名次靠前的教室")
}

func TestRoomSort_DefaultRankingByName(t *testing.T) {
	d := newTestData(t, 1)
	addRoom(d, "B202")

	// 无偏好列表：按教室名称排序，A101 名次第一
	weight := 4
	row := &model.TimetableConstraint{
		BaseModel:    model.NewBaseModel(),
		DepartmentID: d.Department.ID,
		Kind:         "room_sort",
		Weight:       &weight,
		Params:       model.JSONMap{},
	}
	ctx, sol := buildAndSolve(t, d, []*model.TimetableConstraint{row})
	require.Equal(t, ilp.StatusOptimal, sol.Status)

	courses, err := ctx.ExtractSolution(sol.Values)
	require.NoError(t, err)
	require.NotNil(t, courses[0].RoomID)
	first, ok := lookupRoom(d, *courses[0].RoomID)
	require.True(t, ok)
	assert.Equal(t, "A101", first.Name)
}

func TestRoomSort_BadPreferenceRejected(t *testing.T) {
	d := newTestData(t, 1)
	row := &model.TimetableConstraint{
		BaseModel: model.NewBaseModel(),
		Kind:      "room_sort",
		Params:    model.JSONMap{"preferences": []string{"not-a-uuid"}},
	}
	ctx, _ := buildContextOnly(t, d)
	enricher, err := Build(row)
	require.NoError(t, err)
	assert.Error(t, enricher.Enrich(ctx, row))
}

func lookupRoom(d *ttmodel.Data, id uuid.UUID) (*model.Room, bool) {
	for _, r := range d.Rooms.All() {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}
