package model

import (
	"github.com/google/uuid"
)

// RoomType 教室类型（课程通过类型声明教室需求）
type RoomType struct {
	BaseModel
	Name         string    `json:"name" db:"name"`
	DepartmentID uuid.UUID `json:"department_id" db:"department_id"`
}

// Room 教室（物理或逻辑空间）
// 教室可由若干子教室组成：占用子教室即占用其全部上级，反之亦然。
type Room struct {
	BaseModel
	Name string `json:"name" db:"name"`
	// SubroomIDs 组成该教室的子教室
	SubroomIDs    []uuid.UUID `json:"subroom_ids" db:"subroom_ids"`
	TypeIDs       []uuid.UUID `json:"type_ids" db:"type_ids"`
	DepartmentIDs []uuid.UUID `json:"department_ids" db:"department_ids"`
}

// HasType 检查教室是否属于指定类型
func (r *Room) HasType(typeID uuid.UUID) bool {
	for _, tid := range r.TypeIDs {
		if tid == typeID {
			return true
		}
	}
	return false
}

// RoomIndex 教室包含关系索引
type RoomIndex struct {
	byID    map[uuid.UUID]*Room
	parents map[uuid.UUID][]uuid.UUID
}

// NewRoomIndex 构建教室索引
func NewRoomIndex(rooms []*Room) *RoomIndex {
	idx := &RoomIndex{
		byID:    make(map[uuid.UUID]*Room, len(rooms)),
		parents: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, r := range rooms {
		idx.byID[r.ID] = r
	}
	for _, r := range rooms {
		for _, sid := range r.SubroomIDs {
			idx.parents[sid] = append(idx.parents[sid], r.ID)
		}
	}
	return idx
}

// Get 按ID获取教室
func (idx *RoomIndex) Get(id uuid.UUID) *Room {
	return idx.byID[id]
}

// All 返回全部教室
func (idx *RoomIndex) All() []*Room {
	rooms := make([]*Room, 0, len(idx.byID))
	for _, r := range idx.byID {
		rooms = append(rooms, r)
	}
	return rooms
}

// Overrooms 返回包含该教室的全部上级教室（传递闭包）
func (idx *RoomIndex) Overrooms(id uuid.UUID) []*Room {
	seen := make(map[uuid.UUID]bool)
	var result []*Room
	var walk func(uuid.UUID)
	walk = func(cur uuid.UUID) {
		for _, pid := range idx.parents[cur] {
			if !seen[pid] {
				seen[pid] = true
				result = append(result, idx.byID[pid])
				walk(pid)
			}
		}
	}
	walk(id)
	return result
}

// Subrooms 返回该教室的全部子教室（传递闭包）
func (idx *RoomIndex) Subrooms(id uuid.UUID) []*Room {
	seen := make(map[uuid.UUID]bool)
	var result []*Room
	var walk func(uuid.UUID)
	walk = func(cur uuid.UUID) {
		r := idx.byID[cur]
		if r == nil {
			return
		}
		for _, sid := range r.SubroomIDs {
			if !seen[sid] {
				seen[sid] = true
				if sub := idx.byID[sid]; sub != nil {
					result = append(result, sub)
				}
				walk(sid)
			}
		}
	}
	walk(id)
	return result
}

// RelatedRooms 返回自身∪上级∪子教室
// 占用其中任意一间即与其余全部互斥。
func (idx *RoomIndex) RelatedRooms(id uuid.UUID) []*Room {
	r := idx.byID[id]
	if r == nil {
		return nil
	}
	result := []*Room{r}
	result = append(result, idx.Overrooms(id)...)
	result = append(result, idx.Subrooms(id)...)
	return result
}

// CompatibleRooms 返回指定类型的全部教室
func (idx *RoomIndex) CompatibleRooms(typeID uuid.UUID) []*Room {
	var result []*Room
	for _, r := range idx.byID {
		if r.HasType(typeID) {
			result = append(result, r)
		}
	}
	return result
}
