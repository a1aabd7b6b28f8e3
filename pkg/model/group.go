package model

import (
	"fmt"

	"github.com/google/uuid"
)

// GroupKind 学生组类别
type GroupKind string

const (
	GroupStructural  GroupKind = "structural"  // 结构组（班级/TD/TP 的包含树）
	GroupTransversal GroupKind = "transversal" // 横切组（跨结构组，如选修语言班）
)

// TrainProg 培养方案
type TrainProg struct {
	BaseModel
	Name         string    `json:"name" db:"name"`
	Abbrev       string    `json:"abbrev" db:"abbrev"`
	DepartmentID uuid.UUID `json:"department_id" db:"department_id"`
}

// Group 学生组
// 结构组通过父子包含构成 DAG，叶子组为基本组；
// 横切组声明与哪些结构组冲突、与哪些横切组可并行。
type Group struct {
	BaseModel
	Name        string    `json:"name" db:"name"`
	TrainProgID uuid.UUID `json:"train_prog_id" db:"train_prog_id"`
	Kind        GroupKind `json:"kind" db:"kind"`
	Size        int       `json:"size" db:"size"`

	// 结构组：父组集合（一个组可属于多个父组）
	ParentIDs []uuid.UUID `json:"parent_ids" db:"parent_ids"`
	// 横切组：声明冲突的结构组
	ConflictingIDs []uuid.UUID `json:"conflicting_ids" db:"conflicting_ids"`
	// 横切组：允许并行的其它横切组
	ParallelIDs []uuid.UUID `json:"parallel_ids" db:"parallel_ids"`
}

// GroupHierarchy 院系学生组层级（只读快照，每次求解加载一次）
type GroupHierarchy struct {
	byID     map[uuid.UUID]*Group
	children map[uuid.UUID][]uuid.UUID
}

// NewGroupHierarchy 构建学生组层级并校验无环
func NewGroupHierarchy(groups []*Group) (*GroupHierarchy, error) {
	h := &GroupHierarchy{
		byID:     make(map[uuid.UUID]*Group, len(groups)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, g := range groups {
		h.byID[g.ID] = g
	}
	for _, g := range groups {
		for _, pid := range g.ParentIDs {
			if _, ok := h.byID[pid]; !ok {
				return nil, fmt.Errorf("学生组 %s 的父组 %s 不存在", g.Name, pid)
			}
			h.children[pid] = append(h.children[pid], g.ID)
		}
	}
	if err := h.checkAcyclic(); err != nil {
		return nil, err
	}
	return h, nil
}

// checkAcyclic 校验包含关系无环
func (h *GroupHierarchy) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uuid.UUID]int, len(h.byID))

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		color[id] = gray
		for _, child := range h.children[id] {
			switch color[child] {
			case gray:
				return fmt.Errorf("学生组包含关系存在环: %s", h.byID[child].Name)
			case white:
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for id := range h.byID {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get 按ID获取组
func (h *GroupHierarchy) Get(id uuid.UUID) *Group {
	return h.byID[id]
}

// All 返回全部组
func (h *GroupHierarchy) All() []*Group {
	groups := make([]*Group, 0, len(h.byID))
	for _, g := range h.byID {
		groups = append(groups, g)
	}
	return groups
}

// Ancestors 返回组的全部祖先
func (h *GroupHierarchy) Ancestors(id uuid.UUID) []*Group {
	seen := make(map[uuid.UUID]bool)
	var result []*Group
	var walk func(uuid.UUID)
	walk = func(cur uuid.UUID) {
		g := h.byID[cur]
		if g == nil {
			return
		}
		for _, pid := range g.ParentIDs {
			if !seen[pid] {
				seen[pid] = true
				if p := h.byID[pid]; p != nil {
					result = append(result, p)
				}
				walk(pid)
			}
		}
	}
	walk(id)
	return result
}

// Descendants 返回组的全部后代
func (h *GroupHierarchy) Descendants(id uuid.UUID) []*Group {
	seen := make(map[uuid.UUID]bool)
	var result []*Group
	var walk func(uuid.UUID)
	walk = func(cur uuid.UUID) {
		for _, cid := range h.children[cur] {
			if !seen[cid] {
				seen[cid] = true
				result = append(result, h.byID[cid])
				walk(cid)
			}
		}
	}
	walk(id)
	return result
}

// ConnectedGroups 返回自身∪祖先∪后代
// 该集合内的组不可同时排课。
func (h *GroupHierarchy) ConnectedGroups(id uuid.UUID) []*Group {
	g := h.byID[id]
	if g == nil {
		return nil
	}
	result := []*Group{g}
	result = append(result, h.Ancestors(id)...)
	result = append(result, h.Descendants(id)...)
	return result
}

// BasicGroups 返回基本组（无子组的结构组叶子）
func (h *GroupHierarchy) BasicGroups() []*Group {
	var result []*Group
	for id, g := range h.byID {
		if g.Kind == GroupStructural && len(h.children[id]) == 0 {
			result = append(result, g)
		}
	}
	return result
}

// Conflicts 检查两个组是否不可同时排课
func (h *GroupHierarchy) Conflicts(a, b uuid.UUID) bool {
	if a == b {
		return true
	}
	ga, gb := h.byID[a], h.byID[b]
	if ga == nil || gb == nil {
		return false
	}

	// 结构组之间：同一连通链上即冲突
	if ga.Kind == GroupStructural && gb.Kind == GroupStructural {
		for _, g := range h.ConnectedGroups(a) {
			if g.ID == b {
				return true
			}
		}
		return false
	}

	// 横切组对横切组：默认冲突，除非声明可并行
	if ga.Kind == GroupTransversal && gb.Kind == GroupTransversal {
		for _, pid := range ga.ParallelIDs {
			if pid == b {
				return false
			}
		}
		for _, pid := range gb.ParallelIDs {
			if pid == a {
				return false
			}
		}
		return true
	}

	// 横切组对结构组：按声明的冲突集合（含其连通组）
	trans, structural := ga, gb
	if gb.Kind == GroupTransversal {
		trans, structural = gb, ga
	}
	for _, cid := range trans.ConflictingIDs {
		for _, g := range h.ConnectedGroups(cid) {
			if g.ID == structural.ID {
				return true
			}
		}
	}
	return false
}
