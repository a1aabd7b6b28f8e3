package model

import (
	"testing"

	"github.com/google/uuid"
)

// buildHierarchy 班级 CE1 分为 TD1/TD2，TD1 再分为 TP1A/TP1B
func buildHierarchy(t *testing.T) (*GroupHierarchy, map[string]*Group) {
	t.Helper()
	tp := uuid.New()
	ce1 := &Group{BaseModel: NewBaseModel(), Name: "CE1", TrainProgID: tp, Kind: GroupStructural}
	td1 := &Group{BaseModel: NewBaseModel(), Name: "TD1", TrainProgID: tp, Kind: GroupStructural, ParentIDs: []uuid.UUID{ce1.ID}}
	td2 := &Group{BaseModel: NewBaseModel(), Name: "TD2", TrainProgID: tp, Kind: GroupStructural, ParentIDs: []uuid.UUID{ce1.ID}}
	tp1a := &Group{BaseModel: NewBaseModel(), Name: "TP1A", TrainProgID: tp, Kind: GroupStructural, ParentIDs: []uuid.UUID{td1.ID}}
	tp1b := &Group{BaseModel: NewBaseModel(), Name: "TP1B", TrainProgID: tp, Kind: GroupStructural, ParentIDs: []uuid.UUID{td1.ID}}

	h, err := NewGroupHierarchy([]*Group{ce1, td1, td2, tp1a, tp1b})
	if err != nil {
		t.Fatalf("构建层级失败: %v", err)
	}
	return h, map[string]*Group{"CE1": ce1, "TD1": td1, "TD2": td2, "TP1A": tp1a, "TP1B": tp1b}
}

func TestGroupHierarchy_ConnectedGroups(t *testing.T) {
	h, gs := buildHierarchy(t)

	connected := h.ConnectedGroups(gs["TD1"].ID)
	names := make(map[string]bool)
	for _, g := range connected {
		names[g.Name] = true
	}

	for _, want := range []string{"TD1", "CE1", "TP1A", "TP1B"} {
		if !names[want] {
			t.Errorf("连通组应包含 %s", want)
		}
	}
	if names["TD2"] {
		t.Error("连通组不应包含兄弟组 TD2")
	}
}

func TestGroupHierarchy_BasicGroups(t *testing.T) {
	h, _ := buildHierarchy(t)

	basics := h.BasicGroups()
	names := make(map[string]bool)
	for _, g := range basics {
		names[g.Name] = true
	}
	if len(basics) != 3 || !names["TD2"] || !names["TP1A"] || !names["TP1B"] {
		t.Errorf("基本组应为 TD2/TP1A/TP1B, 实际 %v", names)
	}
}

func TestGroupHierarchy_Conflicts(t *testing.T) {
	h, gs := buildHierarchy(t)

	if !h.Conflicts(gs["TD1"].ID, gs["TP1A"].ID) {
		t.Error("父子组应冲突")
	}
	if h.Conflicts(gs["TD1"].ID, gs["TD2"].ID) {
		t.Error("兄弟组不应冲突")
	}
	if !h.Conflicts(gs["CE1"].ID, gs["TP1B"].ID) {
		t.Error("祖孙组应冲突")
	}
}

func TestGroupHierarchy_CycleDetection(t *testing.T) {
	tp := uuid.New()
	a := &Group{BaseModel: NewBaseModel(), Name: "A", TrainProgID: tp, Kind: GroupStructural}
	b := &Group{BaseModel: NewBaseModel(), Name: "B", TrainProgID: tp, Kind: GroupStructural, ParentIDs: []uuid.UUID{a.ID}}
	a.ParentIDs = []uuid.UUID{b.ID}

	if _, err := NewGroupHierarchy([]*Group{a, b}); err == nil {
		t.Error("包含环应被拒绝")
	}
}

func TestGroupHierarchy_TransversalConflicts(t *testing.T) {
	h, gs := buildHierarchy(t)

	lang1 := &Group{BaseModel: NewBaseModel(), Name: "英语A", Kind: GroupTransversal,
		ConflictingIDs: []uuid.UUID{gs["TD1"].ID}}
	lang2 := &Group{BaseModel: NewBaseModel(), Name: "英语B", Kind: GroupTransversal,
		ParallelIDs: []uuid.UUID{lang1.ID}}

	all := append(h.All(), lang1, lang2)
	h2, err := NewGroupHierarchy(all)
	if err != nil {
		t.Fatalf("构建层级失败: %v", err)
	}

	// 横切组与其声明冲突的结构组（含其连通组）冲突
	if !h2.Conflicts(lang1.ID, gs["TP1A"].ID) {
		t.Error("横切组应与冲突结构组的子组冲突")
	}
	if h2.Conflicts(lang1.ID, gs["TD2"].ID) {
		t.Error("横切组不应与未声明的结构组冲突")
	}
	// 声明可并行的横切组互不冲突
	if h2.Conflicts(lang1.ID, lang2.ID) {
		t.Error("声明可并行的横切组不应冲突")
	}
}
