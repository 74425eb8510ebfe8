package doctree

import (
	"encoding/json"
	"testing"
)

func uids(nodes []*Node) []UID {
	out := make([]UID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.UID)
	}
	return out
}

func sameUIDs(got []*Node, want ...UID) bool {
	g := uids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestBuild_TwoLevels(t *testing.T) {
	records := []ChapterRecord{
		{UID: 1, Level: 1, Idx: 0, Title: "Part One"},
		{UID: 2, Level: 2, Idx: 1, Title: "1.1"},
		{UID: 3, Level: 2, Idx: 5, Title: "1.2"},
		{UID: 4, Level: 1, Idx: 10, Title: "Part Two"},
	}
	forest := Build(records)

	if !sameUIDs(forest, 1, 4) {
		t.Fatalf("expected roots [1 4], got %v", uids(forest))
	}
	if !sameUIDs(forest[0].Children, 2, 3) {
		t.Errorf("expected node 1 children [2 3], got %v", uids(forest[0].Children))
	}
	if len(forest[1].Children) != 0 {
		t.Errorf("expected node 4 to have no children, got %v", uids(forest[1].Children))
	}
}

func TestBuild_NearestPrecedingParent(t *testing.T) {
	records := []ChapterRecord{
		{UID: 10, Level: 1, Idx: 0},
		{UID: 20, Level: 1, Idx: 10},
		{UID: 11, Level: 2, Idx: 3},
		{UID: 21, Level: 2, Idx: 12},
		{UID: 22, Level: 2, Idx: 15},
		{UID: 221, Level: 3, Idx: 16},
	}
	forest := Build(records)

	if !sameUIDs(forest, 10, 20) {
		t.Fatalf("expected roots [10 20], got %v", uids(forest))
	}
	if !sameUIDs(forest[0].Children, 11) {
		t.Errorf("expected node 10 children [11], got %v", uids(forest[0].Children))
	}
	if !sameUIDs(forest[1].Children, 21, 22) {
		t.Errorf("expected node 20 children [21 22], got %v", uids(forest[1].Children))
	}
	if !sameUIDs(forest[1].Children[1].Children, 221) {
		t.Errorf("expected node 22 children [221], got %v", uids(forest[1].Children[1].Children))
	}
}

func TestBuild_OrphanPromotedToRoot(t *testing.T) {
	records := []ChapterRecord{
		{UID: 5, Level: 2, Idx: 0, Title: "Preface"},
		{UID: 6, Level: 1, Idx: 1, Title: "Chapter 1"},
		{UID: 7, Level: 2, Idx: 2, Title: "1.1"},
	}
	forest := Build(records)

	if !sameUIDs(forest, 6, 5) {
		t.Fatalf("expected roots [6 5], got %v", uids(forest))
	}
	if !sameUIDs(forest[0].Children, 7) {
		t.Errorf("expected node 6 children [7], got %v", uids(forest[0].Children))
	}
}

func TestBuild_EqualIndexParentNotChosen(t *testing.T) {
	records := []ChapterRecord{
		{UID: 1, Level: 1, Idx: 4},
		{UID: 2, Level: 2, Idx: 4},
	}
	forest := Build(records)
	if !sameUIDs(forest, 1, 2) {
		t.Errorf("expected strict index comparison to promote 2, got roots %v", uids(forest))
	}
}

func TestBuild_SingleLevel(t *testing.T) {
	records := []ChapterRecord{
		{UID: 3, Level: 1, Idx: 2},
		{UID: 1, Level: 1, Idx: 0},
		{UID: 2, Level: 1, Idx: 1},
	}
	forest := Build(records)
	if !sameUIDs(forest, 1, 2, 3) {
		t.Fatalf("expected flat roots sorted by index, got %v", uids(forest))
	}
	for _, n := range forest {
		if len(n.Children) != 0 {
			t.Errorf("expected no nesting, node %d has %d children", n.UID, len(n.Children))
		}
	}
}

func TestBuild_TiesKeepInputOrder(t *testing.T) {
	records := []ChapterRecord{
		{UID: 9, Level: 1, Idx: 1},
		{UID: 8, Level: 1, Idx: 1},
		{UID: 7, Level: 1, Idx: 0},
	}
	forest := Build(records)
	if !sameUIDs(forest, 7, 9, 8) {
		t.Errorf("expected stable tie-break [7 9 8], got %v", uids(forest))
	}
}

func TestBuild_LevelsSortedNumerically(t *testing.T) {
	records := []ChapterRecord{
		{UID: 1, Level: 2, Idx: 0},
		{UID: 2, Level: 10, Idx: 1},
	}
	forest := Build(records)
	if !sameUIDs(forest, 1) {
		t.Fatalf("expected level 2 to be the root level, got roots %v", uids(forest))
	}
	if !sameUIDs(forest[0].Children, 2) {
		t.Errorf("expected level 10 record under level 2, got %v", uids(forest[0].Children))
	}
}

func TestBuild_Empty(t *testing.T) {
	forest := Build(nil)
	if forest == nil || len(forest) != 0 {
		t.Errorf("expected empty non-nil forest, got %v", forest)
	}
}

func TestRecords_OrderedByIndex(t *testing.T) {
	set := map[string]ChapterRecord{
		"3": {UID: 3, Idx: 2},
		"1": {UID: 1, Idx: 0},
		"2": {UID: 2, Idx: 1},
	}
	recs := Records(set)
	for i, want := range []UID{1, 2, 3} {
		if recs[i].UID != want {
			t.Errorf("position %d: expected uid %d, got %d", i, want, recs[i].UID)
		}
	}
}

func TestUID_AcceptsNumberAndString(t *testing.T) {
	var recs []ChapterRecord
	input := `[{"chapterUid": 12, "chapterIdx": 1, "level": 1, "title": "a"},
	           {"chapterUid": "13", "chapterIdx": 2, "level": 1, "title": "b"},
	           {"chapterUid": null, "chapterIdx": 3, "level": 1, "title": "c"}]`
	if err := json.Unmarshal([]byte(input), &recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs[0].UID != 12 || recs[1].UID != 13 || recs[2].UID != 0 {
		t.Errorf("expected uids 12, 13, 0; got %d, %d, %d", recs[0].UID, recs[1].UID, recs[2].UID)
	}
	if recs[1].UID.String() != "13" {
		t.Errorf("expected string key %q, got %q", "13", recs[1].UID.String())
	}
}

func TestUID_RejectsGarbage(t *testing.T) {
	var u UID
	if err := json.Unmarshal([]byte(`"chapter-one"`), &u); err == nil {
		t.Error("expected error for non-numeric uid")
	}
}

func TestReviewChapter_Sentinel(t *testing.T) {
	rc := ReviewChapter()
	if rc.UID != ReviewChapterUID || rc.Idx != int(ReviewChapterUID) || rc.Level != 1 {
		t.Errorf("unexpected sentinel %+v", rc)
	}
	if rc.Title != ReviewChapterTitle {
		t.Errorf("expected title %q, got %q", ReviewChapterTitle, rc.Title)
	}
}
