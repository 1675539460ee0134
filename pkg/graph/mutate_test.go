package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

func TestTrimNetworkRemovesInvisible(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.FilterNodesByDegree(ov, 1, 3); err != nil {
		t.Fatal(err)
	}

	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Nodes != 1 || stats.Links != 0 || stats.Components != 1 {
		t.Errorf("stats = %+v, want 1 node, 0 links, 1 component", stats)
	}
	if hasNode(s, "C") {
		t.Error("C survived the trim")
	}
	_ = s.Read(ov, func(v *View) {
		if v.Filter().DegreeActive {
			t.Error("degree range still active after trim")
		}
	})
	checkView(t, s, ov)
}

func TestTrimNetworkRecomputesDegree(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.SetLinkHidden(ov, "A", "B", true); err != nil {
		t.Fatal(err)
	}
	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Links != 1 {
		t.Errorf("removed links = %d, want 1", stats.Links)
	}
	if d := nodeOf(t, s, "A").Degree; d != 2 {
		t.Errorf("degree(A) = %d, want 2", d)
	}
	if d := nodeOf(t, s, "B").Degree; d != 0 {
		t.Errorf("degree(B) = %d, want 0", d)
	}
	_ = s.Read(ov, func(v *View) {
		if v.Meta().MaxDegree != 2 {
			t.Errorf("maxDegree = %d", v.Meta().MaxDegree)
		}
	})
	checkView(t, s, ov)
}

func TestTrimNetworkIgnoresGlobalLinkToggle(t *testing.T) {
	s := loaded(t, scenarioABC())
	_ = s.SetLinksVisible(ov, false)
	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Links != 0 {
		t.Errorf("trim removed %d links hidden only by the global toggle", stats.Links)
	}
}

func TestTrimNetworkIdempotent(t *testing.T) {
	g := testutil.NewDefault()
	s := loaded(t, g.ToDataset(g.Random(40, 0.08)))
	_, _ = s.ToggleNodeSelection(ov, "n3")
	_ = s.SetSelfCentric(ov, SelfCentric2)
	_ = s.FilterNodesByDegree(ov, 1, 4)

	if _, err := s.TrimNetwork(ov); err != nil {
		t.Fatal(err)
	}
	first, _ := s.Snapshot(ov)
	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (TrimStats{}) {
		t.Errorf("second trim removed %+v", stats)
	}
	second, _ := s.Snapshot(ov)
	testutil.AssertJSONEqual(t, first, second)
	checkView(t, s, ov)
}

func TestTrimHiddenComponent(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"a-b", "c-d"}))
	cid := nodeOf(t, s, "c").Component
	_ = s.SetComponentVisible(ov, cid, false)
	_, _ = s.SelectComponent(ov, cid)

	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Nodes != 2 || stats.Links != 1 || stats.Components != 1 {
		t.Errorf("stats = %+v", stats)
	}
	_ = s.Read(ov, func(v *View) {
		if len(v.SelectedComponents()) != 0 {
			t.Errorf("selected components = %v", v.SelectedComponents())
		}
	})
	checkView(t, s, ov)
}

func TestRemoveSelection(t *testing.T) {
	s := loaded(t, scenarioABC())
	_ = s.FilterNodesByDegree(ov, 1, 1) // hides A; removal ignores visibility
	_ = s.SetSelection(ov, []string{"A", "C"})

	n, err := s.RemoveSelection(ov)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed %d nodes, want 2", n)
	}
	nodes, links, _ := counts(s)
	if nodes != 3 || links != 0 {
		t.Errorf("left %d nodes, %d links", nodes, links)
	}
	for _, id := range []string{"B", "D", "E"} {
		if d := nodeOf(t, s, id).Degree; d != 0 {
			t.Errorf("degree(%s) = %d", id, d)
		}
	}
	_ = s.Read(ov, func(v *View) {
		if len(v.SelectedNodes()) != 0 {
			t.Errorf("selection = %v", v.SelectedNodes())
		}
	})
	checkView(t, s, ov)

	if n, _ := s.RemoveSelection(ov); n != 0 {
		t.Errorf("empty selection removed %d", n)
	}
}

func TestTrimNetworkKeepsDeclaredComponents(t *testing.T) {
	s := loaded(t, declaredAB())
	want := map[string]int{"a": 7, "b": 7, "c": 3, "d": 3}

	stats, err := s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (TrimStats{}) {
		t.Errorf("nothing hidden, stats = %+v", stats)
	}
	if got := componentsByNode(s); !reflect.DeepEqual(got, want) {
		t.Errorf("components = %v, want %v", got, want)
	}

	if err := s.SetComponentVisible(ov, 3, false); err != nil {
		t.Fatal(err)
	}
	stats, err = s.TrimNetwork(ov)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (TrimStats{Nodes: 2, Components: 1}) {
		t.Errorf("stats = %+v", stats)
	}
	if got := componentsByNode(s); !reflect.DeepEqual(got, map[string]int{"a": 7, "b": 7}) {
		t.Errorf("components = %v", got)
	}
	checkView(t, s, ov)
}

func TestRemoveSelectionKeepsDeclaredComponents(t *testing.T) {
	s := loaded(t, declaredAB())
	_ = s.SetSelection(ov, []string{"d"})
	if _, err := s.RemoveSelection(ov); err != nil {
		t.Fatal(err)
	}
	if got := componentsByNode(s); !reflect.DeepEqual(got, map[string]int{"a": 7, "b": 7, "c": 3}) {
		t.Errorf("components = %v", got)
	}

	_ = s.SetSelection(ov, []string{"c"})
	if _, err := s.RemoveSelection(ov); err != nil {
		t.Fatal(err)
	}
	if _, _, comps := counts(s); comps != 1 {
		t.Errorf("components = %d, want 1 once 3 is emptied", comps)
	}
	checkView(t, s, ov)
}

func expansionXY() model.Expansion {
	return model.Expansion{
		Nodes: []model.NodeRecord{{ID: "X", Feature: "term"}, {ID: "Y", Feature: "term"}},
		Links: []model.LinkRecord{
			{Source: "A", Target: "X"},
			{Source: "A", Target: "Y"},
			{Source: "Y", Target: "B"},
		},
	}
}

func TestMergeExpansionAndRequiresEverySeed(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)

	stats, err := s.MergeExpansion(st, []string{"A", "B"}, model.ExpandAnd, expansionXY())
	if err != nil {
		t.Fatal(err)
	}
	if hasNode(s, "X") {
		t.Error("X connects only to A but was merged under and")
	}
	if !hasNode(s, "Y") {
		t.Error("Y connects to both seeds but was not merged")
	}
	testutil.AssertIDs(t, stats.Rejected, []string{"X"})
	if stats.AddedNodes != 1 || stats.AddedLinks != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if d := nodeOf(t, s, "A").Degree; d != 2 {
		t.Errorf("degree(A) = %d, want 2", d)
	}
	checkView(t, s, ov)
}

func TestMergeExpansionOr(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)

	stats, err := s.MergeExpansion(st, []string{"A", "B"}, model.ExpandOr, expansionXY())
	if err != nil {
		t.Fatal(err)
	}
	if !hasNode(s, "X") || !hasNode(s, "Y") {
		t.Error("or expansion dropped a candidate")
	}
	if len(stats.Rejected) != 0 || stats.AddedLinks != 3 {
		t.Errorf("stats = %+v", stats)
	}
	_ = s.Read(ov, func(v *View) {
		if v.Meta().MaxDegree != 3 {
			t.Errorf("maxDegree = %d, want 3", v.Meta().MaxDegree)
		}
	})
	checkView(t, s, ov)
}

func TestMergeExpansionUpdatesExisting(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)

	exp := model.Expansion{
		Nodes: []model.NodeRecord{{ID: "B", Entries: []string{"doc-9"}}},
		Links: []model.LinkRecord{{
			Source:      "B",
			Target:      "A",
			Connections: []model.Connection{{Label: "cites", Feature: "citation", Weight: 2}},
		}},
	}
	stats, err := s.MergeExpansion(st, []string{"A"}, model.ExpandOr, exp)
	if err != nil {
		t.Fatal(err)
	}
	if stats.UpdatedNodes != 1 || stats.UpdatedLinks != 1 || stats.AddedLinks != 0 {
		t.Errorf("stats = %+v", stats)
	}
	_ = s.Read(ov, func(v *View) {
		l, _ := v.Link("A", "B")
		if len(l.Connections) != 2 {
			t.Errorf("connections = %+v", l.Connections)
		}
		b, _ := v.Node("B")
		if len(b.Entries) != 1 || b.Entries[0] != "doc-9" {
			t.Errorf("entries = %v", b.Entries)
		}
	})
	checkView(t, s, ov)
}

func TestMergeExpansionStaleAfterReload(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)
	if err := s.ReplaceView(ov, testutil.Dataset([]string{"A-B"})); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Snapshot(ov)

	stats, err := s.MergeExpansion(st, []string{"A"}, model.ExpandOr, expansionXY())
	if err != nil {
		t.Fatalf("stale merge returned error %v", err)
	}
	if !stats.Stale {
		t.Error("stats.Stale not set")
	}
	after, _ := s.Snapshot(ov)
	testutil.AssertJSONEqual(t, before, after)
}

func TestMergeExpansionStaleAfterViewSwitch(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)
	before, _ := s.Snapshot(ov)

	if err := s.SetActive(model.ModeDetail); err != nil {
		t.Fatal(err)
	}
	stats, err := s.MergeExpansion(st, []string{"A"}, model.ExpandOr, expansionXY())
	if err != nil || !stats.Stale {
		t.Fatalf("stats = %+v, err = %v", stats, err)
	}
	after, _ := s.Snapshot(ov)
	testutil.AssertJSONEqual(t, before, after)
}

func TestMergeExpansionRejectsDangling(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)
	exp := expansionXY()
	exp.Links = append(exp.Links, model.LinkRecord{Source: "X", Target: "nobody"})

	_, err := s.MergeExpansion(st, []string{"A"}, model.ExpandOr, exp)
	var mal *MalformedGraphError
	if !errors.As(err, &mal) {
		t.Fatalf("err = %v, want *MalformedGraphError", err)
	}
	if hasNode(s, "X") {
		t.Error("partial merge after malformed payload")
	}
}

func TestMergeExpansionUnknownSeeds(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)
	stats, err := s.MergeExpansion(st, []string{"ghost"}, model.ExpandAnd, expansionXY())
	if err != nil {
		t.Fatal(err)
	}
	if stats.AddedNodes != 0 || len(stats.Rejected) != 2 {
		t.Errorf("stats = %+v", stats)
	}
	// every link touches a rejected node
	if stats.AddedLinks != 0 {
		t.Errorf("added links = %d", stats.AddedLinks)
	}
}

func TestMergeExpansionInvalidMode(t *testing.T) {
	s := loaded(t, testutil.Dataset([]string{"A-B"}))
	st, _ := s.Stamp(ov)
	var ve *ValidationError
	if _, err := s.MergeExpansion(st, nil, "xor", model.Expansion{}); !errors.As(err, &ve) {
		t.Errorf("err = %v", err)
	}
}
