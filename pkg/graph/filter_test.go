package graph

import (
	"errors"
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

func TestFilterNodesByDegreeScenario(t *testing.T) {
	s := loaded(t, scenarioABC())

	if err := s.FilterNodesByDegree(ov, 1, 3); err != nil {
		t.Fatal(err)
	}
	if nodeOf(t, s, "C").Visible {
		t.Error("C (degree 0) visible")
	}
	if !nodeOf(t, s, "A").Visible || !nodeOf(t, s, "B").Visible {
		t.Error("A or B hidden")
	}
	if !linkVisible(t, s, "A", "B") {
		t.Error("link A-B hidden although both endpoints are visible")
	}
	checkView(t, s, ov)
}

func TestFilterNodesByDegreeHidesLinks(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.FilterNodesByDegree(ov, 2, 3); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, visibleIDs(s), []string{"A"})
	for _, other := range []string{"B", "D", "E"} {
		if linkVisible(t, s, "A", other) {
			t.Errorf("link A-%s visible with hidden endpoint", other)
		}
	}
	checkView(t, s, ov)
}

func TestFilterNodesByDegreeRejectsInverted(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.FilterNodesByDegree(ov, 1, 1); err != nil {
		t.Fatal(err)
	}
	before := visibleIDs(s)

	err := s.FilterNodesByDegree(ov, 3, 1)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	testutil.AssertIDs(t, visibleIDs(s), before)
	_ = s.Read(ov, func(v *View) {
		if f := v.Filter(); f.MinDegree != 1 || f.MaxDegree != 1 {
			t.Errorf("filter changed to %+v", f)
		}
	})
}

func TestFilterNodesByDegreeClamps(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.FilterNodesByDegree(ov, -5, 100); err != nil {
		t.Fatal(err)
	}
	_ = s.Read(ov, func(v *View) {
		f := v.Filter()
		if f.MinDegree != 0 || f.MaxDegree != 3 || f.DegreeActive {
			t.Errorf("filter = %+v, want full inactive range", f)
		}
	})
	if len(visibleIDs(s)) != 5 {
		t.Errorf("visible = %v", visibleIDs(s))
	}
}

func TestResetFilters(t *testing.T) {
	s := loaded(t, scenarioABC())
	_ = s.FilterNodesByDegree(ov, 3, 3)
	_, _ = s.ToggleNodeSelection(ov, "C")
	_ = s.SetSelfCentric(ov, SelfCentric1)
	if err := s.ResetFilters(ov); err != nil {
		t.Fatal(err)
	}
	if len(visibleIDs(s)) != 5 {
		t.Errorf("visible after reset = %v", visibleIDs(s))
	}
	checkView(t, s, ov)
}

func TestSetLinksVisible(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.SetLinksVisible(ov, false); err != nil {
		t.Fatal(err)
	}
	if linkVisible(t, s, "A", "B") {
		t.Error("link visible with global toggle off")
	}
	if !nodeOf(t, s, "B").Visible {
		t.Error("global link toggle hid a node")
	}
	_ = s.SetLinksVisible(ov, true)
	if !linkVisible(t, s, "A", "B") {
		t.Error("link not restored")
	}
	checkView(t, s, ov)
}

func TestSetLinkHidden(t *testing.T) {
	s := loaded(t, scenarioABC())
	if err := s.SetLinkHidden(ov, "B", "A", true); err != nil {
		t.Fatal(err)
	}
	if linkVisible(t, s, "A", "B") {
		t.Error("hidden link visible")
	}
	var ve *ValidationError
	if err := s.SetLinkHidden(ov, "B", "C", true); !errors.As(err, &ve) {
		t.Errorf("missing link: err = %v", err)
	}
	checkView(t, s, ov)
}

func TestSetComponentVisible(t *testing.T) {
	s := loaded(t, scenarioABC())
	cid := nodeOf(t, s, "C").Component
	if err := s.SetComponentVisible(ov, cid, false); err != nil {
		t.Fatal(err)
	}
	if nodeOf(t, s, "C").Visible {
		t.Error("node of hidden component visible")
	}
	if !nodeOf(t, s, "A").Visible {
		t.Error("node of other component hidden")
	}
	var ve *ValidationError
	if err := s.SetComponentVisible(ov, 999, false); !errors.As(err, &ve) {
		t.Errorf("unknown component: err = %v", err)
	}
	checkView(t, s, ov)
}

func valueDataset() model.Dataset {
	return model.Dataset{
		Nodes: []model.NodeRecord{
			{ID: "n1", Feature: "person", Properties: map[string]any{"kind": "Alpha", "score": 3}},
			{ID: "n2", Feature: "org", Properties: map[string]any{"kind": "alpha", "score": 3.0}},
			{ID: "n3", Feature: "person", Properties: map[string]any{"kind": "Alpha", "score": "3"}},
			{ID: "n4", Feature: "place"},
		},
		Links: []model.LinkRecord{
			{Source: "n1", Target: "n2", Connections: []model.Connection{{Label: "works-at", Feature: "employment"}}},
			{Source: "n3", Target: "n4", Connections: []model.Connection{{Label: "lives-in", Feature: "residence"}}},
			{Source: "n1", Target: "n3", Connections: []model.Connection{{Label: "knows", Feature: "employment"}}},
		},
	}
}

func TestFilterNodesWithValue(t *testing.T) {
	s := loaded(t, valueDataset())

	tests := []struct {
		name string
		q    ValueQuery
		want []string
	}{
		{"case sensitive", ValueQuery{Property: "kind", Value: "Alpha"}, []string{"n1", "n3"}},
		{"numeric across types", ValueQuery{Property: "score", Value: 3}, []string{"n1", "n2"}},
		{"string never equals number", ValueQuery{Property: "score", Value: "3"}, []string{"n3"}},
		{"built-in feature", ValueQuery{Property: "feature", Value: "person"}, []string{"n1", "n3"}},
		{"built-in degree", ValueQuery{Property: "degree", Value: 2.0}, []string{"n1", "n3"}},
		{"grouped", ValueQuery{Property: "kind", Value: "Alpha", GroupProperty: "score", GroupValue: 3}, []string{"n1"}},
		{"no match", ValueQuery{Property: "kind", Value: "omega"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FilterNodesWithValue(ov, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertIDs(t, got, tt.want)
		})
	}
}

func TestFilterNodesWithValueUnknownProperty(t *testing.T) {
	s := loaded(t, valueDataset())
	var ve *ValidationError
	if _, err := s.FilterNodesWithValue(ov, ValueQuery{Property: "colour", Value: "red"}); !errors.As(err, &ve) {
		t.Errorf("unknown property: err = %v", err)
	}
	if _, err := s.FilterNodesWithValue(ov, ValueQuery{Property: "kind", Value: "Alpha", GroupProperty: "nope"}); !errors.As(err, &ve) {
		t.Errorf("unknown group property: err = %v", err)
	}
}

func TestFilterEdgesWithValue(t *testing.T) {
	s := loaded(t, valueDataset())

	got, err := s.FilterEdgesWithValue(ov, "feature", "employment")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, got, []string{"n1", "n2", "n3"})

	got, err = s.FilterEdgesWithValue(ov, "label", "lives-in")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, got, []string{"n3", "n4"})

	var ve *ValidationError
	if _, err := s.FilterEdgesWithValue(ov, "weight", 1); !errors.As(err, &ve) {
		t.Errorf("unknown edge property: err = %v", err)
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{3, 3.0, true},
		{int64(2), uint8(2), true},
		{"a", "a", true},
		{"a", "A", false},
		{"3", 3, false},
		{nil, nil, true},
		{nil, "", false},
		{true, true, true},
		{true, "true", false},
	}
	for _, tt := range tests {
		if got := valuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("valuesEqual(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
