package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// InvariantChecker is anything that can verify its own derived state.
type InvariantChecker interface {
	CheckInvariants() error
}

// AssertConsistent fails the test if c reports any invariant violation.
func AssertConsistent(t testing.TB, c InvariantChecker) {
	t.Helper()
	if err := c.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated:\n%v", err)
	}
}

// AssertIDs compares two id lists, order included.
func AssertIDs(t testing.TB, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

// AssertSameIDs compares two id lists ignoring order.
func AssertSameIDs(t testing.TB, got, want []string) {
	t.Helper()
	g := slices.Sorted(slices.Values(got))
	w := slices.Sorted(slices.Values(want))
	if !slices.Equal(g, w) {
		t.Errorf("ids = %v, want (any order) %v", got, want)
	}
}

// AssertJSONEqual compares two values by their JSON encoding.
func AssertJSONEqual(t testing.TB, expected, actual any) {
	t.Helper()
	exp, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	act, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(exp) != string(act) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", exp, act)
	}
}

// WriteDatasetFile writes ds as JSON to path, creating directories.
func WriteDatasetFile(t testing.TB, path string, ds model.Dataset) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal dataset: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
}

// NodeIDs returns the ids of records in order.
func NodeIDs(records []model.NodeRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
