package expand

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

const ov = model.ModeOverview

func newStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore(graph.DefaultOptions())
	if err := s.ReplaceView(ov, testutil.Dataset([]string{"A-B"})); err != nil {
		t.Fatal(err)
	}
	return s
}

func fixed(exp model.Expansion) Expander {
	return ExpanderFunc(func(context.Context, []string, model.ExpandMode) (model.Expansion, error) {
		return exp, nil
	})
}

// candidates returns X linked to A only and Y linked to both A and B.
func candidates() model.Expansion {
	return model.Expansion{
		Nodes: []model.NodeRecord{{ID: "X"}, {ID: "Y"}},
		Links: []model.LinkRecord{
			{Source: "A", Target: "X"},
			{Source: "A", Target: "Y"},
			{Source: "B", Target: "Y"},
		},
	}
}

// gated blocks every request until release is closed.
type gated struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	exp     model.Expansion
}

func newGated(exp model.Expansion) *gated {
	return &gated{started: make(chan struct{}, 8), release: make(chan struct{}), exp: exp}
}

func (g *gated) Expand(ctx context.Context, _ []string, _ model.ExpandMode) (model.Expansion, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.exp, nil
	case <-ctx.Done():
		return model.Expansion{}, ctx.Err()
	}
}

func nodeIDs(t *testing.T, s *graph.Store, mode model.Mode) []string {
	t.Helper()
	var ids []string
	_ = s.Read(mode, func(v *graph.View) {
		for _, n := range v.Nodes() {
			ids = append(ids, n.ID)
		}
	})
	return ids
}

func TestExpandAndMode(t *testing.T) {
	s := newStore(t)
	e := New(s, fixed(candidates()), Options{})

	res, err := e.Expand(context.Background(), []string{"A", "B"}, model.ExpandAnd)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stale {
		t.Fatal("fresh expansion marked stale")
	}
	testutil.AssertIDs(t, nodeIDs(t, s, ov), []string{"A", "B", "Y"})
	testutil.AssertIDs(t, res.Stats.Rejected, []string{"X"})
}

func TestExpandOrMode(t *testing.T) {
	s := newStore(t)
	e := New(s, fixed(candidates()), Options{})
	if _, err := e.Expand(context.Background(), []string{"A", "B"}, model.ExpandOr); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, nodeIDs(t, s, ov), []string{"A", "B", "X", "Y"})
}

func TestExpandStaleAfterViewSwitch(t *testing.T) {
	s := newStore(t)
	g := newGated(candidates())
	e := New(s, g, Options{})
	before, _ := s.Snapshot(ov)

	ch := e.ExpandAsync(context.Background(), []string{"A"}, model.ExpandOr)
	<-g.started
	if err := s.SetActive(model.ModeDetail); err != nil {
		t.Fatal(err)
	}
	close(g.release)

	res := <-ch
	if res.Err != nil {
		t.Fatalf("stale response surfaced error %v", res.Err)
	}
	if !res.Stale {
		t.Error("result not marked stale")
	}
	after, _ := s.Snapshot(ov)
	testutil.AssertJSONEqual(t, before, after)
}

func TestExpandFailureLeavesViewUntouched(t *testing.T) {
	s := newStore(t)
	boom := errors.New("connection refused")
	e := New(s, ExpanderFunc(func(context.Context, []string, model.ExpandMode) (model.Expansion, error) {
		return model.Expansion{}, boom
	}), Options{})
	failed := promtest.ToFloat64(metrics.ExpansionsTotal.WithLabelValues(metrics.OutcomeFailed))

	_, err := e.Expand(context.Background(), []string{"A"}, model.ExpandOr)
	var nf *NetworkFailure
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NetworkFailure", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not unwrapped")
	}
	testutil.AssertIDs(t, nodeIDs(t, s, ov), []string{"A", "B"})
	if got := promtest.ToFloat64(metrics.ExpansionsTotal.WithLabelValues(metrics.OutcomeFailed)); got != failed+1 {
		t.Errorf("failed counter = %v, want %v", got, failed+1)
	}
}

func TestExpandTimeout(t *testing.T) {
	s := newStore(t)
	g := newGated(candidates())
	e := New(s, g, Options{Timeout: 20 * time.Millisecond})

	_, err := e.Expand(context.Background(), []string{"A"}, model.ExpandOr)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	var nf *NetworkFailure
	if !errors.As(err, &nf) {
		t.Error("timeout is not a NetworkFailure")
	}
}

func TestExpandCoalescesIdenticalRequests(t *testing.T) {
	s := newStore(t)
	g := newGated(candidates())
	e := New(s, g, Options{})

	first := e.ExpandAsync(context.Background(), []string{"A", "B"}, model.ExpandOr)
	<-g.started
	second := e.ExpandAsync(context.Background(), []string{"B", "A"}, model.ExpandOr)
	time.Sleep(50 * time.Millisecond)
	close(g.release)

	r1, r2 := <-first, <-second
	if r1.Err != nil || r2.Err != nil {
		t.Fatalf("errors: %v, %v", r1.Err, r2.Err)
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("service called %d times", n)
	}
	if !r2.Shared {
		t.Error("second request not marked shared")
	}
	if r1.Stats.AddedNodes != 2 || r2.Stats.AddedNodes != 2 {
		t.Errorf("stats %+v / %+v", r1.Stats, r2.Stats)
	}
}

func TestExpandCallerCancelDoesNotFailSharedRequest(t *testing.T) {
	s := newStore(t)
	g := newGated(candidates())
	e := New(s, g, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	first := e.ExpandAsync(ctx, []string{"A"}, model.ExpandOr)
	<-g.started
	second := e.ExpandAsync(context.Background(), []string{"A"}, model.ExpandOr)
	time.Sleep(50 * time.Millisecond)

	cancel()
	r1 := <-first
	if !errors.Is(r1.Err, context.Canceled) {
		t.Fatalf("first err = %v, want context.Canceled", r1.Err)
	}
	close(g.release)

	r2 := <-second
	if r2.Err != nil {
		t.Fatalf("second err = %v", r2.Err)
	}
	if r2.Stats.AddedNodes != 2 {
		t.Errorf("stats = %+v", r2.Stats)
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("service called %d times", n)
	}
}

func TestCancelDropsInFlight(t *testing.T) {
	s := newStore(t)
	g := newGated(candidates())
	e := New(s, g, Options{})

	ch := e.ExpandAsync(context.Background(), []string{"A"}, model.ExpandOr)
	<-g.started
	e.Cancel()
	close(g.release)

	res := <-ch
	if res.Err != nil || !res.Stale {
		t.Fatalf("res = %+v", res)
	}
	testutil.AssertIDs(t, nodeIDs(t, s, ov), []string{"A", "B"})
}

func TestExpandValidation(t *testing.T) {
	s := newStore(t)
	e := New(s, fixed(candidates()), Options{})
	var ve *graph.ValidationError
	if _, err := e.Expand(context.Background(), nil, model.ExpandOr); !errors.As(err, &ve) {
		t.Errorf("no seeds: err = %v", err)
	}
	if _, err := e.Expand(context.Background(), []string{"A"}, "xor"); !errors.As(err, &ve) {
		t.Errorf("bad mode: err = %v", err)
	}
}

func TestExpandMalformedResponse(t *testing.T) {
	s := newStore(t)
	exp := candidates()
	exp.Links = append(exp.Links, model.LinkRecord{Source: "X", Target: "ghost"})
	e := New(s, fixed(exp), Options{})

	_, err := e.Expand(context.Background(), []string{"A"}, model.ExpandOr)
	var mal *graph.MalformedGraphError
	if !errors.As(err, &mal) {
		t.Fatalf("err = %v", err)
	}
	testutil.AssertIDs(t, nodeIDs(t, s, ov), []string{"A", "B"})
}

func TestRequestKeyIgnoresSeedOrder(t *testing.T) {
	st := graph.ViewStamp{Mode: ov, ViewID: "v1"}
	if requestKey(st, []string{"b", "a"}, model.ExpandOr) != requestKey(st, []string{"a", "b", "a"}, model.ExpandOr) {
		t.Error("keys differ by order")
	}
	if requestKey(st, []string{"a"}, model.ExpandOr) == requestKey(st, []string{"a"}, model.ExpandAnd) {
		t.Error("mode not part of the key")
	}
}
