// Package expand runs network expansions against the external expansion
// service and merges their results into the active view.
//
// Requests run outside the store lock. When a response arrives, the merge
// re-checks that the view it was issued for is still the active one; if not,
// the response is dropped and the result is marked stale.
package expand

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// DefaultTimeout bounds one round trip to the expansion service.
const DefaultTimeout = 30 * time.Second

// Expander is the expansion service: it returns candidate nodes related to
// seeds and the links connecting them.
type Expander interface {
	Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error)
}

// ExpanderFunc adapts a function to Expander.
type ExpanderFunc func(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error)

// Expand calls f.
func (f ExpanderFunc) Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error) {
	return f(ctx, seeds, mode)
}

// NetworkFailure wraps an error returned by the expansion service. The view
// is never modified when a request fails.
type NetworkFailure struct {
	Seeds []string
	Mode  model.ExpandMode
	Cause error
	Time  time.Time
}

func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("expand %s %v failed: %v", e.Mode, e.Seeds, e.Cause)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Cause
}

// Result is the outcome of one expansion.
type Result struct {
	Stamp graph.ViewStamp
	Seeds []string
	Mode  model.ExpandMode
	Stats graph.MergeStats
	// Stale is set when the view changed or the request was cancelled
	// before the response arrived. Nothing was merged.
	Stale bool
	// Shared is set when the request was coalesced with an identical one.
	Shared bool
	Err    error
}

// Options configures an Engine.
type Options struct {
	Timeout time.Duration
}

// Engine issues expansions and merges their results.
type Engine struct {
	store    *graph.Store
	expander Expander
	timeout  time.Duration

	group singleflight.Group
	gen   atomic.Uint64
}

// New creates an engine merging into store.
func New(store *graph.Store, expander Expander, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{store: store, expander: expander, timeout: opts.Timeout}
}

// Expand fetches an expansion of seeds for the active view and merges it.
// It blocks until the service answers or the timeout passes. Identical
// requests in flight at the same time share one round trip and one merge.
//
// The shared round trip keeps ctx's values but not its cancellation, and is
// bounded by the engine timeout alone. A caller whose ctx ends stops waiting
// and gets ctx.Err(); the other callers still get the response. Use Cancel
// to drop responses.
//
// A service error returns *NetworkFailure. A stale response is not an error:
// the returned Result has Stale set.
func (e *Engine) Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (Result, error) {
	if !mode.IsValid() {
		metrics.ObserveExpansion(metrics.OutcomeInvalid)
		return Result{}, &graph.ValidationError{Op: "expand", Field: "mode", Reason: fmt.Sprintf("unknown expand mode %q", mode)}
	}
	if len(seeds) == 0 {
		metrics.ObserveExpansion(metrics.OutcomeInvalid)
		return Result{}, &graph.ValidationError{Op: "expand", Field: "seeds", Reason: "no seed nodes"}
	}
	stamp, err := e.store.Stamp(e.store.Active())
	if err != nil {
		return Result{}, err
	}

	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(requestKey(stamp, seeds, mode), func() (any, error) {
		defer debug.Trace("expand " + string(mode))()
		return e.run(detached, stamp, seeds, mode), nil
	})
	select {
	case r := <-ch:
		res := r.Val.(Result)
		res.Shared = r.Shared
		return res, res.Err
	case <-ctx.Done():
		debug.Log("expand: %s %v caller gave up: %v", mode, seeds, ctx.Err())
		return Result{Stamp: stamp, Seeds: seeds, Mode: mode, Err: ctx.Err()}, ctx.Err()
	}
}

// ExpandAsync runs Expand in the background. The channel receives exactly
// one Result and is then closed.
func (e *Engine) ExpandAsync(ctx context.Context, seeds []string, mode model.ExpandMode) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res, err := e.Expand(ctx, seeds, mode)
		res.Err = err
		ch <- res
	}()
	return ch
}

// Cancel marks every request in flight as stale. The requests are not
// aborted; their responses are dropped on arrival.
func (e *Engine) Cancel() {
	e.gen.Add(1)
}

func (e *Engine) run(ctx context.Context, stamp graph.ViewStamp, seeds []string, mode model.ExpandMode) Result {
	res := Result{Stamp: stamp, Seeds: seeds, Mode: mode}
	gen := e.gen.Load()

	exp, err := e.fetch(ctx, seeds, mode)
	if err != nil {
		metrics.ObserveExpansion(metrics.OutcomeFailed)
		debug.Log("expand: %s %v failed: %v", mode, seeds, err)
		res.Err = &NetworkFailure{Seeds: seeds, Mode: mode, Cause: err, Time: time.Now()}
		return res
	}
	if e.gen.Load() != gen {
		metrics.ObserveExpansion(metrics.OutcomeStale)
		debug.Log("expand: %s %v cancelled, response dropped", mode, seeds)
		res.Stale = true
		return res
	}

	res.Stats, res.Err = e.store.MergeExpansion(stamp, seeds, mode, exp)
	switch {
	case res.Err != nil:
		metrics.ObserveExpansion(metrics.OutcomeInvalid)
	case res.Stats.Stale:
		metrics.ObserveExpansion(metrics.OutcomeStale)
		res.Stale = true
	default:
		metrics.ObserveExpansion(metrics.OutcomeMerged)
	}
	return res
}

func (e *Engine) fetch(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error) {
	defer metrics.Timer(metrics.ExpansionFetch)()
	start := time.Now()
	defer func() { metrics.ExpansionDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	exp, err := e.expander.Expand(ctx, seeds, mode)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return exp, err
}

// requestKey identifies a request for coalescing. Seed order is irrelevant.
func requestKey(stamp graph.ViewStamp, seeds []string, mode model.ExpandMode) string {
	sorted := slices.Clone(seeds)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return fmt.Sprintf("%s/%s/%s/%s", stamp.Mode, stamp.ViewID, mode, strings.Join(sorted, "\x00"))
}
