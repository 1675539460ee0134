// Package engine is the single entry point a renderer talks to. It owns the
// graph store, the expansion engine, the colour assignments and one layout
// controller per view mode, and recomputes colours and layout explicitly
// after every write instead of waiting for observers.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/expand"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Options configures an Engine.
type Options struct {
	Graph  graph.Options
	Expand expand.Options
	Layout layout.Options

	NodeScheme colors.Scheme
	LinkScheme colors.Scheme
	Theme      colors.Theme

	// AutoSettle restarts the simulation of a view after its structure
	// changed.
	AutoSettle bool
}

// DefaultOptions colours nodes and links by feature on a light background.
func DefaultOptions() Options {
	return Options{
		Graph:      graph.DefaultOptions(),
		Layout:     layout.DefaultOptions(),
		NodeScheme: colors.DefaultScheme(colors.TargetNodes),
		LinkScheme: colors.DefaultScheme(colors.TargetLinks),
		Theme:      colors.ThemeLight,
		AutoSettle: true,
	}
}

// Palette holds the node and link assignments of one view.
type Palette struct {
	Nodes colors.Assignment
	Links colors.Assignment
}

// Engine serialises renderer intents and keeps derived state current.
type Engine struct {
	store    *graph.Store
	expander *expand.Engine
	layouts  map[model.Mode]*layout.Controller

	// mu serialises facade writes so that a mutation and the colour
	// recompute that follows it are never interleaved with another write.
	mu         sync.Mutex
	nodeScheme colors.Scheme
	linkScheme colors.Scheme
	theme      colors.Theme
	autoSettle bool
	palettes   map[model.Mode]Palette
	hover      string
	hoverSet   map[string]struct{}
}

// New creates an engine. physics may be nil when no simulation is attached.
func New(service expand.Expander, physics layout.Physics, opts Options) (*Engine, error) {
	if err := opts.NodeScheme.Validate(); err != nil {
		return nil, fmt.Errorf("node scheme: %w", err)
	}
	if err := opts.LinkScheme.Validate(); err != nil {
		return nil, fmt.Errorf("link scheme: %w", err)
	}
	if !opts.Theme.IsValid() {
		return nil, fmt.Errorf("invalid theme %d", int(opts.Theme))
	}
	if physics == nil {
		physics = idlePhysics{}
	}
	if service == nil {
		service = expand.ExpanderFunc(func(context.Context, []string, model.ExpandMode) (model.Expansion, error) {
			return model.Expansion{}, fmt.Errorf("no expansion service configured")
		})
	}

	store := graph.NewStore(opts.Graph)
	e := &Engine{
		store:      store,
		expander:   expand.New(store, service, opts.Expand),
		layouts:    make(map[model.Mode]*layout.Controller, 2),
		nodeScheme: opts.NodeScheme,
		linkScheme: opts.LinkScheme,
		theme:      opts.Theme,
		autoSettle: opts.AutoSettle,
		palettes:   make(map[model.Mode]Palette, 2),
	}
	for _, m := range model.Modes() {
		e.layouts[m] = layout.NewController(store, m, physics, opts.Layout)
	}
	return e, nil
}

// idlePhysics stands in when no simulation is attached.
type idlePhysics struct{}

func (idlePhysics) Start(layout.Cooldown, []string) {}
func (idlePhysics) Stop()                           {}

// Store exposes the underlying store for reads and subscriptions.
func (e *Engine) Store() *graph.Store { return e.store }

// Layout returns the controller of mode.
func (e *Engine) Layout(mode model.Mode) *layout.Controller { return e.layouts[mode] }

// Active returns the mode on screen.
func (e *Engine) Active() model.Mode { return e.store.Active() }

// Snapshot copies the view of mode for rendering.
func (e *Engine) Snapshot(mode model.Mode) (graph.RenderSnapshot, error) {
	return e.store.Snapshot(mode)
}

// Palette returns the current assignments of mode.
func (e *Engine) Palette(mode model.Mode) Palette {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.palettes[mode]
}

// Load replaces the view of mode with ds.
func (e *Engine) Load(mode model.Mode, ds model.Dataset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.ReplaceView(mode, ds); err != nil {
		return err
	}
	if mode == e.store.Active() {
		e.clearHoverLocked()
	}
	if err := e.recolorLocked(mode); err != nil {
		return err
	}
	e.settle(mode)
	return nil
}

// SetActive switches the view on screen.
func (e *Engine) SetActive(mode model.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SetActive(mode); err != nil {
		return err
	}
	e.clearHoverLocked()
	return nil
}

// write runs fn against the active view, then recolours it and, when the
// structure changed, re-settles its layout.
func (e *Engine) write(structural bool, fn func(mode model.Mode) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := e.store.Active()
	if err := fn(mode); err != nil {
		return err
	}
	if err := e.recolorLocked(mode); err != nil {
		return err
	}
	if structural {
		e.pruneHoverLocked(mode)
		e.settle(mode)
	}
	return nil
}

// FilterNodesByDegree restricts the active view to degrees in [min, max].
func (e *Engine) FilterNodesByDegree(minDeg, maxDeg int) error {
	return e.write(false, func(m model.Mode) error { return e.store.FilterNodesByDegree(m, minDeg, maxDeg) })
}

// ResetFilters lifts the degree and self-centric filters.
func (e *Engine) ResetFilters() error {
	return e.write(false, e.store.ResetFilters)
}

// SetLinksVisible toggles every link of the active view.
func (e *Engine) SetLinksVisible(visible bool) error {
	return e.write(false, func(m model.Mode) error { return e.store.SetLinksVisible(m, visible) })
}

// SetLinkHidden hides or shows the link between a and b.
func (e *Engine) SetLinkHidden(a, b string, hidden bool) error {
	return e.write(false, func(m model.Mode) error { return e.store.SetLinkHidden(m, a, b, hidden) })
}

// SetComponentVisible shows or hides a component.
func (e *Engine) SetComponentVisible(id int, visible bool) error {
	return e.write(false, func(m model.Mode) error { return e.store.SetComponentVisible(m, id, visible) })
}

// SetSelection replaces the node selection.
func (e *Engine) SetSelection(ids []string) error {
	return e.write(false, func(m model.Mode) error { return e.store.SetSelection(m, ids) })
}

// SelectComponent toggles a component's selection.
func (e *Engine) SelectComponent(id int) (selected bool, err error) {
	err = e.write(false, func(m model.Mode) error {
		var err error
		selected, err = e.store.SelectComponent(m, id)
		return err
	})
	return selected, err
}

// SetSelfCentric restricts visibility to the selection's ego network.
func (e *Engine) SetSelfCentric(sc graph.SelfCentric) error {
	return e.write(false, func(m model.Mode) error { return e.store.SetSelfCentric(m, sc) })
}

// TrimNetwork drops every invisible element of the active view.
func (e *Engine) TrimNetwork() (stats graph.TrimStats, err error) {
	err = e.write(true, func(m model.Mode) error {
		var err error
		stats, err = e.store.TrimNetwork(m)
		return err
	})
	return stats, err
}

// RemoveSelection deletes the selected nodes of the active view.
func (e *Engine) RemoveSelection() (removed int, err error) {
	err = e.write(true, func(m model.Mode) error {
		var err error
		removed, err = e.store.RemoveSelection(m)
		return err
	})
	return removed, err
}

// NeighborsAtDepth returns the hop sets around ids in the active view.
func (e *Engine) NeighborsAtDepth(ids []string, depth int) ([][]string, error) {
	return e.store.NeighborsAtDepth(e.store.Active(), ids, depth)
}

// FilterNodesWithValue returns the ids of active-view nodes matching q.
func (e *Engine) FilterNodesWithValue(q graph.ValueQuery) ([]string, error) {
	return e.store.FilterNodesWithValue(e.store.Active(), q)
}

// FilterEdgesWithValue returns the endpoints of active-view links whose
// connections carry value.
func (e *Engine) FilterEdgesWithValue(property string, value any) ([]string, error) {
	return e.store.FilterEdgesWithValue(e.store.Active(), property, value)
}

// Expand fetches and merges an expansion of seeds into the active view. It
// blocks on the service without holding the facade lock.
func (e *Engine) Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (expand.Result, error) {
	res, err := e.expander.Expand(ctx, seeds, mode)
	if err != nil || res.Stale {
		return res, err
	}
	return res, e.afterMerge(res)
}

// ExpandAsync runs Expand in the background; the channel receives one
// Result and is closed.
func (e *Engine) ExpandAsync(ctx context.Context, seeds []string, mode model.ExpandMode) <-chan expand.Result {
	ch := make(chan expand.Result, 1)
	go func() {
		defer close(ch)
		res, err := e.Expand(ctx, seeds, mode)
		res.Err = err
		ch <- res
	}()
	return ch
}

// CancelExpansions drops the responses of every expansion in flight.
func (e *Engine) CancelExpansions() {
	e.expander.Cancel()
}

func (e *Engine) afterMerge(res expand.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Current(res.Stamp) {
		return nil
	}
	if err := e.recolorLocked(res.Stamp.Mode); err != nil {
		return err
	}
	if res.Stats.AddedNodes+res.Stats.AddedLinks > 0 {
		e.pruneHoverLocked(res.Stamp.Mode)
		e.settle(res.Stamp.Mode)
	}
	return nil
}

// SetNodeScheme changes the node colour scheme and recolours both views.
func (e *Engine) SetNodeScheme(s colors.Scheme) error {
	if s.Target != colors.TargetNodes {
		return fmt.Errorf("scheme %q does not target nodes", s.Name)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodeScheme = s
	return e.recolorAllLocked()
}

// SetLinkScheme changes the link colour scheme and recolours both views.
func (e *Engine) SetLinkScheme(s colors.Scheme) error {
	if s.Target != colors.TargetLinks {
		return fmt.Errorf("scheme %q does not target links", s.Name)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.linkScheme = s
	return e.recolorAllLocked()
}

// SetTheme switches light/dark colours and recolours both views.
func (e *Engine) SetTheme(t colors.Theme) error {
	if !t.IsValid() {
		return fmt.Errorf("invalid theme %d", int(t))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.theme = t
	return e.recolorAllLocked()
}

func (e *Engine) recolorAllLocked() error {
	for _, m := range model.Modes() {
		if err := e.recolorLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recolorLocked(mode model.Mode) error {
	snap, err := e.store.Snapshot(mode)
	if err != nil {
		return err
	}
	nodes, err := colors.Recompute(snap, e.nodeScheme, e.theme)
	if err != nil {
		return err
	}
	links, err := colors.Recompute(snap, e.linkScheme, e.theme)
	if err != nil {
		return err
	}
	e.palettes[mode] = Palette{Nodes: nodes, Links: links}
	metrics.ObserveView(string(mode), len(snap.Nodes), len(snap.Links))
	return e.store.ApplyColors(mode, nodes.NodeColors, links.LinkColors)
}

func (e *Engine) settle(mode model.Mode) {
	if !e.autoSettle || mode != e.store.Active() {
		return
	}
	if err := e.layouts[mode].ApplyForce(layout.Cooldown{}); err != nil {
		debug.Log("engine: settle %s: %v", mode, err)
	}
}
