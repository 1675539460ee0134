// Package layout drives the force-simulation lifecycle of a view. The
// physics itself is an external collaborator; the controller starts and
// stops it, enforces the cooldown, routes tick positions into the store and
// pins selected nodes when asked to.
package layout

import (
	"fmt"
	"sync"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Defaults for a simulation run.
const (
	DefaultCooldownTicks      = 300
	DefaultCooldownTime       = 15 * time.Second
	DefaultVisibilityDistance = 400.0
)

// Cooldown bounds a simulation run. A zero field means no bound of that kind.
type Cooldown struct {
	Ticks int
	Time  time.Duration
}

// DefaultCooldown returns the cooldown used when ApplyForce gets none.
func DefaultCooldown() Cooldown {
	return Cooldown{Ticks: DefaultCooldownTicks, Time: DefaultCooldownTime}
}

// Physics is the simulation engine. Start begins a run holding the pinned
// ids fixed; Stop ends it. Implementations report positions through
// Controller.OnTick and may end a run on their own with OnEngineStop.
type Physics interface {
	Start(c Cooldown, pinned []string)
	Stop()
}

// State is the lifecycle state of a controller.
type State int

const (
	Idle State = iota
	Simulating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Simulating:
		return "simulating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a controller.
type Options struct {
	Cooldown           Cooldown
	IgnoreSelected     bool
	VisibilityDistance float64
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		Cooldown:           DefaultCooldown(),
		VisibilityDistance: DefaultVisibilityDistance,
	}
}

// Controller owns the layout state of one view mode.
type Controller struct {
	store   *graph.Store
	mode    model.Mode
	physics Physics

	mu                 sync.Mutex
	state              State
	cooldown           Cooldown
	defaultCooldown    Cooldown
	ignoreSelected     bool
	visibilityDistance float64
	ticks              int
	gen                uint64
	timer              *time.Timer
	// pinned by this controller for the current run; released when it ends
	selectionPins []string
	// selected nodes stay put for the current run, including later selections
	holdSelected bool
	onState       func(State)
}

// NewController creates an idle controller for mode.
func NewController(store *graph.Store, mode model.Mode, physics Physics, opts Options) *Controller {
	if opts.Cooldown == (Cooldown{}) {
		opts.Cooldown = DefaultCooldown()
	}
	if opts.VisibilityDistance <= 0 {
		opts.VisibilityDistance = DefaultVisibilityDistance
	}
	return &Controller{
		store:              store,
		mode:               mode,
		physics:            physics,
		defaultCooldown:    opts.Cooldown,
		ignoreSelected:     opts.IgnoreSelected,
		visibilityDistance: opts.VisibilityDistance,
		onState:            func(State) {},
	}
}

// OnStateChange registers fn to run after every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func(State) {}
	}
	c.onState = fn
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the view mode the controller drives.
func (c *Controller) Mode() model.Mode {
	return c.mode
}

// ApplyForce starts a simulation run, restarting one already in progress.
// A zero cooldown uses the controller default.
func (c *Controller) ApplyForce(cd Cooldown) error {
	if cd.Ticks < 0 || cd.Time < 0 {
		return &graph.ValidationError{Op: "applyForce", Field: "cooldown", Reason: fmt.Sprintf("must not be negative (%+v)", cd)}
	}
	if cd == (Cooldown{}) {
		c.mu.Lock()
		cd = c.defaultCooldown
		c.mu.Unlock()
	}

	c.mu.Lock()
	restart := c.state == Simulating
	release := c.endLocked()
	ignore := c.ignoreSelected
	c.mu.Unlock()

	if restart {
		c.physics.Stop()
	}
	c.release(release)

	var pins []string
	if ignore {
		var err error
		if pins, err = c.pinSelection(); err != nil {
			return err
		}
	}
	var pinned []string
	if err := c.store.Read(c.mode, func(v *graph.View) { pinned = v.PinnedNodes() }); err != nil {
		return err
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Simulating
	c.cooldown = cd
	c.ticks = 0
	c.selectionPins = pins
	c.holdSelected = ignore
	if cd.Time > 0 {
		c.timer = time.AfterFunc(cd.Time, func() { c.expire(gen) })
	}
	notify := c.onState
	c.mu.Unlock()

	debug.Log("layout: %s simulating, cooldown %d ticks / %s, %d pinned", c.mode, cd.Ticks, cd.Time, len(pinned))
	c.physics.Start(cd, pinned)
	notify(Simulating)
	return nil
}

// StopForce ends the current run. It is a no-op when idle.
func (c *Controller) StopForce() {
	if c.stop() {
		c.physics.Stop()
	}
}

// OnEngineStop is called by the physics engine when it ended a run itself.
func (c *Controller) OnEngineStop() {
	c.stop()
}

// OnTick stores the positions of one simulation step. Ticks arriving while
// idle are dropped. Reaching the tick budget ends the run. When the run holds
// the selection, positions of nodes selected right now are discarded, so a
// node selected mid-run stops moving as well.
func (c *Controller) OnTick(positions map[string]model.Position) error {
	c.mu.Lock()
	if c.state != Simulating {
		c.mu.Unlock()
		return nil
	}
	c.ticks++
	done := c.cooldown.Ticks > 0 && c.ticks >= c.cooldown.Ticks
	hold := c.holdSelected
	c.mu.Unlock()

	if hold {
		var err error
		if positions, err = c.withoutSelected(positions); err != nil {
			return err
		}
	}
	if err := c.store.SetPositions(c.mode, positions); err != nil {
		return err
	}
	if done {
		debug.Log("layout: %s tick budget reached", c.mode)
		c.StopForce()
	}
	return nil
}

// Ticks returns the number of ticks of the current or last run.
func (c *Controller) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// SetIgnoreSelected toggles holding selected nodes in place. It applies to
// the next run.
func (c *Controller) SetIgnoreSelected(ignore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoreSelected = ignore
}

// IgnoreSelected reports whether selected nodes are pinned during runs.
func (c *Controller) IgnoreSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ignoreSelected
}

// ResetNodesPositions stops any run and clears every pin and stored
// position so the renderer computes a fresh initial layout.
func (c *Controller) ResetNodesPositions() error {
	c.StopForce()
	c.mu.Lock()
	c.selectionPins = nil
	c.mu.Unlock()
	return c.store.ClearLayout(c.mode)
}

// SetVisibilityDistance sets the camera distance beyond which labels are
// hidden.
func (c *Controller) SetVisibilityDistance(d float64) error {
	if d <= 0 {
		return &graph.ValidationError{Op: "setVisibilityDistance", Field: "distance", Reason: fmt.Sprintf("must be positive (%g)", d)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visibilityDistance = d
	return nil
}

// VisibilityDistance returns the label level-of-detail threshold.
func (c *Controller) VisibilityDistance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibilityDistance
}

// stop moves to Idle and reports whether a run was in progress.
func (c *Controller) stop() bool {
	c.mu.Lock()
	if c.state != Simulating {
		c.mu.Unlock()
		return false
	}
	release := c.endLocked()
	notify := c.onState
	c.mu.Unlock()

	c.release(release)
	debug.Log("layout: %s idle", c.mode)
	notify(Idle)
	return true
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	current := gen == c.gen && c.state == Simulating
	c.mu.Unlock()
	if !current {
		return
	}
	debug.Log("layout: %s cooldown time expired", c.mode)
	c.StopForce()
}

// endLocked resets run state and returns the pins to release. c.mu must be
// held.
func (c *Controller) endLocked() []string {
	c.state = Idle
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	pins := c.selectionPins
	c.selectionPins = nil
	c.holdSelected = false
	return pins
}

// withoutSelected returns positions minus the currently selected nodes.
func (c *Controller) withoutSelected(positions map[string]model.Position) (map[string]model.Position, error) {
	var selected []string
	if err := c.store.Read(c.mode, func(v *graph.View) { selected = v.SelectedNodes() }); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return positions, nil
	}
	out := make(map[string]model.Position, len(positions))
	for id, p := range positions {
		out[id] = p
	}
	for _, id := range selected {
		delete(out, id)
	}
	debug.LogIf(len(out) < len(positions), "layout: %s held %d selected nodes", c.mode, len(positions)-len(out))
	return out, nil
}

// pinSelection pins every selected node that is not pinned yet and returns
// those ids.
func (c *Controller) pinSelection() ([]string, error) {
	var ids []string
	err := c.store.Read(c.mode, func(v *graph.View) {
		for _, id := range v.SelectedNodes() {
			if n, ok := v.Node(id); ok && !n.Pinned {
				ids = append(ids, id)
			}
		}
	})
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	if err := c.store.SetPinned(c.mode, ids, true); err != nil {
		return nil, err
	}
	return ids, nil
}

// release unpins ids that still exist.
func (c *Controller) release(ids []string) {
	if len(ids) == 0 {
		return
	}
	var live []string
	_ = c.store.Read(c.mode, func(v *graph.View) {
		for _, id := range ids {
			if _, ok := v.Node(id); ok {
				live = append(live, id)
			}
		}
	})
	if len(live) == 0 {
		return
	}
	if err := c.store.SetPinned(c.mode, live, false); err != nil {
		debug.Log("layout: release pins: %v", err)
	}
}
