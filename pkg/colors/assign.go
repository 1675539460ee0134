package colors

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Assignment is the colour mapping of one scheme over one view.
type Assignment struct {
	Scheme Scheme
	Theme  Theme
	Typing Typing
	Family Family

	NodeColors map[string]string
	LinkColors map[model.LinkKey]string

	// Keys lists categorical keys in first-seen order and Index maps each to
	// its palette slot. Both are empty for continuous assignments.
	Keys  []string
	Index map[string]int

	// Bins holds the RampSize+1 bin edges of a continuous assignment.
	Bins []float64
}

// Len returns the number of coloured elements.
func (a Assignment) Len() int {
	return len(a.NodeColors) + len(a.LinkColors)
}

// Bytes returns a canonical encoding of the assignment. Map keys are sorted,
// so equal assignments encode identically.
func (a Assignment) Bytes() ([]byte, error) {
	links := make(map[string]string, len(a.LinkColors))
	for k, c := range a.LinkColors {
		links[k.String()] = c
	}
	return json.Marshal(struct {
		Scheme string            `json:"scheme"`
		Target Target            `json:"target"`
		Theme  string            `json:"theme"`
		Family string            `json:"family"`
		Keys   []string          `json:"keys,omitempty"`
		Bins   []float64         `json:"bins,omitempty"`
		Nodes  map[string]string `json:"nodes"`
		Links  map[string]string `json:"links"`
	}{
		Scheme: a.Scheme.Source,
		Target: a.Scheme.Target,
		Theme:  a.Theme.String(),
		Family: a.Family.String(),
		Keys:   a.Keys,
		Bins:   a.Bins,
		Nodes:  a.NodeColors,
		Links:  links,
	})
}

// element is one colourable item with its attribute value.
type element struct {
	node  string
	link  model.LinkKey
	value any
}

// Recompute derives the colours of scheme over snap. It fails only for an
// invalid scheme or theme; a view without any keyed element yields an empty
// assignment. Values are read from every element, visible or not, so
// filtering never moves keys or bin edges.
func Recompute(snap graph.RenderSnapshot, scheme Scheme, theme Theme) (Assignment, error) {
	defer metrics.Timer(metrics.ColorRecompute)()

	if err := scheme.Validate(); err != nil {
		return Assignment{}, err
	}
	if !theme.IsValid() {
		return Assignment{}, fmt.Errorf("invalid theme %d", int(theme))
	}
	typing, err := Resolve(snap.Mode, scheme.Target, scheme.EffectiveKind())
	if err != nil {
		return Assignment{}, err
	}

	a := Assignment{
		Scheme:     scheme,
		Theme:      theme,
		Typing:     typing,
		Family:     FamilyCategorical,
		NodeColors: map[string]string{},
		LinkColors: map[model.LinkKey]string{},
	}

	elems := collect(snap, scheme)
	if typing == Advanced && allNumeric(elems) {
		a.Family = FamilyContinuous
		a.continuous(elems)
	} else {
		a.categorical(elems)
	}

	debug.Log("colors: %s/%s over %s -> %s, %d keyed elements", scheme.Target, scheme.Source, snap.Mode, a.Family, len(elems))
	return a, nil
}

func collect(snap graph.RenderSnapshot, scheme Scheme) []element {
	var out []element
	if scheme.Target == TargetNodes {
		name := strings.TrimPrefix(scheme.Source, SourceProperty)
		for _, n := range snap.Nodes {
			if v, ok := n.Property(name); ok && v != nil && v != "" {
				out = append(out, element{node: n.ID, value: v})
			}
		}
		return out
	}
	for _, l := range snap.Links {
		if v, ok := linkValue(l, scheme.Source); ok {
			out = append(out, element{link: l.Key(), value: v})
		}
	}
	return out
}

// linkValue reads a link attribute. Feature and label come from the first
// connection.
func linkValue(l graph.RenderLink, source string) (any, bool) {
	switch source {
	case SourceFeature, SourceType:
		if len(l.Connections) == 0 || l.Connections[0].Feature == "" {
			return nil, false
		}
		return l.Connections[0].Feature, true
	case SourceLabel:
		if len(l.Connections) == 0 || l.Connections[0].Label == "" {
			return nil, false
		}
		return l.Connections[0].Label, true
	case SourceComponent:
		return l.Component, true
	case SourceWeight:
		return l.Weight, true
	case SourceCount:
		return len(l.Connections), true
	}
	return nil, false
}

func (a *Assignment) set(e element, c string) {
	if e.node != "" {
		a.NodeColors[e.node] = c
		return
	}
	a.LinkColors[e.link] = c
}

func (a *Assignment) categorical(elems []element) {
	a.Index = map[string]int{}
	for _, e := range elems {
		key := keyOf(e.value)
		idx, ok := a.Index[key]
		if !ok {
			idx = len(a.Keys) % len(Categorical)
			a.Index[key] = idx
			a.Keys = append(a.Keys, key)
		}
		a.set(e, a.Theme.pick(Categorical[idx]))
	}
}

func (a *Assignment) continuous(elems []element) {
	if len(elems) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	vals := make([]float64, len(elems))
	for i, e := range elems {
		f, _ := number(e.value)
		vals[i] = f
		lo = min(lo, f)
		hi = max(hi, f)
	}
	width := (hi - lo) / RampSize
	a.Bins = make([]float64, RampSize+1)
	for i := range a.Bins {
		a.Bins[i] = lo + float64(i)*width
	}
	a.Bins[RampSize] = hi

	ramp := Ramp(a.Theme)
	for i, e := range elems {
		a.set(e, ramp[bin(vals[i], lo, width)])
	}
}

// bin returns the ramp slot of v. The maximum falls into the last bin and a
// zero-width range maps everything to the first.
func bin(v, lo, width float64) int {
	if width == 0 {
		return 0
	}
	b := int((v - lo) / width)
	return max(0, min(b, RampSize-1))
}

func allNumeric(elems []element) bool {
	for _, e := range elems {
		if _, ok := number(e.value); !ok {
			return false
		}
	}
	return true
}

// number converts any Go numeric kind to float64. Strings never convert.
func number(x any) (float64, bool) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}

// keyOf renders a categorical key. Numerically equal values share a key.
func keyOf(v any) string {
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Legend lists the categorical keys with their colour, or the bin ranges of
// a continuous assignment, in display order.
func (a Assignment) Legend() []LegendEntry {
	if a.Family == FamilyContinuous {
		if len(a.Bins) == 0 {
			return nil
		}
		ramp := Ramp(a.Theme)
		out := make([]LegendEntry, RampSize)
		for i := range out {
			out[i] = LegendEntry{
				Label: fmt.Sprintf("%g - %g", a.Bins[i], a.Bins[i+1]),
				Color: ramp[i],
			}
		}
		return out
	}
	out := make([]LegendEntry, 0, len(a.Keys))
	for _, k := range a.Keys {
		out = append(out, LegendEntry{Label: k, Color: a.Theme.pick(Categorical[a.Index[k]])})
	}
	return out
}

// LegendEntry is one row of a legend.
type LegendEntry struct {
	Label string
	Color string
}
