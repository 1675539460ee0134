package colors

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Target is the element class a scheme colours.
type Target string

const (
	TargetNodes Target = "nodes"
	TargetLinks Target = "links"
)

// Kind is the grouping a scheme was selected under: raw values of an
// attribute, or the type-like categories of the dataset.
type Kind string

const (
	KindValues Kind = "values"
	KindTypes  Kind = "types"
)

// Typing is how a scheme is rendered. Basic is always categorical; Advanced
// is continuous when every observed value is numeric.
type Typing int

const (
	Basic Typing = iota
	Advanced
)

func (t Typing) String() string {
	if t == Advanced {
		return "advanced"
	}
	return "basic"
}

// Family is the colouring algorithm actually used for an assignment.
type Family int

const (
	FamilyCategorical Family = iota
	FamilyContinuous
)

func (f Family) String() string {
	if f == FamilyContinuous {
		return "continuous"
	}
	return "categorical"
}

type typingKey struct {
	mode   model.Mode
	target Target
	kind   Kind
}

// typingTable maps scheme selections to their typing. Overview links never
// ramp, while detail links ramp for both kinds.
var typingTable = map[typingKey]Typing{
	{model.ModeOverview, TargetNodes, KindValues}: Advanced,
	{model.ModeOverview, TargetNodes, KindTypes}:  Basic,
	{model.ModeOverview, TargetLinks, KindValues}: Basic,
	{model.ModeOverview, TargetLinks, KindTypes}:  Basic,
	{model.ModeDetail, TargetNodes, KindValues}:   Advanced,
	{model.ModeDetail, TargetNodes, KindTypes}:    Basic,
	{model.ModeDetail, TargetLinks, KindValues}:   Advanced,
	{model.ModeDetail, TargetLinks, KindTypes}:    Advanced,
}

// Resolve returns the typing of a scheme selection.
func Resolve(mode model.Mode, target Target, kind Kind) (Typing, error) {
	t, ok := typingTable[typingKey{mode, target, kind}]
	if !ok {
		return Basic, fmt.Errorf("no typing for mode %q, target %q, kind %q", mode, target, kind)
	}
	return t, nil
}

// Node sources.
const (
	SourceFeature   = "feature"
	SourceType      = "type"
	SourceComponent = "component"
	SourceDegree    = "degree"
	SourceLabel     = "label"
	// SourceProperty prefixes a free node property, e.g. "property:score".
	SourceProperty = "property:"
)

// Link-only sources. Links also accept feature, label and component.
const (
	SourceWeight = "weight"
	SourceCount  = "count"
)

// Scheme selects what to colour and by which attribute.
type Scheme struct {
	Name   string
	Target Target
	Source string
	// Kind defaults from Source when empty.
	Kind Kind
}

// DefaultScheme colours elements by feature.
func DefaultScheme(target Target) Scheme {
	return Scheme{Name: "feature", Target: target, Source: SourceFeature}
}

// ParseScheme reads "source" or "source/kind", e.g. "degree" or
// "property:score/types".
func ParseScheme(s string, target Target) (Scheme, error) {
	src, kind, _ := strings.Cut(strings.TrimSpace(s), "/")
	sc := Scheme{Name: s, Target: target, Source: src, Kind: Kind(kind)}
	if err := sc.Validate(); err != nil {
		return Scheme{}, err
	}
	return sc, nil
}

// EffectiveKind returns Kind, or the natural kind of Source when unset.
func (s Scheme) EffectiveKind() Kind {
	if s.Kind != "" {
		return s.Kind
	}
	switch s.Source {
	case SourceFeature, SourceType, SourceComponent, SourceLabel:
		return KindTypes
	default:
		return KindValues
	}
}

// Validate checks the scheme against its target.
func (s Scheme) Validate() error {
	switch s.Target {
	case TargetNodes:
		switch {
		case s.Source == SourceFeature, s.Source == SourceType, s.Source == SourceComponent,
			s.Source == SourceDegree, s.Source == SourceLabel:
		case strings.HasPrefix(s.Source, SourceProperty) && len(s.Source) > len(SourceProperty):
		default:
			return fmt.Errorf("unknown node colour source %q", s.Source)
		}
	case TargetLinks:
		switch s.Source {
		case SourceFeature, SourceType, SourceLabel, SourceComponent, SourceWeight, SourceCount:
		default:
			return fmt.Errorf("unknown link colour source %q", s.Source)
		}
	default:
		return fmt.Errorf("unknown colour target %q", s.Target)
	}
	switch s.Kind {
	case "", KindValues, KindTypes:
	default:
		return fmt.Errorf("unknown scheme kind %q", s.Kind)
	}
	return nil
}
