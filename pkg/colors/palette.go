// Package colors derives node and link colours from a colour scheme.
//
// Assignments are recomputed from scratch for every call to Recompute, never
// patched, so the same snapshot and scheme always produce the same mapping.
// Themes only choose which member of each palette entry is emitted.
package colors

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Theme is the light or dark colour mode of the renderer.
type Theme int

const (
	ThemeLight Theme = iota
	ThemeDark
)

func (t Theme) String() string {
	switch t {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return fmt.Sprintf("Theme(%d)", int(t))
	}
}

// IsValid reports whether t is a known theme.
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

// ParseTheme converts user input into a Theme.
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "":
		return ThemeLight, nil
	case "dark":
		return ThemeDark, nil
	default:
		return ThemeLight, fmt.Errorf("unknown theme %q (want light or dark)", s)
	}
}

// pick returns the member of c matching t.
func (t Theme) pick(c lipgloss.AdaptiveColor) string {
	if t == ThemeDark {
		return c.Dark
	}
	return c.Light
}

// Categorical is the fixed palette for keyed schemes. Keys past the end
// wrap around.
var Categorical = []lipgloss.AdaptiveColor{
	{Light: "#1f77b4", Dark: "#6baed6"}, // blue
	{Light: "#d62728", Dark: "#ff6b6b"}, // red
	{Light: "#2e7d32", Dark: "#81c784"}, // green
	{Light: "#ef6c00", Dark: "#ffb74d"}, // orange
	{Light: "#6a1b9a", Dark: "#ce93d8"}, // purple
	{Light: "#00838f", Dark: "#4dd0e1"}, // teal
	{Light: "#ad1457", Dark: "#f48fb1"}, // pink
	{Light: "#5d4037", Dark: "#bcaaa4"}, // brown
	{Light: "#827717", Dark: "#dce775"}, // olive
	{Light: "#283593", Dark: "#9fa8da"}, // indigo
	{Light: "#546e7a", Dark: "#b0bec5"}, // slate
	{Light: "#f9a825", Dark: "#fff176"}, // yellow
}

// RampSize is the number of bins of a continuous scheme.
const RampSize = 9

// Sequential ramp end points. Light runs pale to dark, dark runs the other
// way so high values stand out on both backgrounds.
var rampLow = lipgloss.AdaptiveColor{Light: "#deebf7", Dark: "#08306b"}
var rampHigh = lipgloss.AdaptiveColor{Light: "#08306b", Dark: "#c6dbef"}

// Ramp returns the RampSize colours of the sequential ramp for t,
// interpolated in Lab space.
func Ramp(t Theme) []string {
	lo := mustParseHex(t.pick(rampLow))
	hi := mustParseHex(t.pick(rampHigh))
	out := make([]string, RampSize)
	for i := range out {
		out[i] = lo.BlendLab(hi, float64(i)/float64(RampSize-1)).Clamped().Hex()
	}
	return out
}

// mustParseHex parses a hex colour and panics if it is malformed.
func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
