package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/vanderheijden86/graphlens/internal/datasource"
	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
)

const (
	defaultWidth = 80
	topNodes     = 10
)

// printer writes summaries. Styling is applied only when the output is a
// terminal.
type printer struct {
	w     io.Writer
	width int
	tty   bool

	title  lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
}

func newPrinter(w io.Writer, width int) *printer {
	p := &printer{w: w, width: width}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if width <= 0 {
			if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
				p.width = tw
			}
		}
	}
	if p.width <= 0 {
		p.width = defaultWidth
	}

	p.title = lipgloss.NewStyle()
	p.header = lipgloss.NewStyle()
	p.dim = lipgloss.NewStyle()
	if p.tty {
		p.title = p.title.Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#08306b", Dark: "#c6dbef"})
		p.header = p.header.Bold(true).Underline(true)
		p.dim = p.dim.Faint(true)
	}
	return p
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// swatch renders a colour sample, or the hex code on plain output.
func (p *printer) swatch(hex string) string {
	if hex == "" {
		return "       "
	}
	if !p.tty {
		return fmt.Sprintf("%-7s", hex)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("■")
}

func (p *printer) fit(s string, width int) string {
	if width < 1 {
		width = 1
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func (p *printer) json(snap graph.RenderSnapshot) error {
	data, err := snap.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.w, "%s\n", data)
	return err
}

func (p *printer) summary(src datasource.DataSource, snap graph.RenderSnapshot, pal engine.Palette) {
	visibleNodes, visibleLinks := 0, 0
	for _, n := range snap.Nodes {
		if n.Visible {
			visibleNodes++
		}
	}
	for _, l := range snap.Links {
		if l.Visible {
			visibleLinks++
		}
	}

	p.line("%s", p.title.Render(fmt.Sprintf("glens · %s · %s", snap.Mode, src.Path)))
	p.line("nodes %d (%d visible)  links %d (%d visible)  components %d  max degree %d",
		len(snap.Nodes), visibleNodes, len(snap.Links), visibleLinks, len(snap.Components), snap.Meta.MaxDegree)
	if snap.Meta.Query != "" {
		p.line("%s", p.dim.Render("query: "+snap.Meta.Query))
	}

	p.legend("Nodes by "+pal.Nodes.Scheme.Source, pal.Nodes)
	p.legend("Links by "+pal.Links.Scheme.Source, pal.Links)

	nodes := append([]graph.RenderNode(nil), snap.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Degree > nodes[j].Degree })
	if len(nodes) > 0 {
		p.line("")
		p.line("%s", p.header.Render("Top nodes"))
		labelWidth := p.width - 40
		for i, n := range nodes {
			if i == topNodes {
				p.line("  %s", p.dim.Render(fmt.Sprintf("… %d more", len(nodes)-topNodes)))
				break
			}
			mark := " "
			switch {
			case n.Selected:
				mark = "*"
			case !n.Visible:
				mark = "-"
			}
			label := n.Label
			if label == "" {
				label = n.ID
			}
			p.line("%s %s %s degree %-4d component %d", mark, p.swatch(n.Color), p.fit(label, labelWidth), n.Degree, n.Component)
		}
	}

	if len(snap.SelectedNodes) > 0 {
		p.line("")
		p.line("selected: %s", strings.Join(snap.SelectedNodes, ", "))
	}
}

func (p *printer) legend(title string, a colors.Assignment) {
	entries := a.Legend()
	if len(entries) == 0 {
		return
	}
	p.line("")
	p.line("%s %s", p.header.Render(title), p.dim.Render("("+a.Family.String()+")"))
	for _, e := range entries {
		p.line("  %s %s", p.swatch(e.Color), p.fit(e.Label, p.width-12))
	}
}

func (p *printer) changes(d datasource.DatasetDiff) {
	p.line("%s", p.header.Render("Reloaded"))
	p.line("%s", strings.TrimRight(d.Summary(), "\n"))
}

func (p *printer) timings(stats []metrics.TimingStats) {
	if len(stats) == 0 {
		return
	}
	p.line("")
	p.line("%s", p.header.Render("Timings"))
	p.line("  %-18s %6s %10s %10s %10s", "operation", "count", "total ms", "avg ms", "max ms")
	for _, s := range stats {
		p.line("  %-18s %6d %10.3f %10.3f %10.3f", s.Name, s.Count, s.TotalMs, s.AvgMs, s.MaxMs)
	}
}
