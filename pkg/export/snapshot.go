// Package export renders static pictures of a graph view.
package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/graph"
)

// SnapshotOptions controls snapshot export.
type SnapshotOptions struct {
	Path          string // output path; format inferred from extension when Format is empty
	Format        string // "svg" or "png" (case-insensitive)
	Title         string
	Theme         colors.Theme
	Legend        []colors.LegendEntry
	IncludeHidden bool // draw hidden nodes and links faded instead of skipping them
}

// SaveSnapshot renders rs as an SVG or PNG file.
func SaveSnapshot(rs graph.RenderSnapshot, opts SnapshotOptions) error {
	format, err := resolveFormat(&opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	sl := buildLayout(rs, opts)
	if len(sl.Nodes) == 0 {
		return fmt.Errorf("no visible nodes to export")
	}

	switch format {
	case "svg":
		f, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		if err := renderSVG(f, sl); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "png":
		return renderPNG(opts.Path, sl)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// WriteSVG renders rs as SVG to w.
func WriteSVG(w io.Writer, rs graph.RenderSnapshot, opts SnapshotOptions) error {
	sl := buildLayout(rs, opts)
	if len(sl.Nodes) == 0 {
		return fmt.Errorf("no visible nodes to export")
	}
	return renderSVG(w, sl)
}

func resolveFormat(opts *SnapshotOptions) (string, error) {
	if opts.Path == "" {
		return "", fmt.Errorf("output path is required")
	}
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		case "":
			format = "svg"
			opts.Path += ".svg"
		default:
			format = "svg"
		}
	}
	if format != "svg" && format != "png" {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, nil
}

// --- layout ------------------------------------------------------------------

const (
	nodeRadius   = 9.0
	nodeSpacing  = 34.0
	cellGap      = 60.0
	padding      = 36.0
	headerHeight = 110.0
	legendWidth  = 200.0
	labelMax     = 18
)

type placedNode struct {
	ID       string
	Label    string
	X, Y     float64
	Fill     color.Color
	Selected bool
	Faded    bool
}

type placedLink struct {
	From, To string
	Stroke   color.Color
	Width    float64
	Faded    bool
}

type snapshotLayout struct {
	Nodes   []placedNode
	Links   []placedLink
	Width   int
	Height  int
	Title   string
	Lines   []string
	Legend  []colors.LegendEntry
	Palette palette
}

type palette struct {
	Backdrop, Header, Text, Subtle, Stroke, Link, Selected color.Color
}

func themePalette(t colors.Theme) palette {
	if t == colors.ThemeDark {
		return palette{
			Backdrop: color.RGBA{0x1b, 0x1d, 0x23, 0xff},
			Header:   color.RGBA{0x26, 0x29, 0x31, 0xff},
			Text:     color.RGBA{0xe6, 0xe6, 0xe6, 0xff},
			Subtle:   color.RGBA{0x9a, 0x9f, 0xa8, 0xff},
			Stroke:   color.RGBA{0x0f, 0x10, 0x14, 0xff},
			Link:     color.RGBA{0x5c, 0x63, 0x70, 0xff},
			Selected: color.RGBA{0xff, 0xd1, 0x66, 0xff},
		}
	}
	return palette{
		Backdrop: color.RGBA{0xf9, 0xfa, 0xfb, 0xff},
		Header:   color.RGBA{0xf3, 0xf4, 0xf6, 0xff},
		Text:     color.RGBA{0x11, 0x11, 0x11, 0xff},
		Subtle:   color.RGBA{0x66, 0x66, 0x66, 0xff},
		Stroke:   color.RGBA{0x22, 0x22, 0x22, 0xff},
		Link:     color.RGBA{0xb0, 0xb7, 0xc3, 0xff},
		Selected: color.RGBA{0xe0, 0x8e, 0x0b, 0xff},
	}
}

// buildLayout places nodes. Positions carried by the snapshot are used when
// any node has one; otherwise each component gets a ring in a grid of cells,
// largest component first.
func buildLayout(rs graph.RenderSnapshot, opts SnapshotOptions) snapshotLayout {
	pal := themePalette(opts.Theme)
	sl := snapshotLayout{Palette: pal, Legend: opts.Legend}

	var nodes []graph.RenderNode
	for _, n := range rs.Nodes {
		if n.Visible || opts.IncludeHidden {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return sl
	}

	pos := simulatedPositions(nodes)
	if pos == nil {
		pos = ringPositions(nodes)
	}

	maxX, maxY := 0.0, 0.0
	kept := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		p := pos[n.ID]
		x := padding + p[0]
		y := padding + headerHeight + p[1]
		sl.Nodes = append(sl.Nodes, placedNode{
			ID:       n.ID,
			Label:    truncate(labelOf(n), labelMax),
			X:        x,
			Y:        y,
			Fill:     parseColor(n.Color, pal.Subtle),
			Selected: n.Selected,
			Faded:    !n.Visible,
		})
		kept[n.ID] = true
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}

	links := 0
	for _, l := range rs.Links {
		if !kept[l.Source] || !kept[l.Target] {
			continue
		}
		if !l.Visible && !opts.IncludeHidden {
			continue
		}
		w := 1.0
		if n := len(l.Connections); n > 1 {
			w = math.Min(1+math.Log2(float64(n)), 5)
		}
		sl.Links = append(sl.Links, placedLink{
			From:   l.Source,
			To:     l.Target,
			Stroke: parseColor(l.Color, pal.Link),
			Width:  w,
			Faded:  !l.Visible,
		})
		links++
	}

	sl.Width = int(maxX + padding + labelMax*7 + legendWidth)
	if sl.Width < 640 {
		sl.Width = 640
	}
	sl.Height = int(maxY + padding*2)
	if sl.Height < 480 {
		sl.Height = 480
	}

	sl.Title = opts.Title
	if strings.TrimSpace(sl.Title) == "" {
		sl.Title = "Graph Snapshot"
	}
	sl.Lines = []string{
		fmt.Sprintf("mode: %s  view: %s", rs.Mode, rs.ViewID),
		fmt.Sprintf("nodes: %d  links: %d  components: %d", len(sl.Nodes), links, countComponents(nodes)),
	}
	if rs.Meta.Query != "" {
		sl.Lines = append(sl.Lines, "query: "+truncate(rs.Meta.Query, 60))
	}
	return sl
}

func simulatedPositions(nodes []graph.RenderNode) map[string][2]float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	moved := false
	for _, n := range nodes {
		if n.X != 0 || n.Y != 0 {
			moved = true
		}
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
	}
	if !moved {
		return nil
	}
	out := make(map[string][2]float64, len(nodes))
	for _, n := range nodes {
		out[n.ID] = [2]float64{n.X - minX, n.Y - minY}
	}
	return out
}

func ringPositions(nodes []graph.RenderNode) map[string][2]float64 {
	byComp := make(map[int][]graph.RenderNode)
	for _, n := range nodes {
		byComp[n.Component] = append(byComp[n.Component], n)
	}
	comps := make([]int, 0, len(byComp))
	for c := range byComp {
		comps = append(comps, c)
	}
	sort.Slice(comps, func(i, j int) bool {
		a, b := byComp[comps[i]], byComp[comps[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return comps[i] < comps[j]
	})

	radius := func(count int) float64 {
		if count <= 1 {
			return 0
		}
		return math.Max(nodeSpacing, float64(count)*nodeSpacing/(2*math.Pi))
	}
	// cells share the size of the largest ring
	cell := 2*radius(len(byComp[comps[0]])) + cellGap
	cols := int(math.Ceil(math.Sqrt(float64(len(comps)))))

	out := make(map[string][2]float64, len(nodes))
	for i, c := range comps {
		members := byComp[c]
		sort.Slice(members, func(a, b int) bool {
			if members[a].Degree != members[b].Degree {
				return members[a].Degree > members[b].Degree
			}
			return members[a].ID < members[b].ID
		})
		cx := float64(i%cols)*cell + cell/2
		cy := float64(i/cols)*cell + cell/2
		r := radius(len(members))
		for k, n := range members {
			angle := 2 * math.Pi * float64(k) / float64(len(members))
			out[n.ID] = [2]float64{cx + r*math.Cos(angle), cy + r*math.Sin(angle)}
		}
	}
	return out
}

func countComponents(nodes []graph.RenderNode) int {
	seen := make(map[int]struct{})
	for _, n := range nodes {
		seen[n.Component] = struct{}{}
	}
	return len(seen)
}

func labelOf(n graph.RenderNode) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// --- rendering ---------------------------------------------------------------

func renderPNG(path string, sl snapshotLayout) error {
	pal := sl.Palette
	dc := gg.NewContext(sl.Width, sl.Height)
	dc.SetColor(pal.Backdrop)
	dc.Clear()

	dc.SetColor(pal.Header)
	dc.DrawRoundedRectangle(16, 16, float64(sl.Width)-32, headerHeight-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(pal.Text)
	dc.DrawStringAnchored(sl.Title, 32, 40, 0, 0.5)
	dc.SetColor(pal.Subtle)
	for i, line := range sl.Lines {
		dc.DrawStringAnchored(line, 32, 60+float64(i)*18, 0, 0.5)
	}
	drawLegend(dc, sl)

	pos := positions(sl)
	for _, l := range sl.Links {
		from, to := pos[l.From], pos[l.To]
		dc.SetColor(fade(l.Stroke, l.Faded))
		dc.SetLineWidth(l.Width)
		dc.DrawLine(from.X, from.Y, to.X, to.Y)
		dc.Stroke()
	}

	for _, n := range sl.Nodes {
		dc.SetColor(fade(n.Fill, n.Faded))
		dc.DrawCircle(n.X, n.Y, nodeRadius)
		dc.Fill()
		if n.Selected {
			dc.SetColor(pal.Selected)
			dc.SetLineWidth(3)
		} else {
			dc.SetColor(pal.Stroke)
			dc.SetLineWidth(1)
		}
		dc.DrawCircle(n.X, n.Y, nodeRadius)
		dc.Stroke()
		dc.SetColor(pal.Subtle)
		dc.DrawStringAnchored(n.Label, n.X+nodeRadius+4, n.Y, 0, 0.5)
	}

	return dc.SavePNG(path)
}

func drawLegend(dc *gg.Context, sl snapshotLayout) {
	if len(sl.Legend) == 0 {
		return
	}
	pal := sl.Palette
	x := float64(sl.Width) - legendWidth - 20
	y := headerHeight + 8
	h := 28 + float64(len(sl.Legend))*16
	dc.SetColor(pal.Header)
	dc.DrawRoundedRectangle(x, y, legendWidth, h, 10)
	dc.Fill()

	dc.SetColor(pal.Text)
	dc.DrawStringAnchored("Legend", x+12, y+16, 0, 0.5)
	for i, e := range sl.Legend {
		ry := y + 34 + float64(i)*16
		dc.SetColor(parseColor(e.Color, pal.Subtle))
		dc.DrawRoundedRectangle(x+12, ry-7, 12, 12, 3)
		dc.Fill()
		dc.SetColor(pal.Subtle)
		dc.DrawStringAnchored(truncate(e.Label, 22), x+30, ry, 0, 0.5)
	}
}

func renderSVG(w io.Writer, sl snapshotLayout) error {
	pal := sl.Palette
	canvas := svg.New(w)
	canvas.Start(sl.Width, sl.Height)
	canvas.Rect(0, 0, sl.Width, sl.Height, "fill:"+css(pal.Backdrop))
	canvas.Roundrect(16, 16, sl.Width-32, int(headerHeight-24), 10, 10, "fill:"+css(pal.Header))

	canvas.Text(32, 44, sl.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(pal.Text)))
	for i, line := range sl.Lines {
		canvas.Text(32, 64+i*18, line, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(pal.Subtle)))
	}

	if len(sl.Legend) > 0 {
		x := sl.Width - int(legendWidth) - 20
		y := int(headerHeight) + 8
		h := 28 + len(sl.Legend)*16
		canvas.Roundrect(x, y, int(legendWidth), h, 10, 10, "fill:"+css(pal.Header))
		canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(pal.Text)))
		for i, e := range sl.Legend {
			ry := y + 34 + i*16
			canvas.Roundrect(x+12, ry-8, 12, 12, 3, 3, "fill:"+css(parseColor(e.Color, pal.Subtle)))
			canvas.Text(x+30, ry+2, truncate(e.Label, 22), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(pal.Subtle)))
		}
	}

	pos := positions(sl)
	canvas.Group(`class="links"`)
	for _, l := range sl.Links {
		from, to := pos[l.From], pos[l.To]
		canvas.Line(int(from.X), int(from.Y), int(to.X), int(to.Y),
			fmt.Sprintf("stroke:%s;stroke-width:%.1f;stroke-opacity:%s", css(l.Stroke), l.Width, opacity(l.Faded)))
	}
	canvas.Gend()

	canvas.Group(`class="nodes"`)
	for _, n := range sl.Nodes {
		stroke, width := css(pal.Stroke), 1
		if n.Selected {
			stroke, width = css(pal.Selected), 3
		}
		canvas.Circle(int(n.X), int(n.Y), int(nodeRadius),
			fmt.Sprintf("fill:%s;fill-opacity:%s;stroke:%s;stroke-width:%d", css(n.Fill), opacity(n.Faded), stroke, width))
		canvas.Text(int(n.X+nodeRadius+4), int(n.Y+4), n.Label,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(pal.Subtle)))
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func positions(sl snapshotLayout) map[string]placedNode {
	out := make(map[string]placedNode, len(sl.Nodes))
	for _, n := range sl.Nodes {
		out[n.ID] = n
	}
	return out
}

// --- helpers -----------------------------------------------------------------

func parseColor(hex string, fallback color.Color) color.Color {
	if hex == "" {
		return fallback
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	return c
}

func fade(c color.Color, faded bool) color.Color {
	if !faded {
		return c
	}
	r, g, b, _ := c.RGBA()
	return color.NRGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0x50}
}

func opacity(faded bool) string {
	if faded {
		return "0.3"
	}
	return "1"
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
