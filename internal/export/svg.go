// Package export renders stored runs as SVG plots.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/mrsim/internal/analysis"
	"github.com/san-kum/mrsim/internal/storage"
)

var ErrNoData = errors.New("export: nothing to plot")

var palette = []string{"#00d7af", "#ffd700", "#ff87ff", "#5fafff", "#ff5f5f", "#87ff5f"}

// Series is one polyline of a plot.
type Series struct {
	Label  string
	Points []analysis.Point
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) pad() {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	b.minX -= rx * 0.05
	b.maxX += rx * 0.05
	b.minY -= ry * 0.1
	b.maxY += ry * 0.1
}

func seriesBounds(series []Series) (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	n := 0
	for _, s := range series {
		for _, p := range s.Points {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				continue
			}
			b.minX = math.Min(b.minX, p.X)
			b.maxX = math.Max(b.maxX, p.X)
			b.minY = math.Min(b.minY, p.Y)
			b.maxY = math.Max(b.maxY, p.Y)
			n++
		}
	}
	return b, n >= 2
}

// WriteSVG draws every series on shared axes, one colour each, with a
// legend in the top left corner.
func WriteSVG(w io.Writer, series []Series, width, height int) error {
	b, ok := seriesBounds(series)
	if !ok {
		return ErrNoData
	}
	b.pad()
	rx, ry := b.maxX-b.minX, b.maxY-b.minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	if b.minY < 0 && b.maxY > 0 {
		y0 := float64(height) - (0-b.minY)/ry*float64(height)
		fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#444" stroke-width="1"/>
`, y0, width, y0)
	}

	for i, s := range series {
		color := palette[i%len(palette)]
		sb.WriteString(`<path fill="none" stroke="` + color + `" stroke-width="1.5" d="`)
		move := true
		for _, p := range s.Points {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				move = true
				continue
			}
			x := (p.X - b.minX) / rx * float64(width)
			y := float64(height) - (p.Y-b.minY)/ry*float64(height)
			if move {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
				move = false
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
		if s.Label != "" {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, color, escape(s.Label))
		}
	}
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// TrajectorySeries plots the named columns of a stored run against time.
func TrajectorySeries(tr *storage.Trajectory, columns ...string) ([]Series, error) {
	series := make([]Series, 0, len(columns))
	for _, name := range columns {
		col := tr.Column(name)
		if col == nil {
			return nil, fmt.Errorf("export: no column %q", name)
		}
		pts := make([]analysis.Point, len(col))
		for i, v := range col {
			pts[i] = analysis.Point{X: tr.Times[i], Y: v}
		}
		series = append(series, Series{Label: name, Points: pts})
	}
	return series, nil
}

// TrajectorySVG writes the named columns of a stored run as a time plot.
func TrajectorySVG(w io.Writer, tr *storage.Trajectory, width, height int, columns ...string) error {
	series, err := TrajectorySeries(tr, columns...)
	if err != nil {
		return err
	}
	return WriteSVG(w, series, width, height)
}

// PhaseSVG writes a phase portrait as a single curve.
func PhaseSVG(w io.Writer, p *analysis.PhasePortrait, width, height int) error {
	return WriteSVG(w, []Series{{Label: p.YLabel + " vs " + p.XLabel, Points: p.Points}}, width, height)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return escaper.Replace(s) }
