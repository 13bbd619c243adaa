package analysis

import (
	"fmt"
	"strings"
)

type Point struct {
	X, Y float64
}

// PhasePortrait pairs two recorded columns, e.g. a coordinate and its
// velocity.
type PhasePortrait struct {
	XLabel, YLabel string
	Points         []Point
}

func NewPhasePortrait(xLabel string, xs []float64, yLabel string, ys []float64) (*PhasePortrait, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("analysis: %d x values for %d y values", len(xs), len(ys))
	}
	p := &PhasePortrait{XLabel: xLabel, YLabel: yLabel, Points: make([]Point, len(xs))}
	for i := range xs {
		p.Points[i] = Point{xs[i], ys[i]}
	}
	return p, nil
}

// ASCII plots the points on a width x height grid with 10% padding and
// draws the axes when they are in view.
func (p *PhasePortrait) ASCII(width, height int) string {
	return plotPoints(p.Points, width, height)
}

// PoincareSection samples (recordX, recordY) where cross rises through
// threshold, interpolating between the bracketing samples.
func PoincareSection(cross []float64, threshold float64, recordX, recordY []float64) []Point {
	var pts []Point
	for i := 1; i < len(cross) && i < len(recordX) && i < len(recordY); i++ {
		prev, curr := cross[i-1], cross[i]
		if !(prev < threshold && curr >= threshold) {
			continue
		}
		frac := (threshold - prev) / (curr - prev)
		pts = append(pts, Point{
			X: recordX[i-1] + frac*(recordX[i]-recordX[i-1]),
			Y: recordY[i-1] + frac*(recordY[i]-recordY[i-1]),
		})
	}
	return pts
}

func PoincareASCII(pts []Point, width, height int) string {
	if len(pts) == 0 {
		return "no crossings detected"
	}
	return plotPoints(pts, width, height)
}

func plotPoints(pts []Point, width, height int) string {
	if len(pts) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range pts {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
