package tui

import (
	"math"
	"strings"
)

// canvas is a fixed-size character grid.
type canvas struct {
	width, height int
	cells         [][]rune
}

func newCanvas(width, height int) *canvas {
	cells := make([][]rune, height)
	for i := range cells {
		cells[i] = make([]rune, width)
	}
	c := &canvas{width: width, height: height, cells: cells}
	c.clear()
	return c
}

func (c *canvas) clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.width && y >= 0 && y < c.height {
		c.cells[y][x] = r
	}
}

func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// bars draws one vertical bar per value around a zero axis, scaled to the
// largest magnitude (at least 1).
func (c *canvas) bars(values []float64) {
	c.clear()
	cy := c.height / 2
	c.line(1, cy, c.width-2, cy, '-')
	if len(values) == 0 {
		return
	}

	bw := (c.width - 4) / len(values)
	if bw < 1 {
		bw = 1
	}
	maxVal := 1.0
	for _, v := range values {
		if math.Abs(v) > maxVal {
			maxVal = math.Abs(v)
		}
	}

	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		bx := 2 + i*bw + bw/2
		bh := int(math.Round((v / maxVal) * float64(cy-1)))
		switch {
		case bh > 0:
			c.line(bx, cy-1, bx, cy-bh, '#')
		case bh < 0:
			c.line(bx, cy+1, bx, cy-bh, '#')
		}
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for i, row := range c.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
