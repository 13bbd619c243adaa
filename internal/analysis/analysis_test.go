package analysis

import (
	"math"
	"strings"
	"testing"
)

func TestResample(t *testing.T) {
	times := []float64{0, 0.1, 0.4, 1}
	values := []float64{0, 1, 4, 10}
	grid, dt, err := Resample(times, values, 11)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dt-0.1) > 1e-15 {
		t.Errorf("dt = %v, want 0.1", dt)
	}
	for i, v := range grid {
		if math.Abs(v-float64(i)) > 1e-9 {
			t.Errorf("grid[%d] = %v, want %d", i, v, i)
		}
	}
}

func TestResampleErrors(t *testing.T) {
	if _, _, err := Resample([]float64{0}, []float64{1}, 4); err == nil {
		t.Error("expected error for a single sample")
	}
	if _, _, err := Resample([]float64{0, 1}, []float64{1}, 4); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, _, err := Resample([]float64{0, 2, 1}, []float64{1, 2, 3}, 4); err == nil {
		t.Error("expected error for unsorted times")
	}
}

func TestDominantFrequency(t *testing.T) {
	// Irregular samples of a 2 Hz sine.
	var times, values []float64
	for tm := 0.0; tm <= 4; tm += 0.003 + 0.002*math.Abs(math.Sin(tm*7)) {
		times = append(times, tm)
		values = append(values, math.Sin(2*math.Pi*2*tm))
	}
	grid, dt, err := Resample(times, values, 1024)
	if err != nil {
		t.Fatal(err)
	}
	f := DominantFrequency(grid, dt)
	if math.Abs(f-2) > 0.3 {
		t.Errorf("dominant frequency = %v, want about 2", f)
	}
}

func TestPowerSpectrumLength(t *testing.T) {
	if got := len(PowerSpectrum(make([]float64, 16))); got != 9 {
		t.Errorf("spectrum length = %d, want 9", got)
	}
	if PowerSpectrum(nil) != nil {
		t.Error("expected nil spectrum for no data")
	}
}

func TestPhasePortraitASCII(t *testing.T) {
	var xs, ys []float64
	for i := 0; i < 200; i++ {
		a := 2 * math.Pi * float64(i) / 200
		xs = append(xs, math.Cos(a))
		ys = append(ys, math.Sin(a))
	}
	p, err := NewPhasePortrait("q", xs, "v", ys)
	if err != nil {
		t.Fatal(err)
	}
	out := p.ASCII(40, 20)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(lines))
	}
	if !strings.Contains(out, "•") || !strings.Contains(out, "│") || !strings.Contains(out, "─") {
		t.Errorf("portrait missing points or axes:\n%s", out)
	}

	if _, err := NewPhasePortrait("q", xs, "v", ys[:3]); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestPoincareSection(t *testing.T) {
	cross := []float64{-1, 1, -1, 1}
	x := []float64{0, 2, 0, 4}
	y := []float64{0, 0, 0, 0}
	pts := PoincareSection(cross, 0, x, y)
	if len(pts) != 2 {
		t.Fatalf("expected 2 crossings, got %d", len(pts))
	}
	if pts[0].X != 1 || pts[1].X != 2 {
		t.Errorf("interpolated points = %+v", pts)
	}
	if PoincareASCII(nil, 10, 5) != "no crossings detected" {
		t.Error("unexpected empty section text")
	}
}
