package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

var ErrTooShort = errors.New("analysis: not enough samples")

// Resample linearly interpolates values taken at increasing times onto n
// evenly spaced points spanning the same interval. It returns the grid
// values and their spacing.
func Resample(times, values []float64, n int) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("analysis: %d times for %d values", len(times), len(values))
	}
	if len(times) < 2 || n < 2 {
		return nil, 0, ErrTooShort
	}
	t0, t1 := times[0], times[len(times)-1]
	if !(t1 > t0) {
		return nil, 0, fmt.Errorf("analysis: empty time span [%g, %g]", t0, t1)
	}
	if !sort.Float64sAreSorted(times) {
		return nil, 0, errors.New("analysis: times must be increasing")
	}

	dt := (t1 - t0) / float64(n-1)
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := t0 + float64(i)*dt
		if i == n-1 {
			t = t1
		}
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		span := times[j+1] - times[j]
		if span <= 0 {
			out[i] = values[j+1]
			continue
		}
		w := (t - times[j]) / span
		out[i] = values[j] + w*(values[j+1]-values[j])
	}
	return out, dt, nil
}

// PowerSpectrum returns the magnitudes of the non-negative frequency
// coefficients of a real, uniformly sampled series.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	fft := fourier.NewFFT(len(data))
	coeff := fft.Coefficients(nil, data)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// DominantFrequency is the frequency in Hz of the largest non-DC bin of a
// series sampled dt apart.
func DominantFrequency(data []float64, dt float64) float64 {
	ps := PowerSpectrum(data)
	if len(ps) < 2 || dt <= 0 {
		return 0
	}
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return float64(best) / (float64(len(data)) * dt)
}
