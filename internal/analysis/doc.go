// Package analysis post-processes recorded trajectories.
//
// Adaptive runs are sampled at irregular times, so spectral tools first
// resample a column onto a uniform grid:
//
//	grid, dt, err := analysis.Resample(tr.Times, tr.Column("p1.q0"), 1024)
//	freq := analysis.DominantFrequency(grid, dt)
//
// Phase portraits and Poincare sections work on any pair of columns and
// render to ASCII for the terminal.
package analysis
