package export

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/mrsim/internal/analysis"
	"github.com/san-kum/mrsim/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trajectory() *storage.Trajectory {
	return &storage.Trajectory{
		Header: []string{"t", "a.q0", "b.q0"},
		Times:  []float64{0, 1, 2},
		Rows:   [][]float64{{0, 1, -1}, {1, 2, 0}, {2, 3, 1}},
	}
}

func TestTrajectorySVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TrajectorySVG(&buf, trajectory(), 200, 100, "a.q0", "b.q0"))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Equal(t, 2, strings.Count(out, "<path"))
	assert.Contains(t, out, ">a.q0</text>")
	assert.Contains(t, out, palette[1])
	// b.q0 crosses zero so the axis is drawn.
	assert.Contains(t, out, "<line")
}

func TestTrajectorySVGUnknownColumn(t *testing.T) {
	err := TrajectorySVG(&bytes.Buffer{}, trajectory(), 200, 100, "c.q0")
	assert.ErrorContains(t, err, "c.q0")
}

func TestWriteSVGNeedsTwoPoints(t *testing.T) {
	err := WriteSVG(&bytes.Buffer{}, []Series{{Points: []analysis.Point{{X: 0, Y: 1}}}}, 10, 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWriteSVGBreaksOnNaN(t *testing.T) {
	pts := []analysis.Point{{X: 0, Y: 0}, {X: 1, Y: math.NaN()}, {X: 2, Y: 1}, {X: 3, Y: 2}}
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, []Series{{Points: pts}}, 100, 100))
	assert.Equal(t, 2, strings.Count(buf.String(), "M"))
}

func TestPhaseSVGEscapesLabels(t *testing.T) {
	p, err := analysis.NewPhasePortrait("x<0>", []float64{0, 1}, "v&", []float64{1, 0})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, PhaseSVG(&buf, p, 50, 50))
	assert.Contains(t, buf.String(), "v&amp; vs x&lt;0&gt;")
}
