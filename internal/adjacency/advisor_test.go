package adjacency

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

func grid3x5() *seatmap.Grid {
	var seats []model.Seat
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 5; c++ {
			seats = append(seats, model.Seat{Row: r, Column: c})
		}
	}
	return seatmap.NewGrid(1, seats)
}

func allTrue() Alignment {
	return Alignment{Adjacent: true, SameRow: true, HasAvailableAdjacent: true}
}

func TestTrivialSelections(t *testing.T) {
	g := grid3x5()
	assert.Equal(t, allTrue(), CheckAlignment(nil, g, nil))
	assert.Equal(t, allTrue(), CheckAlignment([]string{"B3"}, g, []string{"B2", "B4"}))
	assert.Empty(t, allTrue().Warnings())
}

func TestNeighboursInSameRow(t *testing.T) {
	got := CheckAlignment([]string{"A1", "A2"}, grid3x5(), nil)
	assert.True(t, got.Adjacent)
	assert.True(t, got.SameRow)
	assert.True(t, got.HasAvailableAdjacent)
}

func TestGapWithFreeNeighbours(t *testing.T) {
	got := CheckAlignment([]string{"A1", "A3"}, grid3x5(), nil)
	assert.False(t, got.Adjacent)
	assert.True(t, got.SameRow)
	assert.True(t, got.HasAvailableAdjacent)
	assert.Len(t, got.Warnings(), 1)
}

func TestGapWithNeighboursTaken(t *testing.T) {
	// A1 sits at the edge with A2 booked; A3 is flanked by A2 and A4, both booked.
	got := CheckAlignment([]string{"A1", "A3"}, grid3x5(), []string{"A2", "A4"})
	assert.False(t, got.Adjacent)
	assert.False(t, got.HasAvailableAdjacent)
}

func TestDifferentRows(t *testing.T) {
	got := CheckAlignment([]string{"A1", "B1"}, grid3x5(), nil)
	assert.False(t, got.SameRow)
	assert.False(t, got.Adjacent)
	assert.Len(t, got.Warnings(), 2)
}

func TestEdgeOfGridIsNotAvailable(t *testing.T) {
	// A5 has no right neighbour and A4 is booked; A1 has no left neighbour and A2 is booked.
	got := CheckAlignment([]string{"A1", "A5"}, grid3x5(), []string{"A2", "A4"})
	assert.False(t, got.HasAvailableAdjacent)
}
