package seatmap

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Cell is one selectable seat in a grid.
type Cell struct {
	SeatID     uint64 `json:"seat_id"`
	ID         string `json:"id"`
	Row        int    `json:"row"`
	Column     int    `json:"column"`
	Accessible bool   `json:"accessible"`
}

// Grid is the enumerable seat layout of a screen.  Cells are ordered by
// (row, column) and then reversed so the row nearest the screen comes last.
type Grid struct {
	ScreenID uint64 `json:"screen_id"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Cells    []Cell `json:"cells"`

	index map[string]int
}

// NewGrid builds a grid from configured seats.  Seats with invalid
// positions are skipped.  An empty seat list yields an empty grid.
func NewGrid(screenID uint64, seats []model.Seat) *Grid {
	g := &Grid{ScreenID: screenID, Cells: make([]Cell, 0, len(seats))}
	for _, s := range seats {
		id, err := Identifier(s.Row, s.Column)
		if err != nil {
			continue
		}
		if s.Row > g.Rows {
			g.Rows = s.Row
		}
		if s.Column > g.Columns {
			g.Columns = s.Column
		}
		g.Cells = append(g.Cells, Cell{SeatID: s.ID, ID: id, Row: s.Row, Column: s.Column, Accessible: s.Accessible})
	}
	sort.SliceStable(g.Cells, func(i, j int) bool {
		if g.Cells[i].Row != g.Cells[j].Row {
			return g.Cells[i].Row < g.Cells[j].Row
		}
		return g.Cells[i].Column < g.Cells[j].Column
	})
	for l, r := 0, len(g.Cells)-1; l < r; l, r = l+1, r-1 {
		g.Cells[l], g.Cells[r] = g.Cells[r], g.Cells[l]
	}
	g.reindex()
	return g
}

func (g *Grid) reindex() {
	g.index = make(map[string]int, len(g.Cells))
	for i, c := range g.Cells {
		g.index[c.ID] = i
	}
}

// Empty reports whether the screen has no configured seats.
func (g *Grid) Empty() bool { return g == nil || len(g.Cells) == 0 }

// Bounds returns the highest configured row and column.
func (g *Grid) Bounds() (rows, columns int) {
	if g == nil {
		return 0, 0
	}
	return g.Rows, g.Columns
}

// Lookup returns the cell for a seat label.  The label is normalized first.
func (g *Grid) Lookup(id string) (Cell, bool) {
	if g == nil {
		return Cell{}, false
	}
	norm, err := Normalize(id)
	if err != nil {
		return Cell{}, false
	}
	if g.index == nil {
		g.reindex()
	}
	i, ok := g.index[norm]
	if !ok {
		return Cell{}, false
	}
	return g.Cells[i], true
}

// Contains reports whether the label names a configured seat.
func (g *Grid) Contains(id string) bool {
	_, ok := g.Lookup(id)
	return ok
}

// At returns the cell at (row, column), if configured.
func (g *Grid) At(row, column int) (Cell, bool) {
	id, err := Identifier(row, column)
	if err != nil {
		return Cell{}, false
	}
	return g.Lookup(id)
}

// Catalog is the read side of the screen configuration.
type Catalog interface {
	ScreenConfiguration(ctx context.Context, screenID uint64) (model.Screen, []model.Seat, error)
}

// Builder produces grids from the catalog.
type Builder struct {
	catalog Catalog
}

// NewBuilder returns a Builder reading from catalog.
func NewBuilder(catalog Catalog) *Builder {
	return &Builder{catalog: catalog}
}

// BuildGrid fetches the configured seats of a screen and returns its grid.
func (b *Builder) BuildGrid(ctx context.Context, screenID uint64) (*Grid, error) {
	_, seats, err := b.catalog.ScreenConfiguration(ctx, screenID)
	if err != nil {
		return nil, fmt.Errorf("load screen %d configuration: %w", screenID, err)
	}
	return NewGrid(screenID, seats), nil
}
