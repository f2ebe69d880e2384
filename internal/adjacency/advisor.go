// Package adjacency produces the advisory hint shown when a shopper's seats
// do not form a contiguous block.  It never blocks a checkout.
package adjacency

import (
	"github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

// Alignment is the result of CheckAlignment.
type Alignment struct {
	Adjacent             bool `json:"adjacent"`
	SameRow              bool `json:"same_row"`
	HasAvailableAdjacent bool `json:"has_available_adjacent"`
}

type position struct{ row, col int }

// CheckAlignment inspects the selected seats against the grid and the seats
// already taken.  Fewer than two seats is trivially aligned.  Labels that
// do not parse are ignored.
func CheckAlignment(selected []string, grid *seatmap.Grid, booked []string) Alignment {
	picked := toSet(selected)
	if len(picked) < 2 {
		return Alignment{Adjacent: true, SameRow: true, HasAvailableAdjacent: true}
	}
	taken := toSet(booked)

	res := Alignment{Adjacent: true, SameRow: true, HasAvailableAdjacent: true}
	firstRow := -1
	for p := range picked {
		if firstRow == -1 {
			firstRow = p.row
		} else if p.row != firstRow {
			res.SameRow = false
		}

		left, right := position{p.row, p.col - 1}, position{p.row, p.col + 1}
		_, hasLeft := picked[left]
		_, hasRight := picked[right]
		if !hasLeft && !hasRight {
			res.Adjacent = false
		}

		if !hasLeft && !hasRight && !free(left, grid, picked, taken) && !free(right, grid, picked, taken) {
			res.HasAvailableAdjacent = false
		}
	}
	return res
}

// Warnings turns an Alignment into banner messages.
func (a Alignment) Warnings() []string {
	var out []string
	if !a.SameRow {
		out = append(out, "Your seats are spread over several rows.")
	}
	if !a.Adjacent {
		if a.HasAvailableAdjacent {
			out = append(out, "Your seats are not next to each other. Free seats nearby could keep your group together.")
		} else {
			out = append(out, "Your seats are not next to each other.")
		}
	}
	return out
}

func free(p position, grid *seatmap.Grid, picked, taken map[position]struct{}) bool {
	if p.col < 1 {
		return false
	}
	if _, ok := grid.At(p.row, p.col); !ok {
		return false
	}
	if _, ok := picked[p]; ok {
		return false
	}
	_, ok := taken[p]
	return !ok
}

func toSet(ids []string) map[position]struct{} {
	out := make(map[position]struct{}, len(ids))
	for _, id := range ids {
		r, c, err := seatmap.Parse(id)
		if err != nil {
			continue
		}
		out[position{r, c}] = struct{}{}
	}
	return out
}
