// Package seatmap turns a screen's configured seats into the ordered grid
// shoppers select from, and owns the row-letter plus column seat label.
package seatmap

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPosition is returned for a row or column below 1.
	ErrInvalidPosition = errors.New("seat row and column must be positive")
	// ErrInvalidIdentifier is returned when a label is not letters followed by a column number.
	ErrInvalidIdentifier = errors.New("malformed seat identifier")
)

// maxRowLetters bounds the row label so the parsed index cannot overflow.
const maxRowLetters = 4

// RowLabel converts a 1-based row index to its letter label.  Rows 1..26
// map to A..Z; later rows continue as AA, AB, ... so every row keeps a
// distinct label.  It returns "" for rows below 1.
func RowLabel(row int) string {
	if row < 1 {
		return ""
	}
	var buf []byte
	for i := row - 1; i >= 0; i = i/26 - 1 {
		buf = append(buf, byte('A'+i%26))
	}
	for l, r := 0, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return string(buf)
}

// RowIndex is the inverse of RowLabel.  Lower case letters are accepted.
func RowIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" || len(s) > maxRowLetters {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		n = n*26 + int(ch-'A') + 1
	}
	return n, true
}

// Identifier derives the seat label for (row, column), e.g. (3, 7) -> "C7".
func Identifier(row, column int) (string, error) {
	if row < 1 || column < 1 {
		return "", ErrInvalidPosition
	}
	return RowLabel(row) + strconv.Itoa(column), nil
}

// Parse splits a seat label back into its row and column.  Only canonical
// labels are accepted: letters then a decimal column without leading zeros.
func Parse(id string) (row, column int, err error) {
	s := strings.ToUpper(strings.TrimSpace(id))
	split := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return 0, 0, ErrInvalidIdentifier
	}
	letters, digits := s[:split], s[split:]
	if digits[0] == '0' {
		return 0, 0, ErrInvalidIdentifier
	}
	row, ok := RowIndex(letters)
	if !ok {
		return 0, 0, ErrInvalidIdentifier
	}
	column, err = strconv.Atoi(digits)
	if err != nil || column < 1 {
		return 0, 0, ErrInvalidIdentifier
	}
	return row, column, nil
}

// Normalize returns the canonical form of a seat label ("c07" is rejected,
// " c7 " becomes "C7").
func Normalize(id string) (string, error) {
	row, column, err := Parse(id)
	if err != nil {
		return "", err
	}
	return Identifier(row, column)
}
