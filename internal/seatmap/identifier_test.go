package seatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierRoundTrip(t *testing.T) {
	seen := make(map[string]struct{})
	for row := 1; row <= 26; row++ {
		for col := 1; col <= 40; col++ {
			id, err := Identifier(row, col)
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "duplicate identifier %s", id)
			seen[id] = struct{}{}

			r, c, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, row, r)
			assert.Equal(t, col, c)
		}
	}
}

func TestIdentifierExamples(t *testing.T) {
	cases := []struct {
		row, col int
		want     string
	}{
		{1, 1, "A1"},
		{3, 7, "C7"},
		{26, 12, "Z12"},
		{27, 1, "AA1"},
		{52, 3, "AZ3"},
		{53, 2, "BA2"},
	}
	for _, tc := range cases {
		got, err := Identifier(tc.row, tc.col)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestRowsBeyondAlphabetRoundTrip(t *testing.T) {
	for row := 1; row <= 800; row++ {
		idx, ok := RowIndex(RowLabel(row))
		require.True(t, ok)
		require.Equal(t, row, idx)
	}
}

func TestIdentifierRejectsNonPositive(t *testing.T) {
	_, err := Identifier(0, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = Identifier(1, 0)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "A", "7", "A0", "A07", "A1B", "1A", "Ä1", "A-1", "ABCDE1"} {
		_, _, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "input %q", in)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(" c7 ")
	require.NoError(t, err)
	assert.Equal(t, "C7", got)
}
