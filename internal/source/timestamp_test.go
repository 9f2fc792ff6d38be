package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	loc := eastern(t)

	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"winter", "December 30, 2022 17:27", 1672439220},
		{"embedded in text", "Posted on December 30, 2022 17:27 by someone", 1672439220},
		{"lowercase month", "december 30, 2022 17:27", 1672439220},
		{"single digit hour", "July 4, 2023 9:05", 1688475900},
		{"fall back resolves to standard", "November 5, 2023 1:30", 1699165800},
		{"spring forward gap uses standard offset", "March 12, 2023 2:30", 1678606200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimestamp(tt.raw, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimestamp_Errors(t *testing.T) {
	t.Parallel()
	loc := eastern(t)

	for _, raw := range []string{
		"",
		"2 days ago",
		"Dec 30, 2022 17:27",
		"Smarch 30, 2022 17:27",
		"February 30, 2023 10:00",
		"January 1, 2023 24:00",
	} {
		_, err := ParseTimestamp(raw, loc)
		assert.ErrorIs(t, err, ErrBadTimestamp, raw)
	}
}

func TestParseTimestamp_ThreeMinutesApart(t *testing.T) {
	t.Parallel()
	loc := eastern(t)

	a, err := ParseTimestamp("December 30, 2022 17:27", loc)
	require.NoError(t, err)
	b, err := ParseTimestamp("December 30, 2022 17:30", loc)
	require.NoError(t, err)
	assert.Equal(t, int64(180), b-a)
}

func TestParseTimestamp_UTCLocation(t *testing.T) {
	t.Parallel()

	got, err := ParseTimestamp("January 1, 2024 0:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200), got)
}
