package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // civil zone must resolve on hosts without zoneinfo

	"github.com/rotisserie/eris"
)

// Rendered dates look like "December 30, 2022 17:27".
var timestampPattern = regexp.MustCompile(`(?i)(\w+)\s+(\d+),\s+(\d{4})\s+(\d{1,2}):(\d{2})`)

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// ParseTimestamp finds a "<Month> <day>, <year> <hour>:<minute>" date in raw,
// reads it as wall-clock time in loc and returns UTC epoch seconds.
//
// A wall time repeated by a fall-back transition resolves to standard time.
// A wall time skipped by a spring-forward transition is read with the
// standard offset.
func ParseTimestamp(raw string, loc *time.Location) (int64, error) {
	m := timestampPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, eris.Wrapf(ErrBadTimestamp, "source: no date in %q", raw)
	}

	month, ok := months[strings.ToLower(m[1])]
	if !ok {
		return 0, eris.Wrapf(ErrBadTimestamp, "source: unknown month %q in %q", m[1], raw)
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	if hour > 23 || minute > 59 || day < 1 || day > daysIn(year, month) {
		return 0, eris.Wrapf(ErrBadTimestamp, "source: out of range date %q", raw)
	}

	return civilToUnix(year, month, day, hour, minute, loc), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// civilToUnix resolves a wall-clock time in loc. The zone's offsets a few
// hours either side of the naive instant are the only candidates.
func civilToUnix(year int, month time.Month, day, hour, minute int, loc *time.Location) int64 {
	naive := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)

	before := naive.Add(-12 * time.Hour).In(loc)
	after := naive.Add(12 * time.Hour).In(loc)

	type candidate struct {
		at  time.Time
		dst bool
	}
	var offsets []candidate
	for _, ref := range []time.Time{before, after} {
		_, off := ref.Zone()
		at := naive.Add(-time.Duration(off) * time.Second)
		if len(offsets) == 1 && offsets[0].at.Equal(at) {
			continue
		}
		offsets = append(offsets, candidate{at: at, dst: ref.IsDST()})
	}

	var valid []candidate
	for _, c := range offsets {
		local := c.at.In(loc)
		if local.Year() == year && local.Month() == month && local.Day() == day &&
			local.Hour() == hour && local.Minute() == minute {
			valid = append(valid, c)
		}
	}

	pool := valid
	if len(pool) == 0 {
		pool = offsets
	}
	for _, c := range pool {
		if !c.dst {
			return c.at.Unix()
		}
	}
	return pool[0].at.Unix()
}
