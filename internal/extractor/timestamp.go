package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/IshaanNene/commentgoat/internal/types"
)

var stampRe = regexp.MustCompile(`(\d\d)-(\d\d) (\d\d):(\d\d)`)

// ParsePostTime derives the post time of a header in the given year. Headers
// carry MM-DD HH:MM without a year; the last such group in the header wins.
// The time is truncated to the hour, which is the resolution the age window
// works in.
func ParsePostTime(header string, year int, loc *time.Location) (time.Time, error) {
	matches := stampRe.FindAllStringSubmatch(header, -1)
	if len(matches) == 0 {
		return time.Time{}, types.ErrNoTimestamp
	}
	m := matches[len(matches)-1]

	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 {
		return time.Time{}, fmt.Errorf("%w: out of range %q", types.ErrNoTimestamp, m[0])
	}

	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, loc)
	if t.Day() != day {
		// 02-30 and friends normalise into the next month
		return time.Time{}, fmt.Errorf("%w: no such day %q", types.ErrNoTimestamp, m[0])
	}
	return t, nil
}

// PostTimeRelative derives the post time of header relative to latest,
// which is assumed to be the most recent post of the run. A date that would
// land after latest belongs to the previous year.
func PostTimeRelative(header string, latest time.Time) (time.Time, error) {
	t, err := ParsePostTime(header, latest.Year(), latest.Location())
	if err != nil {
		return t, err
	}
	if t.After(latest) {
		return ParsePostTime(header, latest.Year()-1, latest.Location())
	}
	return t, nil
}
