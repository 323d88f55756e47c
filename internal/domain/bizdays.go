package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinResponseBusinessDays is the legally required minimum response window for a
// preliminary revocation notice.
const MinResponseBusinessDays = 5

// AddBusinessDays walks forward one calendar day at a time from start, counting
// only weekdays, and returns the date on which the count reaches days.
func AddBusinessDays(start time.Time, days int) time.Time {
	d := start
	for counted := 0; counted < days; {
		d = d.AddDate(0, 0, 1)
		if isBusinessDay(d) {
			counted++
		}
	}
	return d
}

// BusinessDaysRemaining returns how many business days of the minimum response
// window are left as of now, floored at zero.
func BusinessDaysRemaining(sent, now time.Time) int {
	elapsed := BusinessDaysBetween(sent, now)
	if remaining := MinResponseBusinessDays - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// BusinessDaysBetween counts the weekdays strictly after from, up to and
// including to. Time-of-day is ignored.
func BusinessDaysBetween(from, to time.Time) int {
	d := dateOnly(from)
	end := dateOnly(to)
	count := 0
	for d.Before(end) {
		d = d.AddDate(0, 0, 1)
		if isBusinessDay(d) {
			count++
		}
	}
	return count
}

// SanitizeBusinessDays strips non-digit characters from raw input and enforces
// the legal minimum.
func SanitizeBusinessDays(raw string) (int, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("business days value %q contains no digits", raw)
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, fmt.Errorf("business days value %q is not a number", raw)
	}
	if n < MinResponseBusinessDays {
		return 0, fmt.Errorf("business days must be at least %d, got %d", MinResponseBusinessDays, n)
	}
	return n, nil
}

func isBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
