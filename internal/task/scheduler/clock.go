package scheduler

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidClock = errors.New("invalid time, use HH:MM in 24-hour format")

var reClock = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// NextClock resolves a wall-clock "HH:MM" to the next matching instant after
// now, in now's location. A time equal to or before now rolls to tomorrow.
func NextClock(text string, now time.Time) (time.Time, error) {
	m := reClock.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, ErrInvalidClock
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	if h > 23 || mi > 59 {
		return time.Time{}, ErrInvalidClock
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), h, mi, 0, 0, now.Location())
	if !at.After(now) {
		at = time.Date(now.Year(), now.Month(), now.Day()+1, h, mi, 0, 0, now.Location())
	}
	return at, nil
}
