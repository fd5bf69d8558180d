package parser

import (
	"time"
)

// timeExtractor parses in UTC; the reading is moved into the clock's location
// when it is anchored.
func timeExtractor(layout string, anchor Anchor) func([]string) (clockReading, bool) {
	return func(match []string) (clockReading, bool) {
		t, err := time.Parse(layout, match[0])
		if err != nil {
			return clockReading{}, false
		}
		return clockReading{value: t, anchor: anchor}, true
	}
}

func (c *compiled) extractTime(text string, now time.Time) *time.Time {
	reading, ok := firstMatch(c.times, text)
	if !ok {
		return nil
	}

	t := reading.value
	loc := now.Location()
	var out time.Time
	switch reading.anchor {
	case AnchorDate:
		out = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	case AnchorYear:
		out = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	default:
		out = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	return &out
}
