package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronSet is a bitset of allowed values for one field (bit n = value n).
type cronSet uint64

func (s cronSet) has(v int) bool { return s&(1<<uint(v)) != 0 }

type fieldSpec struct {
	name   string
	lo, hi int
}

var cronFields = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// schedule is a parsed "minute hour dom month dow" expression.
type schedule struct {
	minute, hour, dom, month, dow cronSet
	// Standard cron: when both day fields are restricted a day matching
	// either one fires.
	domStar, dowStar bool
}

// parseCron accepts "*", "a", "a-b", "*/n", "a-b/n" and comma lists of
// those in each of the five fields.
func parseCron(expr string) (schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return schedule{}, fmt.Errorf("cron: want 5 fields, got %d", len(fields))
	}
	var sets [5]cronSet
	for i, f := range fields {
		set, err := parseField(f, cronFields[i].lo, cronFields[i].hi)
		if err != nil {
			return schedule{}, fmt.Errorf("cron: %s: %w", cronFields[i].name, err)
		}
		sets[i] = set
	}
	return schedule{
		minute:  sets[0],
		hour:    sets[1],
		dom:     sets[2],
		month:   sets[3],
		dow:     sets[4],
		domStar: fields[2] == "*",
		dowStar: fields[4] == "*",
	}, nil
}

func parseField(field string, lo, hi int) (cronSet, error) {
	var set cronSet
	for _, term := range strings.Split(field, ",") {
		rng, stepStr, hasStep := strings.Cut(term, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step in %q", term)
			}
			step = n
		}

		from, to := lo, hi
		if rng != "*" {
			a, b, isRange := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad value %q", a)
			}
			to = from
			if isRange {
				if to, err = strconv.Atoi(b); err != nil {
					return 0, fmt.Errorf("bad value %q", b)
				}
			} else if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%q outside %d-%d", term, lo, hi)
		}
		for v := from; v <= to; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

func (s schedule) dayMatches(t time.Time) bool {
	dom, dow := s.dom.has(t.Day()), s.dow.has(int(t.Weekday()))
	switch {
	case s.domStar && s.dowStar:
		return true
	case s.domStar:
		return dow
	case s.dowStar:
		return dom
	default:
		return dom || dow
	}
}

var errNoCronMatch = errors.New("cron: no matching time within a year")

// next returns the first matching minute strictly after after.
func (s schedule) next(after time.Time) (time.Time, error) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(1, 0, 1)
	for t.Before(limit) {
		if !s.month.has(int(t.Month())) || !s.dayMatches(t) {
			y, m, d := t.Date()
			t = time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = t.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if s.minute.has(t.Minute()) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, errNoCronMatch
}
