// Package cronspec implements the five-field cron dialect described in
// spec §4.1: minute, hour, day-of-month, month, day-of-week, with wildcard,
// step, range, and list forms. Weekday accepts both 0-6 (Sunday=0) and 1-7
// (Monday=1); the canonical form used internally is 0-6 with Sunday=0 —
// a 7 in the weekday field is folded to 0 at parse time.
package cronspec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldBounds are the valid [min,max] range per field, in field order.
var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 7},  // day of week (7 accepted as alias for 0, folded below)
}

// Expr is a parsed cron expression: one bitset per field.
type Expr struct {
	raw      string
	minute   fieldSet
	hour     fieldSet
	dom      fieldSet
	month    fieldSet
	weekday  fieldSet
	domStar  bool // tracks whether DOM/weekday were both restricted ("or" join)
	dowStar  bool
}

// fieldSet is a bitset over a small bounded integer range (max 60 values).
type fieldSet uint64

func (fs fieldSet) has(v int) bool { return fs&(1<<uint(v)) != 0 }

func setBit(fs fieldSet, v int) fieldSet { return fs | (1 << uint(v)) }

// Parse validates and compiles a five-field cron expression.
func Parse(expr string) (*Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cronspec: expected 5 fields, got %d in %q", len(fields), expr)
	}

	e := &Expr{raw: expr}

	sets := make([]fieldSet, 5)

	for i, f := range fields {
		fs, err := parseField(f, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cronspec: field %d (%q): %w", i, f, err)
		}

		sets[i] = fs
	}

	e.minute, e.hour, e.dom, e.month = sets[0], sets[1], sets[2], sets[3]

	// Fold weekday 7 into 0 (Sunday), canonical form is 0-6.
	wd := sets[4]
	if wd.has(7) {
		wd = setBit(wd, 0)
	}

	e.weekday = wd

	e.domStar = fields[2] == "*"
	e.dowStar = fields[4] == "*"

	return e, nil
}

// parseField parses one comma-separated list of wildcard/step/range/literal
// subexpressions into a bitset.
func parseField(field string, min, max int) (fieldSet, error) {
	var fs fieldSet

	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := parsePart(part, min, max)
		if err != nil {
			return 0, err
		}

		for v := lo; v <= hi; v += step {
			if v < min || v > max {
				return 0, fmt.Errorf("value %d out of range [%d,%d]", v, min, max)
			}

			fs = setBit(fs, v)
		}
	}

	return fs, nil
}

// parsePart handles one of: "*", "*/n", "a-b", "a-b/n", "a".
func parsePart(part string, min, max int) (lo, hi, step int, err error) {
	step = 1

	base, stepStr, hasStep := strings.Cut(part, "/")
	if hasStep {
		step, err = strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid step %q", stepStr)
		}
	}

	switch {
	case base == "*":
		return min, max, step, nil
	case strings.Contains(base, "-"):
		loStr, hiStr, _ := strings.Cut(base, "-")

		lo, err = strconv.Atoi(loStr)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range start %q", loStr)
		}

		hi, err = strconv.Atoi(hiStr)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range end %q", hiStr)
		}

		if lo > hi {
			return 0, 0, 0, fmt.Errorf("range %q has start greater than end", base)
		}

		return lo, hi, step, nil
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid literal %q", base)
		}

		return v, v, step, nil
	}
}

// String returns the expression text as given to Parse; a weekday written
// as 7 is not rewritten to 0 here.
func (e *Expr) String() string { return e.raw }

// maxSearchMinutes bounds how far into the future Next will search before
// giving up — four years of minutes, comfortably covering any realistic
// cron expression including Feb 29.
const maxSearchMinutes = 4 * 366 * 24 * 60

// Next returns the first fire time strictly after from.
func (e *Expr) Next(from time.Time) (time.Time, error) {
	t := from.Truncate(time.Minute).Add(time.Minute)

	for i := 0; i < maxSearchMinutes; i++ {
		if e.matches(t) {
			return t, nil
		}

		t = t.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("cronspec: no match found within search horizon for %q", e.raw)
}

// matches reports whether t satisfies all five fields. Per standard cron
// semantics, when both day-of-month and day-of-week are restricted
// (non-"*"), a time matches if it satisfies EITHER (OR-join); when only one
// or neither is restricted, both must match normally (AND-join, degenerate
// to a no-op for the "*" side).
func (e *Expr) matches(t time.Time) bool {
	if !e.minute.has(t.Minute()) || !e.hour.has(t.Hour()) || !e.month.has(int(t.Month())) {
		return false
	}

	domMatch := e.dom.has(t.Day())
	dowMatch := e.weekday.has(int(t.Weekday()))

	if !e.domStar && !e.dowStar {
		return domMatch || dowMatch
	}

	return domMatch && dowMatch
}
