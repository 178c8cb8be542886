// Package cron parses standard 5-field cron expressions and runs jobs on the
// resulting schedule.
package cron

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is returned when a cron expression cannot be parsed
// due to incorrect field count, out-of-range values, or malformed syntax.
var ErrInvalidExpression = errors.New("invalid cron expression")

// ErrNoMatch is returned when Next exhausts its iteration limit without
// finding a time that satisfies all cron fields.
var ErrNoMatch = errors.New("cron: no matching time found within iteration limit")

// Schedule computes the next execution time after a given reference time.
type Schedule interface {
	Next(time.Time) (time.Time, error)
}

type fieldSpec struct {
	name string
	min  int
	max  int
}

var fieldSpecs = [5]fieldSpec{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12},
	{name: "day-of-week", min: 0, max: 6},
}

type schedule struct {
	minutes []int
	hours   []int
	doms    []int
	months  []int
	dows    []int
}

// Parse parses a standard 5-field cron expression (minute hour day-of-month
// month day-of-week) and returns a Schedule. Returns ErrInvalidExpression if
// the expression is malformed or contains out-of-range values.
func Parse(expr string) (Schedule, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != len(fieldSpecs) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidExpression, len(fieldSpecs), len(fields))
	}

	parsed := make([][]int, len(fieldSpecs))

	for i, spec := range fieldSpecs {
		vals, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}

		parsed[i] = vals
	}

	return &schedule{
		minutes: parsed[0],
		hours:   parsed[1],
		doms:    parsed[2],
		months:  parsed[3],
		dows:    parsed[4],
	}, nil
}

// Next computes the next execution time after the given reference time,
// normalized to UTC. Returns ErrNoMatch if nothing matches within a year.
func (sched *schedule) Next(from time.Time) (time.Time, error) {
	candidate := from.UTC().Add(time.Minute).Truncate(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		switch {
		case !slices.Contains(sched.months, int(candidate.Month())):
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		case !slices.Contains(sched.doms, candidate.Day()) || !slices.Contains(sched.dows, int(candidate.Weekday())):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, time.UTC)
		case !slices.Contains(sched.hours, candidate.Hour()):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour()+1, 0, 0, 0, time.UTC)
		case !slices.Contains(sched.minutes, candidate.Minute()):
			candidate = candidate.Add(time.Minute)
		default:
			return candidate, nil
		}
	}

	return time.Time{}, ErrNoMatch
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	var result []int

	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}

		result = append(result, vals...)
	}

	return deduplicate(result), nil
}

func parsePart(part string, minVal, maxVal int) ([]int, error) {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")

	step := 1

	if hasStep {
		parsedStep, err := strconv.Atoi(stepPart)
		if err != nil || parsedStep <= 0 {
			return nil, fmt.Errorf("%w: invalid step %q", ErrInvalidExpression, stepPart)
		}

		step = parsedStep
	}

	var lo, hi int

	switch {
	case rangePart == "*":
		lo, hi = minVal, maxVal
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)

		var err error

		lo, err = strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid range start %q", ErrInvalidExpression, bounds[0])
		}

		hi, err = strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid range end %q", ErrInvalidExpression, bounds[1])
		}

		if lo < minVal || hi > maxVal || lo > hi {
			return nil, fmt.Errorf("%w: range %d-%d out of bounds [%d, %d]", ErrInvalidExpression, lo, hi, minVal, maxVal)
		}
	default:
		val, err := strconv.Atoi(rangePart)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid value %q", ErrInvalidExpression, rangePart)
		}

		if val < minVal || val > maxVal {
			return nil, fmt.Errorf("%w: value %d out of bounds [%d, %d]", ErrInvalidExpression, val, minVal, maxVal)
		}

		if !hasStep {
			return []int{val}, nil
		}

		lo, hi = val, maxVal
	}

	var vals []int
	for v := lo; v <= hi; v += step {
		vals = append(vals, v)
	}

	return vals, nil
}

func deduplicate(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	result := make([]int, 0, len(vals))

	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}

	slices.Sort(result)

	return result
}
