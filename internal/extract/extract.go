// Package extract pulls a single validated number out of a portal response.
//
// Markers are located with the sensor kind's regular expression on the raw
// HTML. Candidates are considered in document order and the first one that
// parses and falls inside the kind's closed range wins; later candidates are
// ignored even when they are also valid.
package extract

import (
	"errors"
	"fmt"
	"strconv"

	"loggamera-bridge/internal/models"
)

var (
	// ErrNoMatch means no marker was found or none of them parsed
	ErrNoMatch = errors.New("no marker matched")
	// ErrOutOfRange is matched by *OutOfRangeError
	ErrOutOfRange = errors.New("value out of range")
)

// OutOfRangeError lists the parsed values that were rejected
type OutOfRangeError struct {
	Values []float64
	Min    float64
	Max    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%d candidate(s) %v outside [%g, %g]", len(e.Values), e.Values, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Candidate is one marker occurrence
type Candidate struct {
	Raw     string
	Value   float64
	Err     error
	InRange bool
}

// Candidates returns every marker match in document order
func Candidates(html string, spec models.SensorSpec) []Candidate {
	if spec.Pattern == nil {
		return nil
	}
	matches := spec.Pattern.FindAllStringSubmatch(html, -1)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		c := Candidate{Raw: m[1]}
		c.Value, c.Err = strconv.ParseFloat(m[1], 64)
		c.InRange = c.Err == nil && c.Value >= spec.Min && c.Value <= spec.Max
		out = append(out, c)
	}
	return out
}

// Extract returns the first in-range value
func Extract(html string, spec models.SensorSpec) (float64, error) {
	var rejected []float64
	for _, c := range Candidates(html, spec) {
		if c.Err != nil {
			continue
		}
		if c.InRange {
			return c.Value, nil
		}
		rejected = append(rejected, c.Value)
	}
	if len(rejected) == 0 {
		return 0, ErrNoMatch
	}
	return 0, &OutOfRangeError{Values: rejected, Min: spec.Min, Max: spec.Max}
}
