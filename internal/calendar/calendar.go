// Package calendar implements the 5-field calendar expression engine from
// spec §4.1. It wires the teacher's previously-unused robfig/cron/v3
// dependency (go.mod carried it, but the teacher's own next-run computation
// was a hand-rolled minute-walk in pgk/parser) to get DST-correct
// wall-clock evaluation in a named zone for free: robfig/cron's Schedule.Next
// walks local time in the *time.Location baked into the parsed schedule, so
// spring-forward gaps and fall-back overlaps resolve exactly as spec §4.1
// requires (skip to next valid instant; first occurrence on overlap).
package calendar

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Engine parses and evaluates 5-field calendar expressions under a named
// IANA time zone.
type Engine struct {
	parser cron.Parser
}

// New builds a calendar Engine restricted to the classic 5 fields (no
// seconds, no descriptors like @daily) per spec's "5-field" wording.
func New() Engine {
	return Engine{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Validate reports whether expr is a syntactically valid 5-field expression,
// returning an error describing the offending field otherwise.
func (e Engine) Validate(expr string) error {
	_, err := e.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid calendar expression %q: %w", expr, err)
	}
	return nil
}

// Next returns the earliest instant strictly after 'after' whose wall-clock
// fields in the named zone match expr. zone must be a valid IANA zone name;
// "" and "UTC" both mean UTC.
func (e Engine) Next(expr string, zone string, after time.Time) (time.Time, error) {
	loc, err := resolveLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time zone %q: %w", zone, err)
	}

	sched, err := e.parser.Parse(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), expr))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar expression %q: %w", expr, err)
	}

	return sched.Next(after), nil
}

func resolveLocation(zone string) (*time.Location, error) {
	if zone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(zone)
}
