/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package shift computes the reporting windows for the bakery's morning and
// night shifts.
//
// Every production, sales and handoff query is bucketed by shift. A shift's
// "current occurrence" is derived from the current civil time in the bakery's
// fixed local zone (UTC+1, no DST) and expressed as inclusive UTC bounds. For
// the first 30 seconds after a shift boundary the window is Cleared and callers
// must treat the shift as having no data yet.
package shift

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidArgument is returned for unknown shift names and malformed civil times.
var ErrInvalidArgument = errors.New("invalid argument")

// ClearedReason is the message callers hand back with an empty result set
// while a window is cleared.
const ClearedReason = "shift just rolled over; no data for this shift yet"

// ClearingGrace is how long a window stays cleared after its boundary.
const ClearingGrace = 30 * time.Second

// Name enumerates the bakery shifts.
type Name string

const (
	Morning Name = "morning"
	Night   Name = "night"
)

// Names lists every valid shift in display order.
var Names = []Name{Morning, Night}

// ParseName converts user input into a shift name.
func ParseName(raw string) (Name, error) {
	switch Name(strings.ToLower(strings.TrimSpace(raw))) {
	case Morning:
		return Morning, nil
	case Night:
		return Night, nil
	default:
		return "", fmt.Errorf("%w: unknown shift %q", ErrInvalidArgument, raw)
	}
}

// Valid reports whether n is one of the enumerated shifts.
func (n Name) Valid() bool {
	return n == Morning || n == Night
}

func (n Name) String() string {
	return string(n)
}

// boundary is the local hour at which the shift's occurrence starts.
func (n Name) boundary() int {
	if n == Night {
		return 15
	}
	return 0
}

// Window is the resolved data range of a shift occurrence.
// The zero value is not meaningful; use Resolve.
type Window struct {
	Cleared  bool
	StartUTC time.Time
	EndUTC   time.Time
}

// IsCleared reports whether the window is in its post-boundary grace period.
func (w Window) IsCleared() bool {
	return w.Cleared
}

// State returns "cleared" or "active".
func (w Window) State() string {
	if w.Cleared {
		return "cleared"
	}
	return "active"
}

// Contains reports whether t falls inside the window, bounds inclusive.
// A cleared window contains nothing.
func (w Window) Contains(t time.Time) bool {
	if w.Cleared {
		return false
	}
	return !t.Before(w.StartUTC) && !t.After(w.EndUTC)
}

// Duration returns EndUTC - StartUTC, or zero for a cleared window.
func (w Window) Duration() time.Duration {
	if w.Cleared {
		return 0
	}
	return w.EndUTC.Sub(w.StartUTC)
}

// Resolve computes the window of the named shift's current occurrence as
// observed at now.
func Resolve(name Name, now CivilInstant) (Window, error) {
	if !name.Valid() {
		return Window{}, fmt.Errorf("%w: unknown shift %q", ErrInvalidArgument, string(name))
	}
	if err := now.Validate(); err != nil {
		return Window{}, err
	}

	if now.Hour == name.boundary() && now.Minute == 0 && now.Second < int(ClearingGrace/time.Second) {
		return Window{Cleared: true}, nil
	}

	var start, end CivilInstant
	switch name {
	case Morning:
		start = now.at(0, 0, 30)
		end = now.at(23, 59, 59)
	case Night:
		if now.Hour >= 15 {
			start = now.at(15, 0, 30)
			end = now.nextDay().at(14, 59, 59)
		} else {
			start = now.prevDay().at(15, 0, 30)
			end = now.at(14, 59, 59)
		}
	}

	return Window{StartUTC: start.UTC(), EndUTC: end.UTC()}, nil
}

// ResolveAt converts a true UTC instant to civil time and resolves the window.
func ResolveAt(name Name, nowUTC time.Time) (Window, error) {
	return Resolve(name, CivilFromUTC(nowUTC))
}
