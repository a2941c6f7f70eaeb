/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package announcer publishes shift.window_cleared once per boundary so
// subscribers learn about rollovers without polling the window endpoint.
package announcer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/telemetry"
)

// DefaultInterval keeps several observations inside every clearing grace.
const DefaultInterval = 5 * time.Second

// SourceBoundary marks announcements in the event payload.
const SourceBoundary = "boundary"

// Leader gates announcements in multi-instance deployments.
type Leader interface {
	IsLeader() bool
}

// Announcer watches the clock and announces each cleared window.
type Announcer struct {
	bus      *events.Bus
	clock    shift.Clock
	leader   Leader
	interval time.Duration
	logger   zerolog.Logger

	// last civil date each shift was announced for
	announced map[shift.Name]string
}

// New creates an announcer. A nil leader means this instance always announces.
func New(bus *events.Bus, clock shift.Clock, leader Leader, logger zerolog.Logger) *Announcer {
	if clock == nil {
		clock = shift.SystemClock{}
	}
	return &Announcer{
		bus:       bus,
		clock:     clock,
		leader:    leader,
		interval:  DefaultInterval,
		logger:    logger.With().Str("component", "announcer").Logger(),
		announced: make(map[shift.Name]string, len(shift.Names)),
	}
}

// Run checks the clock every interval until ctx is done.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("shift boundary announcer started")
	for {
		a.Tick(shift.Now(a.clock))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick announces every shift whose window is cleared at now and has not yet
// been announced for that date. It returns the shifts announced.
func (a *Announcer) Tick(now shift.CivilInstant) []shift.Name {
	if a.leader != nil && !a.leader.IsLeader() {
		return nil
	}

	date := now.String()[:len("2006-01-02")]
	var fired []shift.Name
	for _, name := range shift.Names {
		w, err := shift.Resolve(name, now)
		if err != nil {
			a.logger.Error().Err(err).Str("shift", name.String()).Msg("resolve failed")
			continue
		}
		if !w.IsCleared() || a.announced[name] == date {
			continue
		}
		a.announced[name] = date

		a.bus.Publish(events.EventShiftWindowCleared, events.Payload{
			"shift":       name.String(),
			"observed_at": now.String(),
			"source":      SourceBoundary,
		})
		telemetry.ShiftBoundaryAnnouncements.WithLabelValues(name.String()).Inc()
		a.logger.Info().Str("shift", name.String()).Str("observed_at", now.String()).Msg("shift boundary announced")
		fired = append(fired, name)
	}
	return fired
}
