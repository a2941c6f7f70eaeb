/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package reports nets production against sales for one shift occurrence.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/cache"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
	"github.com/toptech5419/homebake/internal/telemetry"
)

// Line is one product's totals within a shift window.
type Line struct {
	ProductName string  `json:"product_name"`
	Produced    int     `json:"produced"`
	Sold        int     `json:"sold"`
	Remaining   int     `json:"remaining"`
	Oversold    bool    `json:"oversold"`
	Revenue     float64 `json:"revenue"`
}

// Report summarises one shift occurrence.
type Report struct {
	Shift         string     `json:"shift"`
	Cleared       bool       `json:"cleared"`
	Reason        string     `json:"reason,omitempty"`
	WindowStart   *time.Time `json:"window_start,omitempty"`
	WindowEnd     *time.Time `json:"window_end,omitempty"`
	Items         []Line     `json:"items"`
	TotalProduced int        `json:"total_produced"`
	TotalSold     int        `json:"total_sold"`
	TotalRevenue  float64    `json:"total_revenue"`
	GeneratedAt   time.Time  `json:"generated_at"`
}

// Service builds shift reports.
type Service struct {
	production *production.Service
	sales      *sales.Service
	cache      *cache.Cache
	bus        *events.Bus
	logger     zerolog.Logger
}

// NewService creates a report service. c may be nil.
func NewService(prod *production.Service, sl *sales.Service, c *cache.Cache, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		production: prod,
		sales:      sl,
		cache:      c,
		bus:        bus,
		logger:     logger.With().Str("component", "reports").Logger(),
	}
}

// ShiftReport resolves the shift window at now and summarises it.
func (s *Service) ShiftReport(ctx context.Context, name shift.Name, now shift.CivilInstant) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "homebake/reports", "reports.ShiftReport")
	defer span.End()

	window, err := shift.Resolve(name, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.ShiftAttributes(name.String(), window.State())...)

	if window.IsCleared() {
		return &Report{
			Shift:       name.String(),
			Cleared:     true,
			Reason:      shift.ClearedReason,
			Items:       []Line{},
			GeneratedAt: now.UTC(),
		}, nil
	}

	var cached Report
	if s.cache.GetShiftReport(ctx, name.String(), window.StartUTC, &cached) {
		return &cached, nil
	}

	produced, err := s.production.ListForWindow(ctx, name, window)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	sold, err := s.sales.ListForWindow(ctx, name, window)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := Build(name, window, produced, sold)
	report.GeneratedAt = now.UTC()

	if err := s.cache.SetShiftReport(ctx, name.String(), window.StartUTC, report); err != nil {
		s.logger.Debug().Err(err).Str("shift", name.String()).Msg("failed to cache shift report")
	}
	return report, nil
}

// Build nets sales quantities against production per product. Remaining
// never goes below zero; a product sold beyond what was baked is flagged
// oversold instead.
func Build(name shift.Name, window shift.Window, produced []models.ProductionLog, sold []models.SalesLog) *Report {
	start, end := window.StartUTC, window.EndUTC
	report := &Report{
		Shift:       name.String(),
		WindowStart: &start,
		WindowEnd:   &end,
		Items:       []Line{},
	}

	lines := make(map[string]*Line)
	line := func(product string) *Line {
		l, ok := lines[product]
		if !ok {
			l = &Line{ProductName: product}
			lines[product] = l
		}
		return l
	}

	for _, p := range produced {
		line(p.ProductName).Produced += p.Quantity
		report.TotalProduced += p.Quantity
	}
	for i := range sold {
		l := line(sold[i].ProductName)
		l.Sold += sold[i].Quantity
		l.Revenue += sold[i].Revenue()
		report.TotalSold += sold[i].Quantity
		report.TotalRevenue += sold[i].Revenue()
	}

	for _, l := range lines {
		l.Remaining = l.Produced - l.Sold
		if l.Remaining < 0 {
			l.Remaining = 0
			l.Oversold = true
		}
		report.Items = append(report.Items, *l)
	}
	sort.Slice(report.Items, func(i, j int) bool {
		return report.Items[i].ProductName < report.Items[j].ProductName
	})

	return report
}

// RunInvalidation drops cached reports of a shift whenever production or
// sales for it are recorded. It blocks until ctx is done.
func (s *Service) RunInvalidation(ctx context.Context) {
	s.runInvalidation(ctx, s.subscribeInvalidation())
}

type invalidationSubs struct {
	production events.Subscriber
	sales      events.Subscriber
}

func (s *Service) subscribeInvalidation() invalidationSubs {
	return invalidationSubs{
		production: s.bus.Subscribe(events.EventProductionRecorded),
		sales:      s.bus.Subscribe(events.EventSalesRecorded),
	}
}

func (s *Service) runInvalidation(ctx context.Context, subs invalidationSubs) {
	defer func() {
		s.bus.Unsubscribe(events.EventProductionRecorded, subs.production)
		s.bus.Unsubscribe(events.EventSalesRecorded, subs.sales)
	}()

	s.logger.Info().Msg("report cache invalidation started")
	for {
		var payload events.Payload
		select {
		case <-ctx.Done():
			return
		case payload = <-subs.production:
		case payload = <-subs.sales:
		}

		name, _ := payload["shift"].(string)
		if err := s.cache.InvalidateShiftReports(ctx, name); err != nil {
			s.logger.Warn().Err(err).Str("shift", name).Msg("failed to invalidate shift reports")
		}
	}
}
