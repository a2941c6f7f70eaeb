/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"errors"
	"testing"
	"time"
)

func civil(y int, m time.Month, d, hh, mm, ss int) CivilInstant {
	return CivilInstant{Year: y, Month: m, Day: d, Hour: hh, Minute: mm, Second: ss}
}

func utc(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestResolveActiveWindows(t *testing.T) {
	tests := []struct {
		name      string
		shift     Name
		now       CivilInstant
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "morning mid-day",
			shift:     Morning,
			now:       civil(2025, time.June, 15, 9, 30, 0),
			wantStart: utc(2025, time.June, 14, 23, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 22, 59, 59),
		},
		{
			name:      "night before 15:00 uses yesterday's shift",
			shift:     Night,
			now:       civil(2025, time.June, 15, 10, 0, 0),
			wantStart: utc(2025, time.June, 14, 14, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 13, 59, 59),
		},
		{
			name:      "night after 15:00 uses today's shift",
			shift:     Night,
			now:       civil(2025, time.June, 15, 16, 0, 0),
			wantStart: utc(2025, time.June, 15, 14, 0, 30),
			wantEnd:   utc(2025, time.June, 16, 13, 59, 59),
		},
		{
			name:      "morning at exactly 00:00:30",
			shift:     Morning,
			now:       civil(2025, time.June, 15, 0, 0, 30),
			wantStart: utc(2025, time.June, 14, 23, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 22, 59, 59),
		},
		{
			name:      "night at 14:59:59 ends the same day",
			shift:     Night,
			now:       civil(2025, time.June, 15, 14, 59, 59),
			wantStart: utc(2025, time.June, 14, 14, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 13, 59, 59),
		},
		{
			name:      "night at exactly 15:00:30",
			shift:     Night,
			now:       civil(2025, time.June, 15, 15, 0, 30),
			wantStart: utc(2025, time.June, 15, 14, 0, 30),
			wantEnd:   utc(2025, time.June, 16, 13, 59, 59),
		},
		{
			name:      "night yesterday across non-leap february",
			shift:     Night,
			now:       civil(2025, time.March, 1, 10, 0, 0),
			wantStart: utc(2025, time.February, 28, 14, 0, 30),
			wantEnd:   utc(2025, time.March, 1, 13, 59, 59),
		},
		{
			name:      "night yesterday across leap february",
			shift:     Night,
			now:       civil(2024, time.March, 1, 8, 0, 0),
			wantStart: utc(2024, time.February, 29, 14, 0, 30),
			wantEnd:   utc(2024, time.March, 1, 13, 59, 59),
		},
		{
			name:      "night yesterday across year end",
			shift:     Night,
			now:       civil(2025, time.January, 1, 5, 0, 0),
			wantStart: utc(2024, time.December, 31, 14, 0, 30),
			wantEnd:   utc(2025, time.January, 1, 13, 59, 59),
		},
		{
			name:      "night tomorrow across year end",
			shift:     Night,
			now:       civil(2025, time.December, 31, 20, 0, 0),
			wantStart: utc(2025, time.December, 31, 14, 0, 30),
			wantEnd:   utc(2026, time.January, 1, 13, 59, 59),
		},
		{
			name:      "night tomorrow across february end",
			shift:     Night,
			now:       civil(2025, time.February, 28, 16, 0, 0),
			wantStart: utc(2025, time.February, 28, 14, 0, 30),
			wantEnd:   utc(2025, time.March, 1, 13, 59, 59),
		},
		{
			name:      "morning start underflows into previous month",
			shift:     Morning,
			now:       civil(2025, time.March, 1, 12, 0, 0),
			wantStart: utc(2025, time.February, 28, 23, 0, 30),
			wantEnd:   utc(2025, time.March, 1, 22, 59, 59),
		},
		{
			name:      "morning start underflows into previous year",
			shift:     Morning,
			now:       civil(2025, time.January, 1, 6, 0, 0),
			wantStart: utc(2024, time.December, 31, 23, 0, 30),
			wantEnd:   utc(2025, time.January, 1, 22, 59, 59),
		},
		{
			name:      "morning is not cleared at the night boundary",
			shift:     Morning,
			now:       civil(2025, time.June, 15, 15, 0, 10),
			wantStart: utc(2025, time.June, 14, 23, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 22, 59, 59),
		},
		{
			name:      "night is not cleared at midnight",
			shift:     Night,
			now:       civil(2025, time.June, 15, 0, 0, 10),
			wantStart: utc(2025, time.June, 14, 14, 0, 30),
			wantEnd:   utc(2025, time.June, 15, 13, 59, 59),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Resolve(tt.shift, tt.now)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if w.IsCleared() {
				t.Fatalf("expected active window, got cleared")
			}
			if !w.StartUTC.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", w.StartUTC, tt.wantStart)
			}
			if !w.EndUTC.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", w.EndUTC, tt.wantEnd)
			}
		})
	}
}

func TestResolveClearedWindows(t *testing.T) {
	tests := []struct {
		name  string
		shift Name
		now   CivilInstant
	}{
		{"morning at midnight", Morning, civil(2025, time.June, 15, 0, 0, 0)},
		{"morning at 00:00:29", Morning, civil(2025, time.June, 15, 0, 0, 29)},
		{"morning on new year", Morning, civil(2026, time.January, 1, 0, 0, 15)},
		{"night at 15:00:00", Night, civil(2025, time.June, 15, 15, 0, 0)},
		{"night at 15:00:29", Night, civil(2025, time.June, 15, 15, 0, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Resolve(tt.shift, tt.now)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !w.IsCleared() {
				t.Fatalf("expected cleared window, got %v - %v", w.StartUTC, w.EndUTC)
			}
			if w.State() != "cleared" {
				t.Errorf("State() = %q, want cleared", w.State())
			}
			if w.Duration() != 0 {
				t.Errorf("Duration() = %v, want 0", w.Duration())
			}
			if w.Contains(utc(2025, time.June, 15, 12, 0, 0)) {
				t.Error("cleared window must not contain any instant")
			}
		})
	}
}

// Every second of a day yields either the grace-period clear or a well-formed window.
func TestResolveWholeDayInvariants(t *testing.T) {
	day := civil(2024, time.February, 29, 0, 0, 0)
	const wantSpan = 23*time.Hour + 59*time.Minute + 29*time.Second

	for _, name := range Names {
		cleared := 0
		for sec := 0; sec < 24*60*60; sec++ {
			now := day.at(sec/3600, (sec/60)%60, sec%60)
			w, err := Resolve(name, now)
			if err != nil {
				t.Fatalf("%s at %s: %v", name, now, err)
			}
			if w.IsCleared() {
				cleared++
				continue
			}
			if !w.StartUTC.Before(w.EndUTC) {
				t.Fatalf("%s at %s: start %v not before end %v", name, now, w.StartUTC, w.EndUTC)
			}
			if w.Duration() != wantSpan {
				t.Fatalf("%s at %s: span %v, want %v", name, now, w.Duration(), wantSpan)
			}
			if !w.Contains(now.UTC()) {
				t.Fatalf("%s at %s: window %v - %v does not contain now", name, now, w.StartUTC, w.EndUTC)
			}
		}
		if cleared != 30 {
			t.Errorf("%s: cleared for %d seconds, want 30", name, cleared)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	now := civil(2025, time.June, 15, 16, 0, 0)
	first, err := Resolve(Night, now)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve(Night, now)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected identical windows, got %+v and %+v", first, second)
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	valid := civil(2025, time.June, 15, 10, 0, 0)
	tests := []struct {
		name  string
		shift Name
		now   CivilInstant
	}{
		{"unknown shift", Name("afternoon"), valid},
		{"empty shift", Name(""), valid},
		{"hour 24", Morning, civil(2025, time.June, 15, 24, 0, 0)},
		{"negative hour", Night, civil(2025, time.June, 15, -1, 0, 0)},
		{"minute 60", Morning, civil(2025, time.June, 15, 10, 60, 0)},
		{"second 60", Morning, civil(2025, time.June, 15, 10, 0, 60)},
		{"month 13", Morning, civil(2025, 13, 1, 10, 0, 0)},
		{"month 0", Morning, civil(2025, 0, 1, 10, 0, 0)},
		{"february 29 in non-leap year", Night, civil(2025, time.February, 29, 10, 0, 0)},
		{"april 31", Night, civil(2025, time.April, 31, 10, 0, 0)},
		{"day 0", Morning, civil(2025, time.June, 0, 10, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.shift, tt.now)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		raw     string
		want    Name
		wantErr bool
	}{
		{raw: "morning", want: Morning},
		{raw: " Night ", want: Night},
		{raw: "MORNING", want: Morning},
		{raw: "afternoon", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseName(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseName(%q) error = %v, want ErrInvalidArgument", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseName(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestResolveAtConvertsFromUTC(t *testing.T) {
	// 23:00:10Z is 00:00:10 local on the next day.
	w, err := ResolveAt(Morning, utc(2025, time.June, 14, 23, 0, 10))
	if err != nil {
		t.Fatalf("ResolveAt() error = %v", err)
	}
	if !w.IsCleared() {
		t.Fatalf("expected cleared window just after local midnight")
	}

	w, err = ResolveAt(Night, utc(2025, time.June, 15, 15, 0, 0))
	if err != nil {
		t.Fatalf("ResolveAt() error = %v", err)
	}
	if w.IsCleared() {
		t.Fatalf("16:00 local must not be cleared")
	}
	if want := utc(2025, time.June, 15, 14, 0, 30); !w.StartUTC.Equal(want) {
		t.Errorf("start = %v, want %v", w.StartUTC, want)
	}
}

func TestWindowContainsIsInclusive(t *testing.T) {
	w, err := Resolve(Night, civil(2025, time.June, 15, 10, 0, 0))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !w.Contains(w.StartUTC) || !w.Contains(w.EndUTC) {
		t.Error("bounds must be inclusive")
	}
	if w.Contains(w.StartUTC.Add(-time.Second)) || w.Contains(w.EndUTC.Add(time.Second)) {
		t.Error("instants outside the bounds must be excluded")
	}
}
