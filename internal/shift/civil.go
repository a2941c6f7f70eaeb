/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import (
	"fmt"
	"time"
)

// LocalOffset is the fixed offset of the bakery's civil zone from UTC.
const LocalOffset = time.Hour

// CivilInstant is a wall-clock date and time in the fixed local zone.
type CivilInstant struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// CivilFromUTC converts an absolute instant into local civil time.
func CivilFromUTC(t time.Time) CivilInstant {
	local := t.UTC().Add(LocalOffset)
	return CivilInstant{
		Year:   local.Year(),
		Month:  local.Month(),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
	}
}

// ParseCivil parses "2006-01-02T15:04:05" as local civil time.
func ParseCivil(raw string) (CivilInstant, error) {
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return CivilInstant{}, fmt.Errorf("%w: civil time %q: %v", ErrInvalidArgument, raw, err)
	}
	return CivilInstant{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}, nil
}

// Validate rejects field values outside the Gregorian calendar and 24h clock.
func (c CivilInstant) Validate() error {
	switch {
	case c.Month < time.January || c.Month > time.December:
		return fmt.Errorf("%w: month %d out of range", ErrInvalidArgument, c.Month)
	case c.Day < 1 || c.Day > daysIn(c.Year, c.Month):
		return fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrInvalidArgument, c.Day, c.Year, c.Month)
	case c.Hour < 0 || c.Hour > 23:
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidArgument, c.Hour)
	case c.Minute < 0 || c.Minute > 59:
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidArgument, c.Minute)
	case c.Second < 0 || c.Second > 59:
		return fmt.Errorf("%w: second %d out of range", ErrInvalidArgument, c.Second)
	}
	return nil
}

// UTC converts the civil instant to UTC by subtracting the local offset.
// An hour underflow moves the date back one day.
func (c CivilInstant) UTC() time.Time {
	hour := c.Hour - int(LocalOffset/time.Hour)
	date := c
	if hour < 0 {
		hour += 24
		date = c.prevDay()
	}
	return time.Date(date.Year, date.Month, date.Day, hour, c.Minute, c.Second, 0, time.UTC)
}

func (c CivilInstant) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", c.Year, int(c.Month), c.Day, c.Hour, c.Minute, c.Second)
}

// at returns the same date at the given time of day.
func (c CivilInstant) at(hour, minute, second int) CivilInstant {
	c.Hour, c.Minute, c.Second = hour, minute, second
	return c
}

func (c CivilInstant) prevDay() CivilInstant {
	if c.Day > 1 {
		c.Day--
		return c
	}
	if c.Month > time.January {
		c.Month--
	} else {
		c.Month = time.December
		c.Year--
	}
	c.Day = daysIn(c.Year, c.Month)
	return c
}

func (c CivilInstant) nextDay() CivilInstant {
	if c.Day < daysIn(c.Year, c.Month) {
		c.Day++
		return c
	}
	c.Day = 1
	if c.Month < time.December {
		c.Month++
	} else {
		c.Month = time.January
		c.Year++
	}
	return c
}

var monthDays = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func daysIn(year int, month time.Month) int {
	if month == time.February && isLeap(year) {
		return 29
	}
	return monthDays[month-1]
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
