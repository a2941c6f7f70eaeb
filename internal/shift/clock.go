/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package shift

import "time"

// Clock abstracts "now" so services can be tested at exact shift boundaries.
type Clock interface {
	NowUTC() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowUTC() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) NowUTC() time.Time {
	return c.At.UTC()
}

// Now returns the clock's current civil time.
func Now(c Clock) CivilInstant {
	return CivilFromUTC(c.NowUTC())
}
