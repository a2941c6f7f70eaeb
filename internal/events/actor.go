/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

// Actor identifies who triggered an event. The audit service lifts these
// fields into dedicated columns.
type Actor struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
}

// Stamp copies the actor fields into p and returns it.
func (a Actor) Stamp(p Payload) Payload {
	if p == nil {
		p = Payload{}
	}
	if a.UserID != "" {
		p["user_id"] = a.UserID
	}
	if a.Email != "" {
		p["user_email"] = a.Email
	}
	if a.IPAddress != "" {
		p["ip_address"] = a.IPAddress
	}
	if a.UserAgent != "" {
		p["user_agent"] = a.UserAgent
	}
	return p
}
