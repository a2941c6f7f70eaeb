/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventProductionRecorded EventType = "production.recorded"
	EventSalesRecorded      EventType = "sales.recorded"
	EventHandoffCreated     EventType = "handoff.created"

	// Emitted when a window is requested during its clearing grace.
	EventShiftWindowCleared EventType = "shift.window_cleared"

	// Staff events
	EventUserCreated     EventType = "user.created"
	EventUserRoleChanged EventType = "user.role_changed"
	EventUserDeactivated EventType = "user.deactivated"
	EventUserActivated   EventType = "user.activated"
	EventUserDeleted     EventType = "user.deleted"

	// Audit events (for operations that need explicit audit logging)
	EventAuditAPIKeyCreate  EventType = "audit.apikey.create"
	EventAuditAPIKeyRevoke  EventType = "audit.apikey.revoke"
	EventAuditWebhookCreate EventType = "audit.webhook.create"
	EventAuditWebhookDelete EventType = "audit.webhook.delete"
)

// All lists every event type, in a stable order.
var All = []EventType{
	EventProductionRecorded,
	EventSalesRecorded,
	EventHandoffCreated,
	EventShiftWindowCleared,
	EventUserCreated,
	EventUserRoleChanged,
	EventUserDeactivated,
	EventUserActivated,
	EventUserDeleted,
	EventAuditAPIKeyCreate,
	EventAuditAPIKeyRevoke,
	EventAuditWebhookCreate,
	EventAuditWebhookDelete,
}

// Known reports whether t is one of All.
func Known(t EventType) bool {
	for _, candidate := range All {
		if candidate == t {
			return true
		}
	}
	return false
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Slow subscribers drop events
// rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. A nil bus discards the event.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
