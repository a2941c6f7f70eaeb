/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/telemetry"
)

const eventsPingInterval = 15 * time.Second

type wireEvent struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload"`
}

// handleEvents streams bus events to dashboards over a WebSocket.
// ?types=a,b narrows the feed; unknown types are ignored.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.All
	}

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is lost.
	subs := make([]events.Subscriber, len(eventTypes))
	for i, eventType := range eventTypes {
		subs[i] = a.bus.Subscribe(eventType)
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subs[i])
		}
	}()

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIActiveConnections.Inc()
	defer telemetry.APIActiveConnections.Dec()

	// Clients only receive; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))

	merged := make(chan wireEvent, 16)
	var wg sync.WaitGroup
	for i, eventType := range eventTypes {
		wg.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-sub:
					select {
					case merged <- wireEvent{Type: eventType, Payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, subs[i])
	}
	defer wg.Wait()
	defer cancel()

	ticker := time.NewTicker(eventsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case evt := <-merged:
			if err := writeEvent(ctx, conn, evt); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, evt wireEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	out := make([]events.EventType, 0)
	for _, part := range strings.Split(raw, ",") {
		eventType := events.EventType(strings.TrimSpace(part))
		if events.Known(eventType) {
			out = append(out, eventType)
		}
	}
	return out
}
