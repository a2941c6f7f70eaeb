/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/telemetry"
)

// OriginKey marks payloads that arrived from another node so they are not
// relayed back out.
const OriginKey = "origin_node"

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	NodeID        string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "homebake.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Relay mirrors the in-process bus onto NATS subjects so every instance sees
// production, sales and staff events recorded elsewhere. Without a broker it
// leaves the local bus untouched.
type Relay struct {
	logger zerolog.Logger
	bus    *events.Bus
	conn   *nats.Conn
	cfg    NATSConfig

	mu      sync.Mutex
	local   map[events.EventType]events.Subscriber
	remote  *nats.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRelay connects to NATS. A connection failure is logged and the relay
// falls back to local-only delivery.
func NewRelay(cfg NATSConfig, bus *events.Bus, logger zerolog.Logger) *Relay {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}
	if cfg.NodeID == "" {
		cfg.NodeID = generateNodeID()
	}

	r := &Relay{
		logger: logger.With().Str("component", "event_relay").Str("node_id", cfg.NodeID).Logger(),
		bus:    bus,
		cfg:    cfg,
		local:  make(map[events.EventType]events.Subscriber),
	}

	opts := []nats.Option{
		nats.Name("homebake-" + cfg.NodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			r.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, events stay local")
		return r
	}
	r.conn = conn
	r.logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS event relay connected")
	return r
}

// Connected reports whether a broker connection is established.
func (r *Relay) Connected() bool {
	return r.conn != nil && r.conn.IsConnected()
}

// Start begins relaying in both directions until ctx is cancelled or Close is called.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if r.conn == nil {
		return nil
	}

	remote, err := r.conn.Subscribe(r.cfg.SubjectPrefix+".>", func(msg *nats.Msg) {
		r.deliver(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.cfg.SubjectPrefix, err)
	}
	r.remote = remote

	ctx, r.cancel = context.WithCancel(ctx)
	for _, eventType := range events.All {
		sub := r.bus.Subscribe(eventType)
		r.local[eventType] = sub
		r.wg.Add(1)
		go r.forward(ctx, eventType, sub)
	}
	r.started = true
	return nil
}

func (r *Relay) forward(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if _, remote := payload[OriginKey]; remote {
				continue
			}
			r.publish(eventType, payload)
		}
	}
}

func (r *Relay) publish(eventType events.EventType, payload events.Payload) {
	data, err := marshalNATSMessage(eventType, payload, r.cfg.NodeID)
	if err != nil {
		telemetry.EventsRelayedTotal.WithLabelValues(string(eventType), "error").Inc()
		r.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("marshal event")
		return
	}
	if err := r.conn.Publish(r.subject(eventType), data); err != nil {
		telemetry.EventsRelayedTotal.WithLabelValues(string(eventType), "error").Inc()
		r.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("publish event to NATS")
		return
	}
	telemetry.EventsRelayedTotal.WithLabelValues(string(eventType), "sent").Inc()
}

// deliver republishes a broker message on the local bus unless it came from
// this node or names an unknown event type.
func (r *Relay) deliver(data []byte) {
	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		r.logger.Warn().Err(err).Msg("discarding malformed NATS message")
		return
	}
	if msg.NodeID == r.cfg.NodeID || !events.Known(msg.EventType) {
		return
	}

	payload := make(events.Payload, len(msg.Payload)+1)
	for k, v := range msg.Payload {
		payload[k] = v
	}
	payload[OriginKey] = msg.NodeID

	telemetry.EventsRelayedTotal.WithLabelValues(string(msg.EventType), "received").Inc()
	r.bus.Publish(msg.EventType, payload)
}

func (r *Relay) subject(eventType events.EventType) string {
	return r.cfg.SubjectPrefix + "." + string(eventType)
}

// Close stops relaying and drains the NATS connection.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	for eventType, sub := range r.local {
		r.bus.Unsubscribe(eventType, sub)
		delete(r.local, eventType)
	}
	remote := r.remote
	r.remote = nil
	r.started = false
	r.mu.Unlock()

	r.wg.Wait()

	if remote != nil {
		_ = remote.Unsubscribe()
	}
	if r.conn != nil {
		if err := r.conn.Drain(); err != nil {
			r.conn.Close()
			return err
		}
	}
	return nil
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("unmarshal nats message: missing event_type")
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "homebake"
	}
	host = strings.ReplaceAll(host, ".", "-")
	return host + "-" + uuid.NewString()[:8]
}
