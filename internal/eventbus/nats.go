/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/telemetry"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "expo.events",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus publishes every local event to NATS as well, so other displays and
// dashboards can follow one synchronizer instead of polling the schedule themselves.
// Without a reachable server it degrades to the local bus.
type NATSBus struct {
	conn   *nats.Conn
	local  *events.Bus
	logger zerolog.Logger
	prefix string
	nodeID string

	mu      sync.Mutex
	mirrors map[events.EventType]*nats.Subscription
}

// NewNATSBus connects to NATS. A failed connection is logged and the bus
// keeps working in-process only.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) *NATSBus {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}
	nb := &NATSBus{
		local:   local,
		logger:  logger.With().Str("component", "eventbus").Logger(),
		prefix:  cfg.SubjectPrefix,
		nodeID:  uuid.New().String(),
		mirrors: make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("expo-display-" + nb.nodeID[:8]),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS unavailable, using in-memory event bus only")
		return nb
	}
	nb.conn = conn
	nb.logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nb.nodeID).Msg("NATS event bus connected")
	return nb
}

// NodeID identifies this process in published messages.
func (nb *NATSBus) NodeID() string { return nb.nodeID }

// Connected reports whether remote publishing is active.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Subscribe registers a local subscriber.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Publish delivers locally and then to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal NATS message")
		telemetry.EventBusPublishedTotal.WithLabelValues(string(eventType), "marshal_error").Inc()
		return
	}
	if err := nb.conn.Publish(nb.subject(eventType), data); err != nil {
		nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		telemetry.EventBusPublishedTotal.WithLabelValues(string(eventType), "error").Inc()
		return
	}
	telemetry.EventBusPublishedTotal.WithLabelValues(string(eventType), "ok").Inc()
}

// Mirror relays events published by other nodes into the local bus.
func (nb *NATSBus) Mirror(eventType events.EventType) error {
	if nb.conn == nil {
		return fmt.Errorf("mirror %s: NATS not connected", eventType)
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, ok := nb.mirrors[eventType]; ok {
		return nil
	}

	sub, err := nb.conn.Subscribe(nb.subject(eventType), func(m *nats.Msg) {
		msg, err := unmarshalNATSMessage(m.Data)
		if err != nil {
			nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
			return
		}
		if msg.NodeID == nb.nodeID {
			return
		}
		payload := msg.Payload
		if payload == nil {
			payload = events.Payload{}
		}
		payload["source_node"] = msg.NodeID
		nb.local.Publish(msg.EventType, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	nb.mirrors[eventType] = sub
	nb.logger.Debug().Str("event_type", string(eventType)).Msg("mirroring remote events")
	return nil
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	nb.mu.Lock()
	for eventType, sub := range nb.mirrors {
		if err := sub.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("failed to unsubscribe mirror")
		}
	}
	nb.mirrors = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	if err := nb.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

func (nb *NATSBus) subject(eventType events.EventType) string {
	return nb.prefix + "." + strings.ReplaceAll(string(eventType), ".", "_")
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// marshalNATSMessage converts payload to NATS message format.
func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.New().String(),
	}
	return json.Marshal(msg)
}

// unmarshalNATSMessage parses a NATS message.
func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}
