// Package transport provides the NATS-backed event bus used when the
// server runs alongside other processes. Envelopes travel as JSON on
// subjects derived from their session id and kind.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
)

// subjectRoot prefixes every subject this bus touches.
const subjectRoot = "setarena"

// NATSBus implements events.Bus over a NATS connection. Per-connection
// publish ordering is preserved, which the session engine relies on.
type NATSBus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials the NATS server at url.
//
// Precondition: url must be non-empty; logger must be non-nil.
func Connect(url string, logger *zap.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(url, nats.Name("setarena"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %q: %w", url, err)
	}
	return &NATSBus{conn: conn, logger: logger}, nil
}

// Publish sends the envelope on its derived subject.
func (b *NATSBus) Publish(env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}
	if err := b.conn.Publish(SubjectFor(env), data); err != nil {
		return fmt.Errorf("publishing %s: %w", env.Kind, err)
	}
	return nil
}

// Subscribe delivers every envelope published under the subject root.
// Returns an idempotent unsubscribe handle.
func (b *NATSBus) Subscribe(fn events.Handler) (func(), error) {
	sub, err := b.conn.Subscribe(subjectRoot+".>", func(m *nats.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			b.logger.Warn("dropping malformed envelope",
				zap.String("subject", m.Subject),
				zap.Error(err),
			)
			return
		}
		fn(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s.>: %w", subjectRoot, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains the connection, letting in-flight messages finish.
func (b *NATSBus) Close() {
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("draining NATS connection", zap.Error(err))
	}
}

// SubjectFor maps an envelope to its NATS subject:
// "setarena.game.<id>.<kind>". Colons in registry-wide kinds are replaced
// with dashes to keep subjects token-safe.
func SubjectFor(env events.Envelope) string {
	kind := strings.ReplaceAll(string(env.Kind), ":", "-")
	return fmt.Sprintf("%s.game.%d.%s", subjectRoot, env.SessionID, kind)
}
