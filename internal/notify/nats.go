package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DecisionEvent is the JSON payload published when a terminal decision is
// recorded. Consumers include the audit collector and the email notifier.
type DecisionEvent struct {
	EventID     string    `json:"event_id"`
	CandidateID string    `json:"candidate_id"`
	Decision    string    `json:"decision"`
	Actor       string    `json:"actor"`
	Company     string    `json:"company,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// Publisher publishes terminal-decision events to NATS.
//
// Subject convention: notifications.fairchance.<decision>
//
// All publishes are fire-and-forget: errors are logged but never propagated,
// so a broker outage never blocks recording a decision.
type Publisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewPublisher connects to NATS at url. An empty url yields a disabled
// publisher whose methods are no-ops.
func NewPublisher(url string, log zerolog.Logger) (*Publisher, error) {
	if url == "" {
		return &Publisher{log: log}, nil
	}
	conn, err := nats.Connect(url, nats.Name("fairchance-api"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, log: log}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishDecision emits one decision event. Failure is logged and swallowed.
func (p *Publisher) PublishDecision(ctx context.Context, event DecisionEvent) {
	if p.conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("decision", event.Decision).Msg("notify: failed to marshal decision event")
		return
	}

	subject := fmt.Sprintf("notifications.fairchance.%s", event.Decision)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("candidate_id", event.CandidateID).
			Msg("notify: failed to publish decision event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("candidate_id", event.CandidateID).
		Msg("notify: decision event published")
}
