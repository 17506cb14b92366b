// Package events announces finished casts to interested subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when none is configured.
const DefaultSubject = "castkeeper.cast.created"

// CastCreated is published once both artifacts of a cast are on disk.
type CastCreated struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	FeaturePath   string    `json:"feature_path"`
	EpisodeNumber int       `json:"episode_number"`
	AgentName     string    `json:"agent_name"`
	ScriptPath    string    `json:"script_path"`
	AudioPath     string    `json:"audio_path"`
	AudioBytes    int64     `json:"audio_bytes"`
	ElapsedMillis int64     `json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Publisher delivers cast events.
type Publisher interface {
	CastCreated(ctx context.Context, ev CastCreated) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// CastCreated implements Publisher.
func (Nop) CastCreated(context.Context, CastCreated) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATSPublisher publishes JSON events on a core NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials url. An empty subject uses DefaultSubject.
func Connect(url, subject string) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("events: nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("castkeeper"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}
	return NewNATSPublisher(conn, subject), nil
}

// NewNATSPublisher wraps an existing connection. The publisher takes
// ownership of conn.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// CastCreated publishes ev and waits for the server to acknowledge the
// flush.
func (p *NATSPublisher) CastCreated(ctx context.Context, ev CastCreated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal cast event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish cast event: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush cast event: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("events: drain: %w", err)
	}
	return nil
}
