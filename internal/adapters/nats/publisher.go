package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
)

const (
	validationSubjectPrefix    = "geofence.validation."
	targetChangedSubjectPrefix = "geofence.targets.changed."
)

// Streams used by the proximity engine.
var streams = []nats.StreamConfig{
	{
		Name:      "PROXIMITY_VALIDATIONS",
		Subjects:  []string{validationSubjectPrefix + ">"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "TARGET_CHANGES",
		Subjects:  []string{targetChangedSubjectPrefix + "*"},
		Retention: nats.InterestPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

// Publisher implements ports.ValidationPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

var _ ports.ValidationPublisher = (*Publisher)(nil)

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamManager) error {
	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// ValidationSubject returns the subject a validation for targetID is published on.
// The outcome is part of the subject so consumers can filter on valid results only.
func ValidationSubject(targetID string, valid bool) string {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	return validationSubjectPrefix + outcome + "." + subjectToken(targetID)
}

// TargetChangedSubject returns the subject announcing a change to targetID.
func TargetChangedSubject(targetID string) string {
	return targetChangedSubjectPrefix + subjectToken(targetID)
}

// subjectToken makes an id safe to use as a single NATS subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// PublishValidation publishes a validation result for the game logic consumer.
func (p *Publisher) PublishValidation(ctx context.Context, result *domain.ValidationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ValidationSubject(result.Target.ID, result.Valid), data, nats.Context(ctx))
	return err
}

// PublishTargetChanged announces that a target was created, updated or removed.
func (p *Publisher) PublishTargetChanged(ctx context.Context, targetID string) error {
	_, err := p.js.Publish(TargetChangedSubject(targetID), []byte(targetID), nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
