// Package broker carries conversation traffic over RabbitMQ.
package broker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeMessageReceived = "conversation.message.received"
	TypeMessageOutbound = "conversation.message.outbound"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlationId,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps every event on the exchange.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope marshals data under a fresh id. correlationID may be empty.
func NewEnvelope(typ, correlationID string, data any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		Meta: Meta{ID: uuid.NewString(), Time: now.UTC(), Type: typ},
		Data: raw,
	}
	if correlationID != "" {
		env.Meta.CorrelationID = &correlationID
	}
	return env, nil
}

type Config struct {
	URL         string `envconfig:"AMQP_URL"`
	Exchange    string `envconfig:"AMQP_EXCHANGE" default:"leads"`
	IntakeQueue string `envconfig:"AMQP_INTAKE_QUEUE" default:"lead-agent.intake"`
	Prefetch    int    `envconfig:"AMQP_PREFETCH" default:"10"`
	Workers     int    `envconfig:"AMQP_WORKERS" default:"4"`
}

func (c Config) Enabled() bool { return c.URL != "" }
