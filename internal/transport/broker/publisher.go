package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends composed replies to the channel layer.
type Publisher struct {
	open     func() (channel, error)
	exchange string
	now      model.Clock
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		open:     func() (channel, error) { return conn.Channel() },
		exchange: exchange,
		now:      time.Now,
	}, nil
}

func (p *Publisher) PublishOutbound(ctx context.Context, msg model.OutboundMessage) error {
	env, err := NewEnvelope(TypeMessageOutbound, msg.InReplyTo, msg, p.now())
	if err != nil {
		return err
	}
	return p.publish(ctx, TypeMessageOutbound, env)
}

func (p *Publisher) publish(ctx context.Context, key string, env Envelope) error {
	ch, err := p.open()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	cid := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: cid,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	logx.Ctx(ctx).Debug().Str("key", key).Str("exchange", p.exchange).Msg("published")
	return nil
}

var _ model.OutboundPublisher = (*Publisher)(nil)
