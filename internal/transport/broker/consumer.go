package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/internal/dispatch"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

const handleTimeout = 30 * time.Second

// Intake consumes customer messages and hands them to the dispatcher.
type Intake struct {
	dispatcher dispatch.Dispatcher
	val        *validator.Validate
	now        model.Clock
}

func NewIntake(d dispatch.Dispatcher) *Intake {
	return &Intake{dispatcher: d, val: validator.New(), now: time.Now}
}

// Handle acks accepted deliveries. Undecodable or invalid messages are dropped
// without requeue; dispatch failures are requeued.
func (i *Intake) Handle(ctx context.Context, d amqp.Delivery) {
	in, err := i.decode(d)
	if err != nil {
		logx.Ctx(ctx).Warn().Err(err).Str("message_id", d.MessageId).Msg("poison message dropped")
		_ = d.Nack(false, false)
		return
	}

	ctx = logx.WithConversation(ctx, in.ConversationID)
	if err := i.dispatcher.Dispatch(ctx, in); err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("message_id", in.MessageID).Msg("dispatch failed; requeueing")
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (i *Intake) decode(d amqp.Delivery) (model.InboundMessage, error) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return model.InboundMessage{}, fmt.Errorf("decode envelope: %w", err)
	}
	var in model.InboundMessage
	if err := json.Unmarshal(env.Data, &in); err != nil {
		return model.InboundMessage{}, fmt.Errorf("decode inbound message: %w", err)
	}
	in.Text = strings.TrimSpace(in.Text)
	if in.MessageID == "" {
		in.MessageID = env.Meta.ID
	}
	if in.ArrivalTime.IsZero() {
		in.ArrivalTime = env.Meta.Time
	}
	if in.ArrivalTime.IsZero() {
		in.ArrivalTime = i.now().UTC()
	}
	if err := i.val.Struct(in); err != nil {
		return model.InboundMessage{}, fmt.Errorf("validate inbound message: %w", err)
	}
	return in, nil
}

// Consume binds the intake queue and runs workers until ctx is done.
func Consume(ctx context.Context, conn *amqp.Connection, cfg Config, intake *Intake) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(cfg.IntakeQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, TypeMessageReceived, cfg.Exchange, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	logx.Info().Str("queue", q.Name).Msg("intake consumer started")

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					hctx, cancel := context.WithTimeout(ctx, handleTimeout)
					intake.Handle(hctx, d)
					cancel()
				}
			}
		}()
	}
	wg.Wait()
	return nil
}
