package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Dispatcher accepts inbound messages for processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, in model.InboundMessage) error
}

// turnRetries only covers lock contention; other failures skip retry.
const turnRetries = 3

type Client struct {
	client *asynq.Client
	cfg    model.DispatchConfig
}

func NewClient(redisURL string, cfg model.DispatchConfig) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	return &Client{client: asynq.NewClient(opt), cfg: cfg}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Dispatch enqueues a turn. Redelivered messages with a known id are dropped.
func (c *Client) Dispatch(ctx context.Context, in model.InboundMessage) error {
	task, err := NewTurnTask(in)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(c.cfg.Queue),
		asynq.ProcessIn(c.cfg.TurnDelay),
		asynq.MaxRetry(turnRetries),
	}
	if c.cfg.TurnTimeout > 0 {
		opts = append(opts, asynq.Timeout(c.cfg.TurnTimeout))
	}
	if c.cfg.DedupeByMessage && in.MessageID != "" {
		opts = append(opts, asynq.TaskID(fmt.Sprintf("turn:%s:%s", in.ConversationID, in.MessageID)))
	}
	return c.enqueue(ctx, task, opts...)
}

// PublishMeetingRequested enqueues the booking. Each (lead, attempt) is enqueued once.
func (c *Client) PublishMeetingRequested(ctx context.Context, evt model.MeetingRequested) error {
	task, err := NewMeetingRequestedTask(evt)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.Queue(c.cfg.Queue),
		asynq.MaxRetry(c.cfg.MeetingMaxRetry),
		asynq.TaskID("meeting:"+evt.Key()),
	)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logx.Ctx(ctx).Debug().Str("task", task.Type()).Msg("duplicate task ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	logx.Ctx(ctx).Debug().Str("task", task.Type()).Str("task_id", info.ID).Str("queue", info.Queue).Msg("task enqueued")
	return nil
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

var (
	_ Dispatcher             = (*Client)(nil)
	_ model.MeetingPublisher = (*Client)(nil)
)
