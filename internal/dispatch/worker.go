package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// TurnRunner processes one inbound message.
type TurnRunner interface {
	Invoke(ctx context.Context, in model.InboundMessage) (*model.Turn, error)
}

// MeetingHandler books the meeting behind a MeetingRequested event.
type MeetingHandler interface {
	Handle(ctx context.Context, evt model.MeetingRequested) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	runner   TurnRunner
	meetings MeetingHandler
}

func NewWorker(redisURL string, cfg model.DispatchConfig, runner TurnRunner, meetings MeetingHandler) (*Worker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{server: server, mux: asynq.NewServeMux(), runner: runner, meetings: meetings}
	w.register()
	return w, nil
}

func (w *Worker) register() {
	w.mux.HandleFunc(TaskTurn, w.handleTurn)
	w.mux.HandleFunc(TaskMeetingRequested, w.handleMeetingRequested)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		logx.Error().Err(err).Msg("dispatch worker stopped")
	}
}

func (w *Worker) handleTurn(ctx context.Context, task *asynq.Task) error {
	in, err := ParseTurnPayload(task)
	if err != nil {
		return fmt.Errorf("decode turn: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := w.runner.Invoke(ctx, in); err != nil {
		if errors.Is(err, errx.ErrLockNotAcquired) {
			return err
		}
		// the customer already got an apology
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (w *Worker) handleMeetingRequested(ctx context.Context, task *asynq.Task) error {
	evt, err := ParseMeetingRequestedPayload(task)
	if err != nil {
		return fmt.Errorf("decode meeting request: %v: %w", err, asynq.SkipRetry)
	}
	if w.meetings == nil {
		return nil
	}
	return w.meetings.Handle(ctx, evt)
}

// Inline runs turns in the caller's goroutine after Delay. Used when no queue
// is configured.
type Inline struct {
	Runner TurnRunner
	Delay  time.Duration
}

func (d Inline) Dispatch(ctx context.Context, in model.InboundMessage) error {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	_, err := d.Runner.Invoke(ctx, in)
	return err
}

var _ Dispatcher = Inline{}
