package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

// withState runs fn against the turn state of the current graph run.
func withState(ctx context.Context, fn func(s *model.TurnState) error) error {
	err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
		return fn(s)
	})
	if err != nil {
		return fmt.Errorf("turn state: %w", err)
	}
	return nil
}

// readState copies what fn picks out of the turn state.
func readState[T any](ctx context.Context, fn func(s *model.TurnState) T) (T, error) {
	var out T
	err := withState(ctx, func(s *model.TurnState) error {
		out = fn(s)
		return nil
	})
	return out, err
}
