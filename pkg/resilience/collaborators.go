package resilience

import (
	"context"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

type guardedCompletion struct {
	next  model.TextCompletion
	guard *Guard
}

// GuardCompletion protects a TextCompletion.
func GuardCompletion(next model.TextCompletion, g *Guard) model.TextCompletion {
	return &guardedCompletion{next: next, guard: g}
}

func (c *guardedCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	return Call(ctx, c.guard, func(ctx context.Context) (string, error) {
		return c.next.Complete(ctx, system, user)
	})
}

type guardedSearch struct {
	next  model.KnowledgeSearch
	guard *Guard
}

// GuardSearch protects a KnowledgeSearch.
func GuardSearch(next model.KnowledgeSearch, g *Guard) model.KnowledgeSearch {
	return &guardedSearch{next: next, guard: g}
}

func (s *guardedSearch) Search(ctx context.Context, query string, limit int) ([]model.KnowledgeSnippet, error) {
	return Call(ctx, s.guard, func(ctx context.Context) ([]model.KnowledgeSnippet, error) {
		return s.next.Search(ctx, query, limit)
	})
}

type guardedBooking struct {
	next  model.CalendarBooking
	guard *Guard
}

// GuardBooking protects a CalendarBooking.
func GuardBooking(next model.CalendarBooking, g *Guard) model.CalendarBooking {
	return &guardedBooking{next: next, guard: g}
}

func (b *guardedBooking) CreateEvent(ctx context.Context, req model.MeetingRequest) (model.BookingResult, error) {
	return Call(ctx, b.guard, func(ctx context.Context) (model.BookingResult, error) {
		return b.next.CreateEvent(ctx, req)
	})
}
