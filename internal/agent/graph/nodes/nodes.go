package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/sync/errgroup"

	"github.com/Chative-lead-agent/server/internal/agent/composer"
	"github.com/Chative-lead-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/internal/agent/phase"
	"github.com/Chative-lead-agent/server/internal/agent/scoring"
	"github.com/Chative-lead-agent/server/internal/agent/signals"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// NewLoadPreHandler resets the turn state for a new inbound message.
func NewLoadPreHandler(now model.Clock) func(context.Context, model.InboundMessage, *model.TurnState) (model.InboundMessage, error) {
	return func(ctx context.Context, in model.InboundMessage, s *model.TurnState) (model.InboundMessage, error) {
		*s = model.TurnState{Inbound: in, Now: now().UTC()}
		if in.ArrivalTime.IsZero() {
			s.Inbound.ArrivalTime = s.Now
		}
		return s.Inbound, nil
	}
}

// NewLoadConversationNode loads or creates the lead and agent state.
func NewLoadConversationNode(mm *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.InboundMessage) (*model.Lead, error) {
		lead, state, created, err := mm.Load(ctx, in)
		if err != nil {
			return nil, err
		}
		err = withState(ctx, func(s *model.TurnState) error {
			s.Lead, s.State, s.Created = lead.Clone(), state.Clone(), created
			return nil
		})
		if err != nil {
			return nil, err
		}
		logx.Ctx(ctx).Debug().
			Bool("created", created).
			Int("lead_score", lead.Score).
			Str("phase", state.Phase.String()).
			Msg("conversation loaded")
		return lead, nil
	})
}

// NewGatherSignalsNode runs signal extraction and knowledge search side by side.
// Search is optional; its failures degrade to no snippets.
func NewGatherSignalsNode(extractor *signals.Extractor, search model.KnowledgeSearch, limit int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, lead *model.Lead) (model.Extraction, error) {
		text, err := readState(ctx, func(s *model.TurnState) string { return s.Inbound.Text })
		if err != nil {
			return model.Extraction{}, err
		}

		var (
			delta    model.Extraction
			snippets []model.KnowledgeSnippet
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			delta = extractor.Extract(gctx, text, lead.Profile)
			return nil
		})
		if search != nil {
			g.Go(func() error {
				started := time.Now()
				out, err := search.Search(gctx, text, limit)
				if err != nil {
					logx.Ctx(ctx).Warn().Err(err).
						Str("node", NodeGatherSignals).
						Dur("latency", time.Since(started)).
						Msg("knowledge search failed; continuing without context")
					return nil
				}
				snippets = out
				return nil
			})
		}
		_ = g.Wait()

		err = withState(ctx, func(s *model.TurnState) error {
			s.Extraction = delta
			s.Snippets = snippets
			return nil
		})
		return delta, err
	})
}

// NewScoreLeadNode merges the extraction into the lead, rescores and saves it.
func NewScoreLeadNode(store model.LeadRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, delta model.Extraction) (model.ScoreChange, error) {
		var (
			lead *model.Lead
			now  time.Time
		)
		err := withState(ctx, func(s *model.TurnState) error {
			lead, now = s.Lead.Clone(), s.Now
			return nil
		})
		if err != nil {
			return model.ScoreChange{}, err
		}

		change := scoring.Apply(lead, delta, now)
		if err := store.SaveLead(ctx, lead); err != nil {
			return model.ScoreChange{}, fmt.Errorf("save lead: %w", err)
		}

		err = withState(ctx, func(s *model.TurnState) error {
			s.Lead, s.Scoring = lead, change
			return nil
		})
		if err != nil {
			return model.ScoreChange{}, err
		}
		logx.Ctx(ctx).Info().
			Int("previous_score", change.Previous).
			Int("increment", change.Increment).
			Int("lead_score", change.Score).
			Str("status", string(change.Status)).
			Int("conditions", change.Conditions).
			Msg("lead scored")
		return change, nil
	})
}

// NewTransitionNode applies the phase policy to the rescored lead.
func NewTransitionNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, change model.ScoreChange) (model.Transition, error) {
		var in phase.Input
		err := withState(ctx, func(s *model.TurnState) error {
			in = phase.Input{
				Current:       s.State.Phase,
				Score:         change.Score,
				NewPainPoints: len(change.NewPainPoints),
				NewInterests:  len(change.NewInterests),
				Text:          s.Inbound.Text,
			}
			return nil
		})
		if err != nil {
			return model.Transition{}, err
		}

		t := phase.Next(in)
		if err := withState(ctx, func(s *model.TurnState) error { s.Transition = t; return nil }); err != nil {
			return model.Transition{}, err
		}
		logx.Ctx(ctx).Info().
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Str("action", string(t.Action)).
			Str("rule", t.Rule).
			Msg("phase evaluated")
		return t, nil
	})
}

// NewComposeReplyNode writes the reply for the post-transition phase.
func NewComposeReplyNode(c *composer.Composer, mm *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t model.Transition) (*model.OutboundMessage, error) {
		var (
			in    composer.Input
			inbox model.InboundMessage
		)
		err := withState(ctx, func(s *model.TurnState) error {
			inbox = s.Inbound
			state := s.State.Clone()
			state.Progress = composer.AdvanceProgress(state.Progress, s.Extraction)
			in = composer.Input{
				Phase:    t.To,
				Lead:     s.Lead.Clone(),
				State:    state,
				Text:     s.Inbound.Text,
				Snippets: s.Snippets,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		reply := c.Compose(ctx, in)
		msg := mm.NewOutbound(inbox, t.To, reply.Kind, reply.Text, reply.Snippets)
		if err := withState(ctx, func(s *model.TurnState) error { s.Outbound = msg; return nil }); err != nil {
			return nil, err
		}
		return msg, nil
	})
}

// NewPersistTurnNode saves the agent state, then the reply.
func NewPersistTurnNode(store model.StateRepository, mm *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *model.OutboundMessage) (*model.Turn, error) {
		var s model.TurnState
		err := withState(ctx, func(st *model.TurnState) error {
			s = *st
			return nil
		})
		if err != nil {
			return nil, err
		}

		state := s.State.Clone()
		state.Phase = s.Transition.To
		state.Progress = composer.AdvanceProgress(state.Progress, s.Extraction)
		state.LastUpdated = s.Now

		var meeting *model.MeetingRequested
		if s.Transition.Action == model.ActionScheduleMeeting {
			state.MeetingRequests++
			meeting = &model.MeetingRequested{
				LeadID:         s.Lead.ID,
				ConversationID: s.Lead.ConversationID,
				CustomerID:     s.Lead.CustomerID,
				CustomerName:   s.Inbound.CustomerName,
				CustomerEmail:  s.Inbound.CustomerEmail,
				Attempt:        state.MeetingRequests,
				Score:          s.Lead.Score,
				Profile:        s.Lead.Profile,
				RequestedAt:    s.Now,
			}
		}

		if err := store.SaveState(ctx, state); err != nil {
			return nil, fmt.Errorf("save agent state: %w", err)
		}
		if err := mm.SaveReply(ctx, msg); err != nil {
			return nil, err
		}

		turn := &model.Turn{
			ConversationID: s.Inbound.ConversationID,
			Lead:           s.Lead,
			State:          state,
			Created:        s.Created,
			Extraction:     s.Extraction,
			Scoring:        s.Scoring,
			Transition:     s.Transition,
			Outbound:       msg,
			Meeting:        meeting,
			CostUSD:        s.TotalCostUSD,
		}
		err = withState(ctx, func(st *model.TurnState) error {
			st.State, st.Meeting = state, meeting
			return nil
		})
		return turn, err
	})
}

// NewMeetingCondition routes turns that asked for a meeting to the publisher.
func NewMeetingCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, turn *model.Turn) (string, error) {
		if turn != nil && turn.Meeting != nil {
			return NodeRequestMeeting, nil
		}
		return compose.END, nil
	}
}

// NewRequestMeetingNode hands the MeetingRequested event over. The reply has
// already been sent, so a publish failure does not fail the turn.
func NewRequestMeetingNode(publisher model.MeetingPublisher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, turn *model.Turn) (*model.Turn, error) {
		log := logx.Ctx(ctx)
		evt := *turn.Meeting
		if publisher == nil {
			log.Info().Str("lead_id", evt.LeadID).Int("attempt", evt.Attempt).Msg("no meeting publisher; request dropped")
			return turn, nil
		}
		if err := publisher.PublishMeetingRequested(ctx, evt); err != nil {
			log.Error().Err(err).Str("lead_id", evt.LeadID).Int("attempt", evt.Attempt).Msg("failed to publish meeting request")
			return turn, nil
		}
		log.Info().Str("lead_id", evt.LeadID).Int("attempt", evt.Attempt).Msg("meeting requested")
		return turn, nil
	})
}
