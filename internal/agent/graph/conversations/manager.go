package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Manager owns the per-conversation records a turn reads and writes.
type Manager struct {
	store     model.Store
	publisher model.OutboundPublisher
	now       model.Clock
}

// NewManager builds a Manager. publisher may be nil.
func NewManager(store model.Store, publisher model.OutboundPublisher, now model.Clock) *Manager {
	return &Manager{store: store, publisher: publisher, now: now}
}

func (m *Manager) Now() time.Time { return m.now().UTC() }

// Load returns the lead and agent state of a conversation, creating both when
// neither exists. A conversation with only one of the two is broken and reported
// with ErrMissingLead or ErrMissingState.
func (m *Manager) Load(ctx context.Context, in model.InboundMessage) (*model.Lead, *model.AgentState, bool, error) {
	lead, state, err := m.get(ctx, in.ConversationID)
	switch {
	case err != nil:
		return nil, nil, false, err
	case lead != nil && state != nil:
		return lead, state, false, nil
	case lead != nil:
		return nil, nil, false, fmt.Errorf("conversation %s: %w", in.ConversationID, errx.ErrMissingState)
	case state != nil:
		return nil, nil, false, fmt.Errorf("conversation %s: %w", in.ConversationID, errx.ErrMissingLead)
	}

	lead, state = m.newConversation(in)
	created, err := m.store.CreateConversation(ctx, lead, state)
	if err != nil {
		return nil, nil, false, err
	}
	if created {
		logx.Ctx(ctx).Info().Str("lead_id", lead.ID).Msg("conversation created")
		return lead, state, true, nil
	}

	// Another writer won the race; use what it stored.
	lead, state, err = m.get(ctx, in.ConversationID)
	if err != nil {
		return nil, nil, false, err
	}
	if lead == nil {
		return nil, nil, false, fmt.Errorf("conversation %s: %w", in.ConversationID, errx.ErrMissingLead)
	}
	if state == nil {
		return nil, nil, false, fmt.Errorf("conversation %s: %w", in.ConversationID, errx.ErrMissingState)
	}
	return lead, state, false, nil
}

func (m *Manager) get(ctx context.Context, conversationID string) (*model.Lead, *model.AgentState, error) {
	lead, err := m.store.GetLead(ctx, conversationID)
	if err != nil && !errors.Is(err, errx.ErrNotFound) {
		return nil, nil, err
	}
	state, err := m.store.GetState(ctx, conversationID)
	if err != nil && !errors.Is(err, errx.ErrNotFound) {
		return nil, nil, err
	}
	return lead, state, nil
}

func (m *Manager) newConversation(in model.InboundMessage) (*model.Lead, *model.AgentState) {
	now := m.Now()
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		customerID = in.ConversationID
	}
	lead := &model.Lead{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		ConversationID: in.ConversationID,
		Status:         model.LeadStatusProspect,
		Profile: model.QualificationProfile{
			PainPoints: model.Set{},
			Interests:  model.Set{},
		},
		AssignedAgent:       model.SystemAgent,
		LastQualificationAt: now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	state := &model.AgentState{
		ConversationID: in.ConversationID,
		Phase:          model.PhaseGreeting,
		Progress: model.ProgressContext{
			ObjectionsRaised:     model.Set{},
			PainPointsIdentified: model.Set{},
			InterestsExpressed:   model.Set{},
		},
		AgentPersonality: model.DefaultPersonality,
		LastUpdated:      now,
		CreatedAt:        now,
	}
	return lead, state
}

// NewOutbound builds the outbound record answering in.
func (m *Manager) NewOutbound(in model.InboundMessage, phase model.Phase, kind model.OutboundKind, text string, snippets []model.KnowledgeSnippet) *model.OutboundMessage {
	if snippets == nil {
		snippets = []model.KnowledgeSnippet{}
	}
	return &model.OutboundMessage{
		ID:                uuid.NewString(),
		ConversationID:    in.ConversationID,
		InReplyTo:         in.MessageID,
		Kind:              kind,
		Phase:             phase,
		Text:              text,
		KnowledgeSnippets: snippets,
		CreatedAt:         m.Now(),
	}
}

// SaveReply appends msg to the outbound log and hands it to the channel layer.
// A publish failure is logged; the stored reply stays authoritative.
func (m *Manager) SaveReply(ctx context.Context, msg *model.OutboundMessage) error {
	if err := m.store.AppendOutbound(ctx, msg); err != nil {
		return fmt.Errorf("append outbound: %w", err)
	}
	if m.publisher == nil {
		return nil
	}
	if err := m.publisher.PublishOutbound(ctx, *msg); err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("failed to publish outbound message")
	}
	return nil
}

// Apologize records the apology sent when a turn aborts. The phase is the
// stored one when it can still be read.
func (m *Manager) Apologize(ctx context.Context, in model.InboundMessage) *model.OutboundMessage {
	phase := model.PhaseGreeting
	if st, err := m.store.GetState(ctx, in.ConversationID); err == nil && st != nil {
		phase = st.Phase
	}
	msg := m.NewOutbound(in, phase, model.OutboundApology, model.ApologyReply, nil)
	if err := m.SaveReply(ctx, msg); err != nil {
		logx.Ctx(ctx).Error().Err(err).Msg("failed to store apology")
	}
	return msg
}
