package repo

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Migrations holds the goose migrations for PostgresStore.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectLead = `
SELECT id, customer_id, conversation_id, status, lead_score, qualification_profile,
       assigned_agent, COALESCE(last_qualification_at, created_at), created_at, updated_at
FROM leads WHERE conversation_id = $1`

func (p *PostgresStore) GetLead(ctx context.Context, conversationID string) (*model.Lead, error) {
	var (
		lead    model.Lead
		profile []byte
	)
	err := p.pool.QueryRow(ctx, selectLead, conversationID).Scan(
		&lead.ID, &lead.CustomerID, &lead.ConversationID, &lead.Status, &lead.Score, &profile,
		&lead.AssignedAgent, &lead.LastQualificationAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("lead", conversationID)
		}
		return nil, errx.WrapPostgres(err)
	}
	if err := json.Unmarshal(profile, &lead.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal qualification profile: %w", err)
	}
	return &lead, nil
}

const upsertLead = `
INSERT INTO leads (id, customer_id, conversation_id, status, lead_score, qualification_profile,
                   assigned_agent, last_qualification_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (conversation_id) DO UPDATE SET
    status                = CASE WHEN EXCLUDED.lead_score >= leads.lead_score THEN EXCLUDED.status ELSE leads.status END,
    lead_score            = GREATEST(leads.lead_score, EXCLUDED.lead_score),
    qualification_profile = EXCLUDED.qualification_profile,
    assigned_agent        = EXCLUDED.assigned_agent,
    last_qualification_at = EXCLUDED.last_qualification_at,
    updated_at            = EXCLUDED.updated_at`

func leadArgs(lead *model.Lead) ([]any, error) {
	profile, err := json.Marshal(lead.Profile)
	if err != nil {
		return nil, fmt.Errorf("marshal qualification profile: %w", err)
	}
	return []any{
		lead.ID, lead.CustomerID, lead.ConversationID, lead.Status, lead.Score, profile,
		lead.AssignedAgent, lead.LastQualificationAt, lead.CreatedAt, lead.UpdatedAt,
	}, nil
}

func (p *PostgresStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	args, err := leadArgs(lead)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, upsertLead, args...); err != nil {
		logx.Error().Err(err).Str("conversationID", lead.ConversationID).Msg("failed to save lead")
		return errx.WrapPostgres(err)
	}
	return nil
}

const selectState = `
SELECT conversation_id, phase, progress_context, agent_personality, meeting_requests, last_updated, created_at
FROM agent_states WHERE conversation_id = $1`

func (p *PostgresStore) GetState(ctx context.Context, conversationID string) (*model.AgentState, error) {
	var (
		st       model.AgentState
		phase    string
		progress []byte
	)
	err := p.pool.QueryRow(ctx, selectState, conversationID).Scan(
		&st.ConversationID, &phase, &progress, &st.AgentPersonality, &st.MeetingRequests, &st.LastUpdated, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("agent state", conversationID)
		}
		return nil, errx.WrapPostgres(err)
	}
	if st.Phase, err = phaseFromColumn(phase); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(progress, &st.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress context: %w", err)
	}
	return &st, nil
}

const upsertState = `
INSERT INTO agent_states (conversation_id, phase, progress_context, agent_personality, meeting_requests, last_updated, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (conversation_id) DO UPDATE SET
    phase             = EXCLUDED.phase,
    progress_context  = EXCLUDED.progress_context,
    agent_personality = EXCLUDED.agent_personality,
    meeting_requests  = EXCLUDED.meeting_requests,
    last_updated      = EXCLUDED.last_updated`

func stateArgs(st *model.AgentState) ([]any, error) {
	progress, err := json.Marshal(st.Progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress context: %w", err)
	}
	return []any{st.ConversationID, phaseColumn(st.Phase), progress, st.AgentPersonality, st.MeetingRequests, st.LastUpdated, st.CreatedAt}, nil
}

func (p *PostgresStore) SaveState(ctx context.Context, st *model.AgentState) error {
	args, err := stateArgs(st)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, upsertState, args...); err != nil {
		logx.Error().Err(err).Str("conversationID", st.ConversationID).Msg("failed to save agent state")
		return errx.WrapPostgres(err)
	}
	return nil
}

const (
	insertLeadIfAbsent = `
INSERT INTO leads (id, customer_id, conversation_id, status, lead_score, qualification_profile,
                   assigned_agent, last_qualification_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (conversation_id) DO NOTHING`

	insertStateIfAbsent = `
INSERT INTO agent_states (conversation_id, phase, progress_context, agent_personality, meeting_requests, last_updated, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (conversation_id) DO NOTHING`
)

func (p *PostgresStore) CreateConversation(ctx context.Context, lead *model.Lead, st *model.AgentState) (bool, error) {
	la, err := leadArgs(lead)
	if err != nil {
		return false, err
	}
	sa, err := stateArgs(st)
	if err != nil {
		return false, err
	}

	created := false
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertLeadIfAbsent, la...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, insertStateIfAbsent, sa...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errStateExists
		}
		created = true
		return nil
	})
	if errors.Is(err, errStateExists) {
		return false, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("conversationID", lead.ConversationID).Msg("failed to create conversation")
		return false, errx.WrapPostgres(err)
	}
	return created, nil
}

// errStateExists rolls back a lead insert whose state row already exists.
var errStateExists = errors.New("agent state already exists")

func (p *PostgresStore) AppendOutbound(ctx context.Context, msg *model.OutboundMessage) error {
	snippets, err := json.Marshal(msg.KnowledgeSnippets)
	if err != nil {
		return fmt.Errorf("marshal knowledge snippets: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO outbound_messages (id, conversation_id, in_reply_to, kind, phase, text, knowledge_snippets, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.ConversationID, msg.InReplyTo, msg.Kind, phaseColumn(msg.Phase), msg.Text, snippets, msg.CreatedAt)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", msg.ConversationID).Msg("failed to append outbound message")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (p *PostgresStore) ListOutbound(ctx context.Context, conversationID string) ([]model.OutboundMessage, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, conversation_id, COALESCE(in_reply_to, ''), kind, phase, text, knowledge_snippets, created_at
FROM outbound_messages WHERE conversation_id = $1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := []model.OutboundMessage{}
	for rows.Next() {
		var (
			m        model.OutboundMessage
			phase    string
			snippets []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.InReplyTo, &m.Kind, &phase, &m.Text, &snippets, &m.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		var err error
		if m.Phase, err = phaseFromColumn(phase); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snippets, &m.KnowledgeSnippets); err != nil {
			return nil, fmt.Errorf("unmarshal knowledge snippets: %w", err)
		}
		out = append(out, m)
	}
	return out, errx.WrapPostgres(rows.Err())
}

func (p *PostgresStore) SaveAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO appointments (id, lead_id, conversation_id, customer_id, external_event_id, meeting_link, title,
                          description, start_time, end_time, time_zone, status, attempt, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (lead_id, attempt) DO NOTHING`,
		a.ID, a.LeadID, a.ConversationID, a.CustomerID, a.ExternalEventID, a.MeetingLink, a.Title,
		a.Description, a.Start, a.End, a.TimeZone, a.Status, a.Attempt, a.CreatedAt)
	if err != nil {
		logx.Error().Err(err).Str("leadID", a.LeadID).Msg("failed to save appointment")
		return errx.WrapPostgres(err)
	}
	return nil
}

func (p *PostgresStore) ListAppointments(ctx context.Context, conversationID string) ([]model.Appointment, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, lead_id, conversation_id, customer_id, external_event_id, COALESCE(meeting_link, ''), title,
       description, start_time, end_time, time_zone, status, attempt, created_at
FROM appointments WHERE conversation_id = $1 ORDER BY created_at, attempt`, conversationID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.LeadID, &a.ConversationID, &a.CustomerID, &a.ExternalEventID, &a.MeetingLink, &a.Title,
			&a.Description, &a.Start, &a.End, &a.TimeZone, &a.Status, &a.Attempt, &a.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, a)
	}
	return out, errx.WrapPostgres(rows.Err())
}

var _ model.Store = (*PostgresStore)(nil)

// Phases are stored by name in TEXT columns.
func phaseColumn(p model.Phase) string {
	return p.String()
}

func phaseFromColumn(s string) (model.Phase, error) {
	p, err := model.ParsePhase(s)
	if err != nil {
		return model.PhaseGreeting, fmt.Errorf("read phase column: %w", err)
	}
	return p, nil
}
