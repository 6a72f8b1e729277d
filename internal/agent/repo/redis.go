package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

const maxTxRetries = 5

type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) leadKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:lead", conversationID)
}

func (r *RedisStore) stateKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:state", conversationID)
}

func (r *RedisStore) outboundKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:outbound", conversationID)
}

func (r *RedisStore) appointmentsKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:appointments", conversationID)
}

func notFound(what, conversationID string) error {
	return errx.New(errx.ErrNotFound, http.StatusNotFound, fmt.Sprintf("%s not found for conversation %s", what, conversationID))
}

func (r *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal record")
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) GetLead(ctx context.Context, conversationID string) (*model.Lead, error) {
	var lead model.Lead
	if err := r.getJSON(ctx, r.leadKey(conversationID), &lead); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("lead", conversationID)
		}
		return nil, errx.WrapRedis(err)
	}
	return &lead, nil
}

// SaveLead keeps the stored score when it is higher than the incoming one.
func (r *RedisStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	key := r.leadKey(lead.ConversationID)
	txf := func(tx *redis.Tx) error {
		toSave := lead
		var stored model.Lead
		b, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(b, &stored); err == nil && stored.Score > lead.Score {
				toSave = lead.Clone()
				toSave.Score = stored.Score
				toSave.Status = stored.Status
			}
		}
		payload, err := json.Marshal(toSave)
		if err != nil {
			return fmt.Errorf("marshal lead: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to save lead")
			return errx.WrapRedis(err)
		}
		return nil
	}
	return errx.WrapRedis(fmt.Errorf("save lead %s: %w", lead.ConversationID, redis.TxFailedErr))
}

func (r *RedisStore) GetState(ctx context.Context, conversationID string) (*model.AgentState, error) {
	var st model.AgentState
	if err := r.getJSON(ctx, r.stateKey(conversationID), &st); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("agent state", conversationID)
		}
		return nil, errx.WrapRedis(err)
	}
	return &st, nil
}

func (r *RedisStore) SaveState(ctx context.Context, state *model.AgentState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	key := r.stateKey(state.ConversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save agent state")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) CreateConversation(ctx context.Context, lead *model.Lead, state *model.AgentState) (bool, error) {
	leadBytes, err := json.Marshal(lead)
	if err != nil {
		return false, fmt.Errorf("marshal lead: %w", err)
	}
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("marshal state: %w", err)
	}
	leadKey, stateKey := r.leadKey(lead.ConversationID), r.stateKey(state.ConversationID)

	created := false
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, leadKey, stateKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, leadKey, leadBytes, r.ttl)
			pipe.Set(ctx, stateKey, stateBytes, r.ttl)
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}, leadKey, stateKey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("conversationID", lead.ConversationID).Msg("failed to create conversation")
		return false, errx.WrapRedis(err)
	}
	return created, nil
}

func (r *RedisStore) rpush(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL")
		}
	}
	return nil
}

func lrange[T any](ctx context.Context, rdb redis.Cmdable, key string) ([]T, error) {
	rows, err := rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to read list from redis")
		return nil, errx.WrapRedis(err)
	}
	out := make([]T, 0, len(rows))
	for i, s := range rows {
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s at index %d: %w", key, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *RedisStore) AppendOutbound(ctx context.Context, msg *model.OutboundMessage) error {
	return r.rpush(ctx, r.outboundKey(msg.ConversationID), msg)
}

func (r *RedisStore) ListOutbound(ctx context.Context, conversationID string) ([]model.OutboundMessage, error) {
	return lrange[model.OutboundMessage](ctx, r.rdb, r.outboundKey(conversationID))
}

func (r *RedisStore) SaveAppointment(ctx context.Context, appt *model.Appointment) error {
	return r.rpush(ctx, r.appointmentsKey(appt.ConversationID), appt)
}

func (r *RedisStore) ListAppointments(ctx context.Context, conversationID string) ([]model.Appointment, error) {
	return lrange[model.Appointment](ctx, r.rdb, r.appointmentsKey(conversationID))
}

var _ model.Store = (*RedisStore)(nil)
