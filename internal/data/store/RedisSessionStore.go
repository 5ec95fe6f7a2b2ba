package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// RedisSessionStore keeps a meta key and a turn list per session, both expiring after ttl.
type RedisSessionStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func GetRedisSessionStore(ctx context.Context, opts redisStore.Options, ttl time.Duration) (*RedisSessionStore, error) {
	s, err := redisStore.GetRedisStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewRedisSessionStore(s, ttl), nil
}

func NewRedisSessionStore(s *redisStore.Store, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		store:  s,
		ttl:    ttl,
		logger: logger_i.NewLogger("SessionStore"),
	}
}

func metaKey(id string) string  { return "docqa:session:" + id }
func turnsKey(id string) string { return "docqa:session:" + id + ":turns" }

func (s *RedisSessionStore) Create(ctx context.Context, session chatModel.Session) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "sessionId", session.Id)
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.store.Del(ctx, turnsKey(session.Id)); err != nil {
		return err
	}
	if err := s.store.Set(ctx, metaKey(session.Id), data, s.ttl); err != nil {
		log.Error("error creating session", "error", err)
		return err
	}
	log.Debug("session created in Redis")
	return nil
}

func (s *RedisSessionStore) Exists(ctx context.Context, sessionId string) (bool, error) {
	found, err := s.store.Exists(ctx, metaKey(sessionId))
	if s.store.IsNil(err) {
		return false, nil
	}
	return found, err
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionId string, turn chatModel.ConversationTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "sessionId", sessionId)
	found, err := s.Exists(ctx, sessionId)
	if err != nil {
		return err
	}
	if !found {
		return chatModel.ErrSessionNotFound
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := s.store.ListPushWithTTL(ctx, turnsKey(sessionId), data, s.ttl, metaKey(sessionId)); err != nil {
		log.Error("error saving turn", "error", err)
		return err
	}
	log.Debug("saved turn", "role", turn.Role)
	return nil
}

func (s *RedisSessionStore) History(ctx context.Context, sessionId string, limit int) ([]chatModel.ConversationTurn, error) {
	found, err := s.Exists(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, chatModel.ErrSessionNotFound
	}
	raw, err := s.store.ListGetLast(ctx, turnsKey(sessionId), limit)
	if err != nil && !s.store.IsNil(err) {
		return nil, err
	}
	turns := make([]chatModel.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn chatModel.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn of session %s: %w", sessionId, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionId string) error {
	err := s.store.Del(ctx, metaKey(sessionId), turnsKey(sessionId))
	if err != nil {
		s.logger.Error("error deleting session from Redis", "sessionId", sessionId, "error", err)
		return err
	}
	s.logger.Debug("session deleted from Redis", "sessionId", sessionId)
	return nil
}
