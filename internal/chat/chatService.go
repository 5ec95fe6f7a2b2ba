package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
)

// Answerer is the part of rag.Pipeline a conversation needs.
type Answerer interface {
	Ask(ctx context.Context, question string) (rag.Answer, error)
}

type Service struct {
	pipeline     Answerer
	store        chatModel.SessionStore
	historyLimit int

	locksMu sync.Mutex
	locks   map[string]*sessionLock
	logger  *logger_i.Logger
}

// sessionLock is dropped from the map once nobody holds or waits for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type ServiceConfig struct {
	Pipeline     Answerer
	Store        chatModel.SessionStore
	HistoryLimit int
}

type Reply struct {
	SessionId string
	Answer    string
	Sources   []commonModels.Match
}

func InitChatService(cfg ServiceConfig) *Service {
	return &Service{
		pipeline:     cfg.Pipeline,
		store:        cfg.Store,
		historyLimit: cfg.HistoryLimit,
		locks:        make(map[string]*sessionLock),
		logger:       logger_i.NewLogger("ChatService"),
	}
}

func (s *Service) StartSession(ctx context.Context) (chatModel.Session, error) {
	session := chatModel.Session{Id: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := s.store.Create(ctx, session); err != nil {
		return chatModel.Session{}, err
	}
	s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Info("session started", "sessionId", session.Id)
	return session, nil
}

// Ask answers text inside a session, starting one when sessionId is empty.
// The user turn is stored on receipt; the assistant turn only when an answer came back.
func (s *Service) Ask(ctx context.Context, sessionId string, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ragErrors.ErrEmptyQuestion
	}
	if sessionId == "" {
		session, err := s.StartSession(ctx)
		if err != nil {
			return Reply{}, err
		}
		sessionId = session.Id
	} else {
		exists, err := s.store.Exists(ctx, sessionId)
		if err != nil {
			return Reply{}, err
		}
		if !exists {
			return Reply{}, chatModel.ErrSessionNotFound
		}
	}
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "sessionId", sessionId)

	lock := s.acquire(sessionId)
	defer s.release(sessionId, lock)

	userTurn := chatModel.ConversationTurn{Role: chatModel.RoleUser, Text: text, CreatedAt: time.Now().UTC()}
	if err := s.store.Append(ctx, sessionId, userTurn); err != nil {
		return Reply{SessionId: sessionId}, err
	}

	answer, err := s.pipeline.Ask(ctx, text)
	if err != nil {
		loggr.Error("answer failed", "kind", ragErrors.KindOf(err), "error", err)
		return Reply{SessionId: sessionId}, err
	}

	assistantTurn := chatModel.ConversationTurn{Role: chatModel.RoleAssistant, Text: answer.Text, CreatedAt: time.Now().UTC()}
	if err := s.store.Append(ctx, sessionId, assistantTurn); err != nil {
		return Reply{SessionId: sessionId}, err
	}
	loggr.Debug("turn answered", "sources", len(answer.Sources))

	return Reply{SessionId: sessionId, Answer: answer.Text, Sources: answer.Sources}, nil
}

func (s *Service) History(ctx context.Context, sessionId string) ([]chatModel.ConversationTurn, error) {
	return s.store.History(ctx, sessionId, s.historyLimit)
}

// EndSession forgets the session. Ending an unknown session is not an error.
func (s *Service) EndSession(ctx context.Context, sessionId string) error {
	if err := s.store.Delete(ctx, sessionId); err != nil {
		return err
	}
	s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Info("session ended", "sessionId", sessionId)
	return nil
}

func (s *Service) acquire(sessionId string) *sessionLock {
	s.locksMu.Lock()
	lock, ok := s.locks[sessionId]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionId] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Service) release(sessionId string, lock *sessionLock) {
	lock.mu.Unlock()

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 && s.locks[sessionId] == lock {
		delete(s.locks, sessionId)
	}
}
