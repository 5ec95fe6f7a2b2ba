package store

import (
	"context"
	"sync"

	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem SessionStore")

type InMemorySessionStore struct {
	sessionMutex *sync.RWMutex
	sessions     map[string]chatModel.Session
	turns        map[string][]chatModel.ConversationTurn
}

func InitInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessionMutex: new(sync.RWMutex),
		sessions:     make(map[string]chatModel.Session),
		turns:        make(map[string][]chatModel.ConversationTurn),
	}
}

func (store *InMemorySessionStore) Create(ctx context.Context, session chatModel.Session) error {
	store.sessionMutex.Lock()
	defer store.sessionMutex.Unlock()
	store.sessions[session.Id] = session
	store.turns[session.Id] = make([]chatModel.ConversationTurn, 0)
	inMemLogger.Debug("session created", "sessionId", session.Id)
	return nil
}

func (store *InMemorySessionStore) Exists(ctx context.Context, sessionId string) (bool, error) {
	store.sessionMutex.RLock()
	defer store.sessionMutex.RUnlock()
	_, found := store.sessions[sessionId]
	return found, nil
}

func (store *InMemorySessionStore) Append(ctx context.Context, sessionId string, turn chatModel.ConversationTurn) error {
	store.sessionMutex.Lock()
	defer store.sessionMutex.Unlock()
	if _, found := store.sessions[sessionId]; !found {
		return chatModel.ErrSessionNotFound
	}
	store.turns[sessionId] = append(store.turns[sessionId], turn)
	return nil
}

func (store *InMemorySessionStore) History(ctx context.Context, sessionId string, limit int) ([]chatModel.ConversationTurn, error) {
	store.sessionMutex.RLock()
	defer store.sessionMutex.RUnlock()
	if _, found := store.sessions[sessionId]; !found {
		return nil, chatModel.ErrSessionNotFound
	}
	turns := store.turns[sessionId]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	result := make([]chatModel.ConversationTurn, len(turns))
	copy(result, turns)
	return result, nil
}

func (store *InMemorySessionStore) Delete(ctx context.Context, sessionId string) error {
	store.sessionMutex.Lock()
	defer store.sessionMutex.Unlock()
	delete(store.sessions, sessionId)
	delete(store.turns, sessionId)
	return nil
}
