package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPipeline struct {
	OnAsk func(ctx context.Context, question string) (rag.Answer, error)
}

func (m *mockPipeline) Ask(ctx context.Context, question string) (rag.Answer, error) {
	if m.OnAsk != nil {
		return m.OnAsk(ctx, question)
	}
	return rag.Answer{
		Text:    "re: " + question,
		Sources: []commonModels.Match{{Chunk: commonModels.DocChunk{PageNum: 2, Chunk: "ME21N"}, Score: 0.9}},
	}, nil
}

func newService(p *mockPipeline) *Service {
	return InitChatService(ServiceConfig{Pipeline: p, Store: store.InitInMemorySessionStore(), HistoryLimit: 50})
}

func TestAskStartsSessionAndRecordsTurns(t *testing.T) {
	ctx := context.Background()
	s := newService(&mockPipeline{})

	reply, err := s.Ask(ctx, "", "What is ME21N?")
	require.NoError(t, err)
	require.NotEmpty(t, reply.SessionId)
	assert.Equal(t, "re: What is ME21N?", reply.Answer)
	assert.Len(t, reply.Sources, 1)

	_, err = s.Ask(ctx, reply.SessionId, "And ME22N?")
	require.NoError(t, err)

	turns, err := s.History(ctx, reply.SessionId)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, chatModel.RoleUser, turns[0].Role)
	assert.Equal(t, chatModel.RoleAssistant, turns[1].Role)
	assert.Equal(t, "And ME22N?", turns[2].Text)
}

func TestAskRejectsEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	s := newService(&mockPipeline{})

	_, err := s.Ask(ctx, "", "  ")
	assert.True(t, errors.Is(err, ragErrors.ErrEmptyQuestion))

	_, err = s.Ask(ctx, "no-such-session", "hello")
	assert.True(t, errors.Is(err, chatModel.ErrSessionNotFound))
}

func TestFailedAnswerKeepsOnlyUserTurn(t *testing.T) {
	ctx := context.Background()
	s := newService(&mockPipeline{OnAsk: func(context.Context, string) (rag.Answer, error) {
		return rag.Answer{}, ragErrors.Generation("generate", errors.New("provider down"))
	}})

	session, err := s.StartSession(ctx)
	require.NoError(t, err)

	reply, err := s.Ask(ctx, session.Id, "hello")
	assert.True(t, ragErrors.IsGeneration(err))
	assert.Equal(t, session.Id, reply.SessionId)

	turns, err := s.History(ctx, session.Id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, chatModel.RoleUser, turns[0].Role)
}

func TestConcurrentAsksKeepTurnsPaired(t *testing.T) {
	ctx := context.Background()
	s := newService(&mockPipeline{OnAsk: func(_ context.Context, q string) (rag.Answer, error) {
		time.Sleep(time.Millisecond)
		return rag.Answer{Text: "re: " + q}, nil
	}})
	session, err := s.StartSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(ctx, session.Id, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	turns, err := s.History(ctx, session.Id)
	require.NoError(t, err)
	require.Len(t, turns, 20)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, chatModel.RoleUser, turns[i].Role)
		assert.Equal(t, "re: "+turns[i].Text, turns[i+1].Text, "turn %d is not followed by its answer", i)
	}
}

func heldLocks(s *Service) int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

func TestSessionLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s := newService(&mockPipeline{OnAsk: func(_ context.Context, q string) (rag.Answer, error) {
		calls++
		return rag.Answer{Text: "re: " + q}, nil
	}})

	for i := range 1000 {
		_, err := s.Ask(ctx, fmt.Sprintf("unknown-%d", i), "hello")
		require.True(t, errors.Is(err, chatModel.ErrSessionNotFound))
	}
	assert.Zero(t, heldLocks(s), "unknown sessions must not leave locks behind")
	assert.Zero(t, calls)

	session, err := s.StartSession(ctx)
	require.NoError(t, err)
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(ctx, session.Id, "question")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, heldLocks(s))
}

func TestHistoryLimitAndEndSession(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := InitChatService(ServiceConfig{
		Pipeline:     &mockPipeline{},
		Store:        store.NewRedisSessionStore(redisStore.NewTestStore(client), time.Hour),
		HistoryLimit: 2,
	})

	reply, err := s.Ask(ctx, "", "first")
	require.NoError(t, err)
	_, err = s.Ask(ctx, reply.SessionId, "second")
	require.NoError(t, err)

	turns, err := s.History(ctx, reply.SessionId)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.True(t, strings.HasSuffix(turns[1].Text, "second"))

	require.NoError(t, s.EndSession(ctx, reply.SessionId))
	_, err = s.History(ctx, reply.SessionId)
	assert.True(t, errors.Is(err, chatModel.ErrSessionNotFound))
	assert.NoError(t, s.EndSession(ctx, reply.SessionId))
}
