package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/middleware"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/server"
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
		Text: "Use transaction ME21N.",
		Sources: []commonModels.Match{
			{Chunk: commonModels.DocChunk{PageNum: 2, Chunk: "To create a purchase order use ME21N."}, Score: 0.91},
		},
	}, nil
}

func newTestServer(t *testing.T, p *mockPipeline, ready handlers.ReadinessFunc) *httptest.Server {
	t.Helper()
	service := chat.InitChatService(chat.ServiceConfig{Pipeline: p, Store: store.InitInMemorySessionStore(), HistoryLimit: 50})
	h := handlers.InitChatHandler(service, ready)
	srv := httptest.NewServer(server.Routes(h, middleware.NewChain(1000, 1000)))
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, &mockPipeline{}, nil)

	resp := postChat(t, srv, `{"message":"What is the transaction code for creating a purchase order?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.TraceHeader))

	body := decode[api.ChatResponse](t, resp)
	require.NotEmpty(t, body.SessionId)
	assert.Contains(t, body.Answer, "ME21N")
	require.Len(t, body.Sources, 1)
	assert.Equal(t, 2, body.Sources[0].Page)

	resp = postChat(t, srv, `{"message":"and to change it?","session_id":"`+body.SessionId+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	historyResp, err := http.Get(srv.URL + "/sessions/" + body.SessionId)
	require.NoError(t, err)
	defer historyResp.Body.Close()
	require.Equal(t, http.StatusOK, historyResp.StatusCode)
	history := decode[api.HistoryResponse](t, historyResp)
	require.Len(t, history.Turns, 4)
	assert.Equal(t, "user", history.Turns[0].Role)
	assert.Equal(t, "and to change it?", history.Turns[2].Text)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+body.SessionId, nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	gone, err := http.Get(srv.URL + "/sessions/" + body.SessionId)
	require.NoError(t, err)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestChatErrorStatus(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		err   error
		code  int
		kind  string
		retry bool
	}{
		{name: "malformed json", body: `{"message":`, code: http.StatusBadRequest},
		{name: "empty message", body: `{"message":"   "}`, code: http.StatusBadRequest},
		{name: "unknown session", body: `{"message":"hi","session_id":"nope"}`, code: http.StatusBadRequest},
		{
			name: "generation failure", body: `{"message":"hi"}`,
			err:  ragErrors.Generation("generate answer", errors.New("provider down")),
			code: http.StatusBadGateway, kind: "GENERATION", retry: true,
		},
		{
			name: "embedding failure", body: `{"message":"hi"}`,
			err:  ragErrors.Embedding("embed query", errors.New("quota")),
			code: http.StatusBadGateway, kind: "EMBEDDING", retry: true,
		},
		{
			name: "index failure", body: `{"message":"hi"}`,
			err:  ragErrors.Index("query index", errors.New("connection refused")),
			code: http.StatusInternalServerError, kind: "INDEX",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPipeline{}
			if tt.err != nil {
				p.OnAsk = func(context.Context, string) (rag.Answer, error) { return rag.Answer{}, tt.err }
			}
			resp := postChat(t, newTestServer(t, p, nil), tt.body)
			require.Equal(t, tt.code, resp.StatusCode)

			body := decode[api.ErrorResponse](t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.Equal(t, tt.retry, body.Error.Retry)
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := newTestServer(t, &mockPipeline{}, func(context.Context) (api.HealthResponse, error) {
		if !ready.Load() {
			return api.HealthResponse{}, ragErrors.Index("check index", errors.New("qdrant unreachable"))
		}
		return api.HealthResponse{Status: "ok", IndexState: "BUILT", Collection: "notes", Chunks: 3}, nil
	})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	body := decode[api.HealthResponse](t, resp)
	resp.Body.Close()
	assert.Equal(t, "BUILT", body.IndexState)

	ready.Store(false)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTraceIdIsPropagated(t *testing.T) {
	seen := make(chan any, 1)
	srv := newTestServer(t, &mockPipeline{OnAsk: func(ctx context.Context, q string) (rag.Answer, error) {
		seen <- ctx.Value(config.TRACE_ID_KEY)
		return rag.Answer{Text: "ok"}, nil
	}}, nil)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(middleware.TraceHeader, "trace-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "trace-123", resp.Header.Get(middleware.TraceHeader))
	assert.Equal(t, "trace-123", <-seen)
}

func TestRateLimit(t *testing.T) {
	service := chat.InitChatService(chat.ServiceConfig{Pipeline: &mockPipeline{}, Store: store.InitInMemorySessionStore()})
	h := handlers.InitChatHandler(service, nil)
	srv := httptest.NewServer(server.Routes(h, middleware.NewChain(0.001, 1)))
	defer srv.Close()

	first, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
