// Package mcpServer exposes the pipeline to MCP clients as a single tool.
package mcpServer

import (
	"context"
	"fmt"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolName = "answer_question"
	Version  = "1.0.0"
)

type AnswerInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the notes"`
}

type AnswerOutput struct {
	Answer  string       `json:"answer"`
	Sources []api.Source `json:"sources,omitempty"`
}

type Server struct {
	pipeline chat.Answerer
	server   *mcp.Server
	logger   *logger_i.Logger
}

func NewServer(pipeline chat.Answerer) *Server {
	s := &Server{
		pipeline: pipeline,
		server:   mcp.NewServer(&mcp.Implementation{Name: "docqa", Version: Version}, nil),
		logger:   logger_i.NewLogger("MCP"),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolName,
		Description: "Answer a question using only the indexed notes. Replies with a fixed refusal when the notes do not cover it.",
	}, s.handleAnswer)
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) handleAnswer(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (*mcp.CallToolResult, AnswerOutput, error) {
	ctx = context.WithValue(ctx, config.TRACE_ID_KEY, uuid.NewString())
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	answer, err := s.pipeline.Ask(ctx, input.Question)
	if err != nil {
		loggr.Error("tool call failed", "kind", ragErrors.KindOf(err), "error", err)
		return nil, AnswerOutput{}, fmt.Errorf("%s: %w", ToolName, err)
	}
	loggr.Debug("tool call answered", "sources", len(answer.Sources))
	return nil, AnswerOutput{Answer: answer.Text, Sources: adapter.ToSources(answer.Sources)}, nil
}
