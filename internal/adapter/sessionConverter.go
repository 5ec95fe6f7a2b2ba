package adapter

import (
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
)

const excerptRunes = 200

func ToChatResponse(reply chat.Reply) api.ChatResponse {
	return api.ChatResponse{
		SessionId: reply.SessionId,
		Answer:    reply.Answer,
		Sources:   ToSources(reply.Sources),
	}
}

func ToSources(matches []commonModels.Match) []api.Source {
	sources := make([]api.Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, api.Source{
			Page:    m.Chunk.PageNum,
			Score:   m.Score,
			Excerpt: excerpt(m.Chunk.Chunk),
		})
	}
	return sources
}

func ToHistoryResponse(sessionId string, turns []chatModel.ConversationTurn) api.HistoryResponse {
	out := make([]api.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, api.Turn{Role: string(t.Role), Text: t.Text, CreatedAt: t.CreatedAt})
	}
	return api.HistoryResponse{SessionId: sessionId, Turns: out}
}

func BadRequest(sessionId string, message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		SessionId: sessionId,
		Error: api.OutgoingError{
			Code:    code,
			Message: message,
		},
	}
}

// FromError reports a pipeline failure; provider failures are worth retrying.
func FromError(sessionId string, err error, code int) api.ErrorResponse {
	kind := ragErrors.KindOf(err)
	return api.ErrorResponse{
		SessionId: sessionId,
		Error: api.OutgoingError{
			Code:    code,
			Kind:    string(kind),
			Message: err.Error(),
			Retry:   kind == ragErrors.KindEmbedding || kind == ragErrors.KindGeneration,
		},
	}
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return string(runes[:excerptRunes]) + "…"
}
