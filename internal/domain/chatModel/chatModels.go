package chatModel

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrSessionNotFound = errors.New("session not found")

type ConversationTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	Id        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore keeps append-only turn lists per session.
// History returns the last limit turns oldest first; limit <= 0 returns all of them.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	Exists(ctx context.Context, sessionId string) (bool, error)
	Append(ctx context.Context, sessionId string, turn ConversationTurn) error
	History(ctx context.Context, sessionId string, limit int) ([]ConversationTurn, error)
	Delete(ctx context.Context, sessionId string) error
}
