package api

import "time"

type ChatResponse struct {
	SessionId string   `json:"session_id" example:"5f0c3a52-8d7e-4b8f-9a51-0f6f3c2b1e11"`
	Answer    string   `json:"answer" example:"Use transaction ME21N to create a purchase order."`
	Sources   []Source `json:"sources"`
}

type Source struct {
	Page    int     `json:"page" example:"2"`
	Score   float32 `json:"score" example:"0.83"`
	Excerpt string  `json:"excerpt"`
}

type Turn struct {
	Role      string    `json:"role" example:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	SessionId string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}

type ErrorResponse struct {
	SessionId string        `json:"session_id,omitempty"`
	Error     OutgoingError `json:"error"`
}

type OutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Kind    string `json:"kind,omitempty" example:"GENERATION"`
	Message string `json:"message" example:"session not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type HealthResponse struct {
	Status     string `json:"status" example:"ok"`
	IndexState string `json:"index_state,omitempty" example:"BUILT"`
	Collection string `json:"collection,omitempty" example:"docqa-notes"`
	Chunks     int    `json:"chunks,omitempty" example:"42"`
}

// requests---------------------

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id,omitempty"`
}
