package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

const maxRequestBody = 64 << 10

var logRH = logger_i.NewLogger("RequestHandler")

// ReadinessFunc reports the index state; an error means the pipeline cannot answer yet.
type ReadinessFunc func(ctx context.Context) (api.HealthResponse, error)

type ChatHandler struct {
	service *chat.Service
	ready   ReadinessFunc
}

func InitChatHandler(service *chat.Service, ready ReadinessFunc) *ChatHandler {
	logRH.Info("Starting chat handler")
	return &ChatHandler{service: service, ready: ready}
}

// GetHandler godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /healthz [get]
func (h *ChatHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// ReadyHandler godoc
// @Summary      Readiness probe
// @Description  Ready once the index has been built or opened.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Failure      503  {object}  api.ErrorResponse
// @Router       /readyz [get]
func (h *ChatHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "", "readiness is not configured")
		return
	}
	status, err := h.ready(r.Context())
	if err != nil {
		logRH.Warn("not ready", "error", err)
		writeJsonResponse(w, http.StatusServiceUnavailable, adapter.FromError("", err, http.StatusServiceUnavailable))
		return
	}
	writeJsonResponse(w, http.StatusOK, status)
}

// ChatHandler godoc
// @Summary      Ask a question about the notes
// @Description  Answers synchronously. A new session is started when session_id is empty.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest   true  "Question and optional session id"
// @Success      200      {object}  api.ChatResponse
// @Failure      400      {object}  api.ErrorResponse  "Empty message or unknown session"
// @Failure      502      {object}  api.ErrorResponse  "Embedding or generation provider failed"
// @Failure      500      {object}  api.ErrorResponse
// @Router       /chat [post]
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ChatRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the Chat handler reader", "error", err)
		}
	}(request.Body)

	decoder := json.NewDecoder(io.LimitReader(request.Body, maxRequestBody))
	if err := decoder.Decode(&requestData); err != nil {
		logRH.Warn("Bad Chat Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	if strings.TrimSpace(requestData.Message) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, requestData.SessionID, "message is required")
		return
	}

	reply, err := h.service.Ask(request.Context(), requestData.SessionID, requestData.Message)
	if err != nil {
		code := statusFor(err)
		loggerFor(request.Context()).Error("chat failed", "sessionId", requestData.SessionID, "status", code, "error", err)
		writeJsonResponse(w, code, adapter.FromError(requestData.SessionID, err, code))
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(reply))
}

// GetSessionHandler godoc
// @Summary      Get the turns of a session
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  api.HistoryResponse
// @Failure      404  {object}  api.ErrorResponse  "Session not found"
// @Router       /sessions/{id} [get]
func (h *ChatHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	turns, err := h.service.History(r.Context(), id)
	if errors.Is(err, chatModel.ErrSessionNotFound) {
		WriteErrorResponse(w, http.StatusNotFound, id, "Session not found")
		return
	}
	if err != nil {
		loggerFor(r.Context()).Error("history failed", "sessionId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Could not read session")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToHistoryResponse(id, turns))
}

// DeleteSessionHandler godoc
// @Summary      End a session
// @Tags         Sessions
// @Param        id   path      string  true  "Session ID"
// @Success      204
// @Router       /sessions/{id} [delete]
func (h *ChatHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	if err := h.service.EndSession(r.Context(), id); err != nil {
		loggerFor(r.Context()).Error("end session failed", "sessionId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Could not end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
