package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api"
	"github.com/adaptivenexus/scandoq-chatboat/internal/api/middleware"
	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

type Answerer interface {
	Answer(ctx context.Context, history []domain.ChatTurn, query, ownerID string) domain.Answer
}

type ChatHandler struct {
	answerer Answerer
}

func NewChatHandler(answerer Answerer) *ChatHandler {
	return &ChatHandler{answerer: answerer}
}

type ChatTurnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	History []ChatTurnRequest `json:"history"`
	Query   string            `json:"query"`
}

type ChatResponse struct {
	Content   string               `json:"content"`
	Documents []domain.DocumentRef `json:"documents"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	// Turns with unknown roles are dropped.
	history := make([]domain.ChatTurn, 0, len(req.History))
	for _, turn := range req.History {
		role, ok := domain.ParseChatRole(turn.Role)
		if !ok {
			continue
		}
		history = append(history, domain.ChatTurn{Role: role, Content: turn.Content})
	}

	answer := h.answerer.Answer(r.Context(), history, query, ownerID)

	docs := answer.References
	if docs == nil {
		docs = []domain.DocumentRef{}
	}
	api.Success(w, http.StatusOK, ChatResponse{Content: answer.Text, Documents: docs})
}
