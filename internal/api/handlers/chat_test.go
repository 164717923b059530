package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, history []domain.ChatTurn, query, ownerID string) domain.Answer {
	args := m.Called(ctx, history, query, ownerID)
	return args.Get(0).(domain.Answer)
}

func TestChatHandler_Chat_Success(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewChatHandler(answerer)

	wantHistory := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "Hello! How can I help?"},
	}
	answerer.On("Answer", mock.Anything, wantHistory, "How many leave days?", "owner-1").Return(domain.Answer{
		Text:       "You get 20 days.",
		References: []domain.DocumentRef{{ID: "doc-1", Title: "Policy.pdf"}},
	})

	body := `{"history":[{"role":"user","content":"hi"},{"role":"model","content":"Hello! How can I help?"},{"role":"system","content":"ignored"}],"query":" How many leave days? "}`
	req := requestWithOwner(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "You get 20 days.", data["content"])
	docs := data["documents"].([]interface{})
	require.Len(t, docs, 1)
	assert.Equal(t, "Policy.pdf", docs[0].(map[string]interface{})["title"])
	answerer.AssertExpectations(t)
}

func TestChatHandler_Chat_NoCitationsIsEmptyList(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewChatHandler(answerer)

	answerer.On("Answer", mock.Anything, []domain.ChatTurn{}, "hello", "owner-1").Return(domain.Answer{Text: "Hi!"})

	req := requestWithOwner(http.MethodPost, "/chat", strings.NewReader(`{"query":"hello"}`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"documents":[]`)
}

func TestChatHandler_Chat_EmptyQuery(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewChatHandler(answerer)

	req := requestWithOwner(http.MethodPost, "/chat", strings.NewReader(`{"query":"   "}`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_Chat_InvalidBody(t *testing.T) {
	handler := NewChatHandler(new(MockAnswerer))

	req := requestWithOwner(http.MethodPost, "/chat", strings.NewReader(`{`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Chat_Unauthorized(t *testing.T) {
	handler := NewChatHandler(new(MockAnswerer))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hi"}`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
