package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/openai"
)

// MockChatModel mocks the generative model
type MockChatModel struct {
	mock.Mock
}

func (m *MockChatModel) Chat(ctx context.Context, req openai.ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func retrieved(pairs ...string) []domain.RetrievedChunk {
	var out []domain.RetrievedChunk
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.RetrievedChunk{
			DocumentID: pairs[i],
			Title:      pairs[i+1],
			Text:       "text of " + pairs[i+1],
		})
	}
	return out
}

func TestParseCitations_SubstringFallback(t *testing.T) {
	chunks := retrieved("d1", "Policy.pdf", "d2", "Quarterly Report")

	answer, refs := ParseCitations("Answer body.\nUSED_SOURCES: Policy.pdf, Report", chunks)

	assert.Equal(t, "Answer body.", answer)
	assert.Equal(t, []domain.DocumentRef{
		{ID: "d1", Title: "Policy.pdf"},
		{ID: "d2", Title: "Quarterly Report"},
	}, refs)
}

func TestParseCitations_None(t *testing.T) {
	answer, refs := ParseCitations("Hi there!\nUSED_SOURCES: NONE", retrieved("d1", "Policy.pdf"))

	assert.Equal(t, "Hi there!", answer)
	assert.Empty(t, refs)
	assert.NotNil(t, refs)
}

func TestParseCitations_NoMarker(t *testing.T) {
	raw := "  The premium is due in March.\n"

	answer, refs := ParseCitations(raw, retrieved("d1", "Policy.pdf"))

	assert.Equal(t, raw, answer)
	assert.Empty(t, refs)
}

func TestParseCitations_SplitsOnLastMarker(t *testing.T) {
	raw := "The doc says USED_SOURCES: is a footer.\nUSED_SOURCES: Policy.pdf"

	answer, refs := ParseCitations(raw, retrieved("d1", "Policy.pdf"))

	assert.Equal(t, "The doc says USED_SOURCES: is a footer.", answer)
	require.Len(t, refs, 1)
	assert.Equal(t, "d1", refs[0].ID)
}

func TestParseCitations_ExactMatchBeatsSubstring(t *testing.T) {
	chunks := retrieved("d1", "Annual Report 2023", "d2", "report")

	_, refs := ParseCitations("x\nUSED_SOURCES: REPORT", chunks)

	require.Len(t, refs, 1)
	assert.Equal(t, "d2", refs[0].ID)
}

func TestParseCitations_CandidateContainsTitle(t *testing.T) {
	chunks := retrieved("d1", "Lease", "d2", "Insurance")

	_, refs := ParseCitations("x\nUSED_SOURCES: Lease Agreement.pdf", chunks)

	require.Len(t, refs, 1)
	assert.Equal(t, "d1", refs[0].ID)
}

func TestParseCitations_DropsUnmatchedAndDeduplicates(t *testing.T) {
	chunks := append(retrieved("d1", "Policy.pdf", "d2", "Tax Return 2023"), retrieved("d1", "Policy.pdf")...)

	_, refs := ParseCitations("x\nUSED_SOURCES: Tax Return 2023, Unknown.docx, policy.pdf, Policy, , Tax", chunks)

	assert.Equal(t, []domain.DocumentRef{
		{ID: "d2", Title: "Tax Return 2023"},
		{ID: "d1", Title: "Policy.pdf"},
	}, refs)
}

func TestParseCitations_OnlyRetrievedDocuments(t *testing.T) {
	_, refs := ParseCitations("x\nUSED_SOURCES: Policy.pdf", nil)

	assert.Empty(t, refs)
}

func TestGenerationService_Generate_BuildsGroundedPrompt(t *testing.T) {
	model := new(MockChatModel)
	svc := NewGenerationService(model, 0)

	chunks := []domain.RetrievedChunk{
		{DocumentID: "d1", Title: "Policy.pdf", Text: "Deductible is $500."},
		{DocumentID: "d2", Title: "Lease.md", Text: "Rent is due monthly."},
	}
	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "Hello! How can I help you today?"},
		{Role: domain.RoleUser, Content: "What is my deductible?"},
	}

	model.On("Chat", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.Temperature == 0.7 &&
			strings.Contains(req.System, "USED_SOURCES: title1, title2") &&
			len(req.History) == 2 &&
			req.Prompt == "Context:\nDocument: Policy.pdf\nDeductible is $500.\n\nDocument: Lease.md\nRent is due monthly.\n\nUser Question: What is my deductible?"
	})).Return("Your deductible is $500 (Policy.pdf).\nUSED_SOURCES: Policy.pdf", nil)

	answer := svc.Generate(context.Background(), history, "What is my deductible?", chunks)

	assert.Equal(t, "Your deductible is $500 (Policy.pdf).", answer.Text)
	assert.Equal(t, []domain.DocumentRef{{ID: "d1", Title: "Policy.pdf"}}, answer.References)
	model.AssertExpectations(t)
}

func TestGenerationService_Generate_NoContextPlaceholder(t *testing.T) {
	model := new(MockChatModel)
	svc := NewGenerationService(model, 0)

	model.On("Chat", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.Prompt == "Context:\nNo relevant documents found.\n\nUser Question: hi"
	})).Return("Hello! How can I help you today?", nil)

	answer := svc.Generate(context.Background(), nil, "hi", nil)

	assert.Equal(t, "Hello! How can I help you today?", answer.Text)
	assert.Empty(t, answer.References)
}

func TestGenerationService_Generate_ModelErrorIsApology(t *testing.T) {
	model := new(MockChatModel)
	svc := NewGenerationService(model, 0)

	model.On("Chat", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	answer := svc.Generate(context.Background(), nil, "question", retrieved("d1", "Policy.pdf"))

	assert.Equal(t, ApologyMessage, answer.Text)
	assert.Empty(t, answer.References)
	assert.True(t, IsGenerationFailure(answer))
}

func TestGenerationService_Generate_EmptyReplyIsApology(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t"},
		{"sources footer only", "USED_SOURCES: Policy.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(MockChatModel)
			svc := NewGenerationService(model, 0)
			model.On("Chat", mock.Anything, mock.Anything).Return(tt.reply, nil)

			answer := svc.Generate(context.Background(), nil, "question", retrieved("d1", "Policy.pdf"))

			assert.Equal(t, ApologyMessage, answer.Text)
			assert.NotNil(t, answer.References)
			assert.Empty(t, answer.References)
		})
	}
}

func TestGenerationService_Generate_MissingCredential(t *testing.T) {
	svc := NewGenerationService(nil, 0)

	answer := svc.Generate(context.Background(), nil, "question", nil)

	assert.Equal(t, MissingCredentialMessage, answer.Text)
	assert.NotEqual(t, ApologyMessage, answer.Text)
	assert.Empty(t, answer.References)
}

func TestRecentHistory(t *testing.T) {
	var history []domain.ChatTurn
	for i := 0; i < 14; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.ChatTurn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	history = append(history,
		domain.ChatTurn{Role: "system", Content: "ignored"},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: "  "},
		domain.ChatTurn{Role: domain.RoleUser, Content: "current question"},
	)

	turns := recentHistory(history, "current question")

	require.Len(t, turns, 10)
	assert.Equal(t, "turn 4", turns[0].Content)
	assert.Equal(t, "turn 13", turns[9].Content)
}

func TestRecentHistory_KeepsEarlierIdenticalQuestion(t *testing.T) {
	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "same"},
		{Role: domain.RoleAssistant, Content: "answer"},
	}

	turns := recentHistory(history, "same")

	assert.Len(t, turns, 2)
}
