package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/openai"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
)

const (
	// ApologyMessage replaces the answer when the model call fails.
	ApologyMessage = "I encountered an error while processing your request. Please try again later."
	// MissingCredentialMessage replaces the answer when no model key is configured.
	MissingCredentialMessage = "Error: the language model API key is not configured."

	sourcesMarker      = "USED_SOURCES:"
	noSources          = "NONE"
	noContextText      = "No relevant documents found."
	maxHistoryTurns    = 10
	answerTemperature  = 0.7
	systemInstructions = "You are a helpful and intelligent assistant named 'Nexus'. " +
		"You have access to the user's uploaded documents through the Context provided with each question. " +
		"Always prioritize the information in the Context when answering. " +
		"When the Context contains the answer, cite it using the document name from its header (for example '**Document: Filename.pdf**'). " +
		"Never refer to chunks or sections by an internal index; refer to the document title only. " +
		"If the Context does not contain the answer you may answer from general knowledge, " +
		"but say explicitly that the answer was not found in the uploaded documents. " +
		"Be concise and professional. " +
		"If the user only says hi or hello, reply with 'Hello! How can I help you today?'.\n\n" +
		"CRITICAL INSTRUCTION: at the very end of your response, on a new line, list the exact titles of the Context documents you actually used. " +
		"Format the line exactly as: 'USED_SOURCES: title1, title2'. " +
		"If you used no documents from the Context, write 'USED_SOURCES: NONE'. " +
		"Leave this line out when you are only greeting."
)

// ChatModel produces a reply for a grounded prompt
type ChatModel interface {
	Chat(ctx context.Context, req openai.ChatRequest) (string, error)
}

// GenerationService composes grounded prompts and parses cited sources
type GenerationService struct {
	model   ChatModel
	timeout time.Duration
}

// NewGenerationService creates a GenerationService. A nil model means no
// credential is configured.
func NewGenerationService(model ChatModel, timeout time.Duration) *GenerationService {
	return &GenerationService{model: model, timeout: timeout}
}

// Generate answers query from chunks and prior turns. It never fails: model
// errors become ApologyMessage with no references.
func (s *GenerationService) Generate(ctx context.Context, history []domain.ChatTurn, query string, chunks []domain.RetrievedChunk) domain.Answer {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Generate", telemetry.SpanAttributes{
		Operation: "generate",
	})
	defer span.End()

	if s.model == nil {
		return domain.Answer{Text: MissingCredentialMessage, References: []domain.DocumentRef{}}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.model.Chat(ctx, openai.ChatRequest{
		System:      systemInstructions,
		History:     recentHistory(history, query),
		Prompt:      "Context:\n" + buildContext(chunks) + "\n\nUser Question: " + query,
		Temperature: answerTemperature,
	})
	if err != nil {
		log.Printf("generation: model call failed: %v", err)
		span.SetError(domain.Wrap(domain.ErrGenerationFailed, err))
		return domain.Answer{Text: ApologyMessage, References: []domain.DocumentRef{}}
	}

	text, refs := ParseCitations(raw, chunks)
	if strings.TrimSpace(text) == "" {
		log.Printf("generation: model returned no answer text (%d bytes)", len(raw))
		span.SetError(domain.ErrGenerationFailed)
		return domain.Answer{Text: ApologyMessage, References: []domain.DocumentRef{}}
	}
	return domain.Answer{Text: text, References: refs}
}

func buildContext(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return noContextText
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, "Document: "+c.Title+"\n"+c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// recentHistory keeps the last turns before the in-flight query. A trailing
// user turn equal to query is the query itself and is dropped.
func recentHistory(history []domain.ChatTurn, query string) []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(history))
	for _, t := range history {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if t.Role != domain.RoleUser && t.Role != domain.RoleAssistant {
			continue
		}
		turns = append(turns, t)
	}

	if n := len(turns); n > 0 && turns[n-1].Role == domain.RoleUser &&
		strings.TrimSpace(turns[n-1].Content) == strings.TrimSpace(query) {
		turns = turns[:n-1]
	}

	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	return turns
}

// ParseCitations splits the sources footer off raw and resolves the listed
// titles against the documents of chunks.
func ParseCitations(raw string, chunks []domain.RetrievedChunk) (string, []domain.DocumentRef) {
	refs := []domain.DocumentRef{}

	idx := strings.LastIndex(raw, sourcesMarker)
	if idx < 0 {
		return raw, refs
	}

	answer := strings.TrimSpace(raw[:idx])
	payload := strings.TrimSpace(raw[idx+len(sourcesMarker):])
	if payload == noSources {
		return answer, refs
	}

	docs := distinctDocuments(chunks)
	seen := make(map[string]bool)
	for _, candidate := range strings.Split(payload, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		doc, ok := matchDocument(candidate, docs)
		if !ok || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		refs = append(refs, doc)
	}
	return answer, refs
}

func distinctDocuments(chunks []domain.RetrievedChunk) []domain.DocumentRef {
	docs := make([]domain.DocumentRef, 0, len(chunks))
	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		docs = append(docs, domain.DocumentRef{ID: c.DocumentID, Title: c.Title})
	}
	return docs
}

// matchDocument tries an exact case-insensitive title match, then the first
// document whose title contains the candidate or is contained in it.
func matchDocument(candidate string, docs []domain.DocumentRef) (domain.DocumentRef, bool) {
	for _, d := range docs {
		if strings.EqualFold(d.Title, candidate) {
			return d, true
		}
	}

	lc := strings.ToLower(candidate)
	for _, d := range docs {
		title := strings.ToLower(d.Title)
		if title == "" {
			continue
		}
		if strings.Contains(title, lc) || strings.Contains(lc, title) {
			return d, true
		}
	}
	return domain.DocumentRef{}, false
}

// IsGenerationFailure reports whether an answer is one of the fixed failure replies.
func IsGenerationFailure(a domain.Answer) bool {
	return a.Text == ApologyMessage || a.Text == MissingCredentialMessage
}
