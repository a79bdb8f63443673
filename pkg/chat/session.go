// Package chat manages in-memory conversation sessions, each bound to one
// analyzed document. Sessions do not survive process restarts.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docguard/pkg/ai"
	"docguard/pkg/domain"
	"docguard/pkg/retry"
)

// Session is an ordered, append-only conversation bound to one analysis.
// The turn sequence is owned by the session and mutated only through Send.
type Session struct {
	ID         string
	DocumentID string
	Language   domain.Language

	gen    ai.ChatGenerator
	policy retry.Policy
	system string
	now    func() time.Time

	mu    sync.Mutex
	turns []domain.Turn
}

// Manager creates sessions and keeps an owned registry so the API layer can
// resume a session across requests within one process.
type Manager struct {
	gen    ai.ChatGenerator
	policy retry.Policy
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager wires a chat generator with a retry policy. A zero policy gets
// defaults plus transient-failure classification.
func NewManager(gen ai.ChatGenerator, policy retry.Policy) (*Manager, error) {
	if gen == nil {
		return nil, fmt.Errorf("chat generator required")
	}
	if policy.Retryable == nil {
		policy.Retryable = ai.IsRetryable
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = retry.DefaultMaxRetries
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = retry.DefaultInitialDelay
	}
	return &Manager{
		gen:      gen,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}, nil
}

// CreateSession seeds the immutable system context from the behavioral
// prompt and a full serialization of the bound analysis, then records a
// localized welcome turn.
func (m *Manager) CreateSession(documentID string, analysis domain.AnalysisResult, language domain.Language) (*Session, error) {
	contextJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("serialize analysis context: %w", err)
	}
	system := strings.ReplaceAll(chatSystemPrompt, languagePlaceholder, language.Label()) +
		"\n\nCONTRACT ANALYSIS DATA:\n" + string(contextJSON)

	s := &Session{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Language:   language,
		gen:        m.gen,
		policy:     m.policy,
		system:     system,
		now:        m.now,
		turns: []domain.Turn{
			{Role: domain.RoleAssistant, Content: welcomeMessage(language), CreatedAt: m.now()},
		},
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Session looks up a previously created session.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the registry, e.g. when the UI view closes.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Send records the user turn, forwards the full conversation to the model,
// records the assistant reply and returns it. Model failures degrade to a
// localized fallback reply recorded as a synthetic assistant turn; the turn
// sequence is never corrupted and Send does not surface the model error.
// Turns are single-flight: concurrent calls are serialized.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("message required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Content: text, CreatedAt: s.now()})

	history := make([]ai.Turn, 0, len(s.turns))
	for _, turn := range s.turns {
		history = append(history, ai.Turn{Role: turn.Role, Content: turn.Content})
	}

	reply, err := retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.gen.GenerateChat(ctx, s.system, history)
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		reply = fallbackMessage(s.Language)
	}

	s.turns = append(s.turns, domain.Turn{Role: domain.RoleAssistant, Content: reply, CreatedAt: s.now()})
	return reply, nil
}

// Turns returns a copy of the ordered turn sequence.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
