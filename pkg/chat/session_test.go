package chat

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docguard/pkg/ai"
	"docguard/pkg/domain"
	"docguard/pkg/retry"
)

type fakeChatGenerator struct {
	calls   []fakeChatCall
	reply   string
	err     error
	replies []string
}

type fakeChatCall struct {
	system string
	turns  []ai.Turn
}

func (f *fakeChatGenerator) GenerateChat(_ context.Context, system string, turns []ai.Turn) (string, error) {
	f.calls = append(f.calls, fakeChatCall{system: system, turns: turns})
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) > 0 {
		reply := f.replies[0]
		f.replies = f.replies[1:]
		return reply, nil
	}
	return f.reply, nil
}

func testAnalysis() domain.AnalysisResult {
	return domain.AnalysisResult{
		RiskScore:               domain.RiskHigh,
		Summary:                 "Risky agreement.",
		PlainEnglishExplanation: "You take all the risk.",
		Clauses: []domain.ClauseFinding{
			{Text: "90 days written notice", RiskLevel: domain.RiskHigh, Explanation: "slow exit"},
		},
		Obligations:      []string{"pay upfront"},
		Penalties:        []string{"exit fee"},
		NegotiablePoints: []string{"notice period"},
	}
}

func newTestManager(t *testing.T, gen ai.ChatGenerator) *Manager {
	t.Helper()
	m, err := NewManager(gen, retry.NewPolicy(retry.DefaultMaxRetries, time.Millisecond, ai.IsRetryable))
	require.NoError(t, err)
	return m
}

func TestCreateSessionSeedsSystemContextAndWelcome(t *testing.T) {
	gen := &fakeChatGenerator{reply: "sure"}
	m := newTestManager(t, gen)

	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, "doc-1", s.DocumentID)

	turns := s.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, domain.RoleAssistant, turns[0].Role)
	require.Contains(t, turns[0].Content, "scanned your contract")

	got, ok := m.Session(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)
}

func TestSendAppendsPairAndForwardsHistory(t *testing.T) {
	gen := &fakeChatGenerator{reply: "If you miss a payment, the exit fee applies."}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	reply, err := s.Send(context.Background(), "What if I miss a payment?")
	require.NoError(t, err)
	require.Equal(t, "If you miss a payment, the exit fee applies.", reply)

	turns := s.Turns()
	require.Len(t, turns, 3, "welcome + user/assistant pair")
	require.Equal(t, domain.RoleUser, turns[1].Role)
	require.Equal(t, "What if I miss a payment?", turns[1].Content)
	require.Equal(t, domain.RoleAssistant, turns[2].Role)

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	require.Contains(t, call.system, "English")
	require.Contains(t, call.system, "CONTRACT ANALYSIS DATA:")
	require.Contains(t, call.system, `"riskScore":"High"`)
	// the forwarded history includes the welcome turn and the new user turn
	require.Len(t, call.turns, 2)
	require.Equal(t, "user", call.turns[1].Role)
}

func TestSendFailureDegradesToFallbackTurn(t *testing.T) {
	gen := &fakeChatGenerator{err: &ai.APIError{StatusCode: http.StatusBadRequest, Message: "boom"}}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	reply, err := s.Send(context.Background(), "hello?")
	require.NoError(t, err, "model failures must not surface to the caller")
	require.Equal(t, "Technical error. Please try again.", reply)

	turns := s.Turns()
	require.Len(t, turns, 3)
	require.Equal(t, "hello?", turns[1].Content)
	require.Equal(t, reply, turns[2].Content)
	require.Len(t, gen.calls, 1, "client errors are not retried")
}

func TestSendRetriesTransientFailures(t *testing.T) {
	gen := &fakeChatGenerator{err: &ai.APIError{StatusCode: http.StatusInternalServerError}}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	reply, err := s.Send(context.Background(), "still there?")
	require.NoError(t, err)
	require.Equal(t, fallbackMessage(domain.LanguageEnglish), reply)
	require.Len(t, gen.calls, retry.DefaultMaxRetries+1)
}

func TestNewManagerZeroPolicyStillRetries(t *testing.T) {
	gen := &fakeChatGenerator{err: &ai.APIError{StatusCode: http.StatusServiceUnavailable}}
	m, err := NewManager(gen, retry.Policy{InitialDelay: time.Millisecond})
	require.NoError(t, err)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	reply, err := s.Send(context.Background(), "still there?")
	require.NoError(t, err)
	require.Equal(t, fallbackMessage(domain.LanguageEnglish), reply)
	require.Len(t, gen.calls, retry.DefaultMaxRetries+1)
}

func TestSendOrderingAcrossMultipleTurns(t *testing.T) {
	gen := &fakeChatGenerator{replies: []string{"first answer", "second answer"}}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "two")
	require.NoError(t, err)

	turns := s.Turns()
	require.Len(t, turns, 5)
	wantRoles := []string{domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}
	for i, role := range wantRoles {
		require.Equal(t, role, turns[i].Role, "turn %d", i)
	}
	require.Equal(t, "second answer", turns[4].Content)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	gen := &fakeChatGenerator{reply: "unused"}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), "   ")
	require.Error(t, err)
	require.Len(t, s.Turns(), 1, "rejected input must not be recorded")
}

func TestHindiSessionUsesHindiWelcomeAndFallback(t *testing.T) {
	gen := &fakeChatGenerator{err: &ai.APIError{StatusCode: http.StatusBadRequest}}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageHindi)
	require.NoError(t, err)

	turns := s.Turns()
	require.Equal(t, welcomeMessage(domain.LanguageHindi), turns[0].Content)

	reply, err := s.Send(context.Background(), "नमस्ते")
	require.NoError(t, err)
	require.Equal(t, fallbackMessage(domain.LanguageHindi), reply)
}

func TestRemoveDropsSession(t *testing.T) {
	gen := &fakeChatGenerator{reply: "ok"}
	m := newTestManager(t, gen)
	s, err := m.CreateSession("doc-1", testAnalysis(), domain.LanguageEnglish)
	require.NoError(t, err)

	m.Remove(s.ID)
	_, ok := m.Session(s.ID)
	require.False(t, ok)
}
