package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"docguard/internal/session"
	"docguard/pkg/ai"
	"docguard/pkg/chat"
	"docguard/pkg/domain"
	"docguard/pkg/lifecycle"
	"docguard/pkg/retry"
	"docguard/pkg/store"
)

type stubAnalyzer struct {
	err error
}

func (a *stubAnalyzer) AnalyzeContract(ctx context.Context, text string, language domain.Language) (domain.AnalysisResult, error) {
	if a.err != nil {
		return domain.AnalysisResult{}, a.err
	}
	return domain.AnalysisResult{
		RiskScore:               domain.RiskMedium,
		Summary:                 "Stub summary.",
		PlainEnglishExplanation: "Stub explanation.",
		Clauses:                 []domain.ClauseFinding{},
	}, nil
}

type stubChatGenerator struct {
	reply string
}

func (g *stubChatGenerator) GenerateChat(ctx context.Context, systemPrompt string, turns []ai.Turn) (string, error) {
	return g.reply, nil
}

type testEnv struct {
	server *Server
	store  *store.MemoryStore
	ts     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	redisSrv := miniredis.RunT(t)
	st := store.NewMemoryStore()
	tokens, err := session.NewTokenManager(session.Config{Secret: "test-secret"}, session.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	orch, err := lifecycle.NewOrchestrator(st, &stubAnalyzer{}, lifecycle.Config{})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	chatMgr, err := chat.NewManager(&stubChatGenerator{reply: "Here is what that clause means."}, retry.Policy{})
	if err != nil {
		t.Fatalf("chat manager: %v", err)
	}
	srv, err := New(Config{
		Store:        st,
		Tokens:       tokens,
		Orchestrator: orch,
		Chat:         chatMgr,
		RedisAddr:    redisSrv.Addr(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: srv, store: st, ts: ts}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %+v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("missing token in login response: %+v", body)
	}
	return token
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %+v", resp.StatusCode, body)
	}
}

func TestLoginCreatesProfile(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	resp, body := e.request(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}
	if body["email"] != "owner@example.com" {
		t.Fatalf("unexpected profile: %+v", body)
	}
}

func TestLoginRejectsInvalidEmail(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.request(t, http.MethodGet, "/api/documents", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	resp, _ := e.request(t, http.MethodPost, "/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d", resp.StatusCode)
	}
	resp, _ = e.request(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", resp.StatusCode)
	}
}

func TestAnalyzeAndList(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	resp, doc := e.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{
		"name": "lease.txt",
		"text": "This Agreement is made between the parties.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status %d: %+v", resp.StatusCode, doc)
	}
	if doc["status"] != "completed" {
		t.Fatalf("expected completed document, got %+v", doc)
	}
	if doc["analysis"] == nil {
		t.Fatal("completed document must carry an analysis")
	}

	resp, list := e.request(t, http.MethodGet, "/api/documents", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	if count, _ := list["count"].(float64); count != 1 {
		t.Fatalf("expected one document, got %+v", list)
	}
}

func TestListIsOwnerScoped(t *testing.T) {
	e := newTestEnv(t)
	tokenA := e.login(t, "a@example.com")
	tokenB := e.login(t, "b@example.com")

	resp, _ := e.request(t, http.MethodPost, "/api/documents/analyze", tokenA, map[string]string{
		"name": "lease.txt", "text": "body",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status %d", resp.StatusCode)
	}
	_, list := e.request(t, http.MethodGet, "/api/documents", tokenB, nil)
	if count, _ := list["count"].(float64); count != 0 {
		t.Fatalf("expected empty list for other owner, got %+v", list)
	}
}

func TestDemoEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")
	resp, doc := e.request(t, http.MethodPost, "/api/documents/demo", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("demo status %d: %+v", resp.StatusCode, doc)
	}
	if name, _ := doc["fileName"].(string); !strings.Contains(name, "Sample") {
		t.Fatalf("unexpected demo document name: %+v", doc)
	}
}

func TestPreferencesUpdate(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")
	resp, body := e.request(t, http.MethodPatch, "/api/users/me/preferences", token, map[string]string{"language": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preferences status %d: %+v", resp.StatusCode, body)
	}
	if body["language"] != "hi" {
		t.Fatalf("expected language hi, got %+v", body)
	}
}

func TestChatFlow(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	_, doc := e.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{
		"name": "lease.txt", "text": "body",
	})
	id, _ := doc["id"].(string)
	if id == "" {
		t.Fatalf("missing document id: %+v", doc)
	}

	resp, reply := e.request(t, http.MethodPost, "/api/documents/"+id+"/chat", token, map[string]string{
		"message": "What does the indemnity clause mean?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %+v", resp.StatusCode, reply)
	}
	if reply["reply"] != "Here is what that clause means." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	sessionID, _ := reply["sessionId"].(string)
	if sessionID == "" {
		t.Fatalf("missing session id: %+v", reply)
	}

	// Resume the same session; welcome + 2 exchanges = 5 turns.
	resp, reply = e.request(t, http.MethodPost, "/api/documents/"+id+"/chat", token, map[string]string{
		"message":   "And the penalty clause?",
		"sessionId": sessionID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat resume status %d: %+v", resp.StatusCode, reply)
	}
	turns, _ := reply["turns"].([]any)
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns after two exchanges, got %d", len(turns))
	}
}

func TestChatRejectsBlankMessage(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	_, doc := e.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{
		"name": "lease.txt", "text": "body",
	})
	id, _ := doc["id"].(string)
	resp, body := e.request(t, http.MethodPost, "/api/documents/"+id+"/chat", token, map[string]string{
		"message": "   ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", resp.StatusCode)
	}
	if body["error"] != "message is required" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestChatRequiresCompletedDocument(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "owner@example.com")

	// Force a failed document via empty text.
	_, doc := e.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{
		"name": "blank.txt", "text": "   ",
	})
	id, _ := doc["id"].(string)
	resp, _ := e.request(t, http.MethodPost, "/api/documents/"+id+"/chat", token, map[string]string{
		"message": "hello",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for non-completed document, got %d", resp.StatusCode)
	}
}

func TestDocumentNotFoundForOtherOwner(t *testing.T) {
	e := newTestEnv(t)
	tokenA := e.login(t, "a@example.com")
	tokenB := e.login(t, "b@example.com")

	_, doc := e.request(t, http.MethodPost, "/api/documents/analyze", tokenA, map[string]string{
		"name": "lease.txt", "text": "body",
	})
	id, _ := doc["id"].(string)
	resp, _ := e.request(t, http.MethodGet, "/api/documents/"+id, tokenB, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign document, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimited(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	st := store.NewMemoryStore()
	tokens, err := session.NewTokenManager(session.Config{Secret: "test-secret"}, nil)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	orch, err := lifecycle.NewOrchestrator(st, &stubAnalyzer{}, lifecycle.Config{})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	chatMgr, err := chat.NewManager(&stubChatGenerator{reply: "ok"}, retry.Policy{})
	if err != nil {
		t.Fatalf("chat manager: %v", err)
	}
	srv, err := New(Config{
		Store:                   st,
		Tokens:                  tokens,
		Orchestrator:            orch,
		Chat:                    chatMgr,
		RedisAddr:               redisSrv.Addr(),
		LoginRateLimitPerMinute: 2,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	post := func() int {
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json",
			strings.NewReader(fmt.Sprintf("{%q:%q}", "email", "owner@example.com")))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if post() != http.StatusOK || post() != http.StatusOK {
		t.Fatal("first two logins should pass")
	}
	if post() != http.StatusTooManyRequests {
		t.Fatal("third login should be rate limited")
	}
}
