package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/domain/interp"
	"github.com/lumendesk/backend/internal/domain/session"
	"github.com/lumendesk/backend/internal/infrastructure/logging"
	"github.com/lumendesk/backend/internal/infrastructure/monitoring"
	"github.com/lumendesk/backend/internal/providers/ai"
	"github.com/lumendesk/backend/internal/providers/auth"
	"github.com/lumendesk/backend/internal/providers/files"
	"github.com/lumendesk/backend/internal/shared/geo"
)

// Metric families register against the global Prometheus registry, so
// every test shares one collector.
var (
	metricsOnce sync.Once
	testMetrics *monitoring.Metrics
)

func sharedMetrics() *monitoring.Metrics {
	metricsOnce.Do(func() {
		testMetrics = monitoring.NewMetrics()
	})
	return testMetrics
}

type stubUpstream struct {
	configured bool
	decision   string
	decideErr  error
	image      string
	imageErr   error
	result     *ai.SearchResult
	searchErr  error
}

func (s *stubUpstream) Configured() bool { return s.configured }

func (s *stubUpstream) Decide(_ context.Context, _, _ string, _ map[string]interface{}) (string, error) {
	return s.decision, s.decideErr
}

func (s *stubUpstream) GenerateImage(_ context.Context, _ string) (string, error) {
	if s.imageErr != nil {
		return "", s.imageErr
	}
	return s.image, nil
}

func (s *stubUpstream) Search(_ context.Context, _ string) (*ai.SearchResult, error) {
	return s.result, s.searchErr
}

type testEnv struct {
	router   *gin.Engine
	desktops *desktop.Registry
	auth     *auth.Provider
	upstream *stubUpstream
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewNop()
	metrics := sharedMetrics()
	desktops := desktop.NewRegistry(geo.Rect{Width: 1920, Height: 1080}, desktop.DefaultIcons())
	fileStore := files.NewStore("")
	sessions := session.NewManager("")
	authProvider := auth.NewProvider("")
	upstream := &stubUpstream{configured: true}

	interpreter := interp.New(fileStore, upstream, interp.Config{
		Animator: interp.Instant{},
	})

	h := NewHandlers(log, metrics, desktops, fileStore, sessions, authProvider, upstream, interpreter)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.GET("/health", h.Health)

	authed := router.Group("/", middleware.Identity(authProvider))
	{
		authed.GET("/files", h.ListFiles)
		authed.POST("/files", h.SaveFile)
		authed.GET("/files/search", h.SearchFiles)
		authed.DELETE("/files/:type/:name", h.DeleteFile)
		authed.GET("/storage", h.StorageUsage)
		authed.GET("/sessions", h.ListSessions)
		authed.POST("/sessions", h.SaveSession)
		authed.GET("/sessions/:id", h.GetSession)
		authed.DELETE("/sessions/:id", h.DeleteSession)
		authed.POST("/sessions/:id/restore", h.RestoreSession)
		authed.GET("/desktop", h.GetDesktop)
		authed.PUT("/desktop/testing", h.SetTesting)
		authed.POST("/ai/chat", h.Chat)
		authed.POST("/ai/generate-image", h.GenerateImage)
		authed.POST("/ai/google-search", h.GoogleSearch)
	}

	return &testEnv{
		router:   router,
		desktops: desktops,
		auth:     authProvider,
		upstream: upstream,
	}
}

func (e *testEnv) register(t *testing.T, username string) {
	t.Helper()
	_, err := e.auth.Register(username, "hunter22")
	require.NoError(t, err)
}

func (e *testEnv) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUser, user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/signup", "", gin.H{"username": "alice", "password": "hunter22"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, user["id"])
	assert.Nil(t, user["password_hash"])

	w = env.do("POST", "/signup", "", gin.H{"username": "alice", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("POST", "/signup", "", gin.H{"username": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("POST", "/login", "", gin.H{"username": "alice", "password": "hunter22"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/login", "", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/login", "", gin.H{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/login", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("GET", "/files", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("GET", "/files", "mallory", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("GET", "/files", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFileLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("POST", "/files", "alice", gin.H{"type": "documents", "name": "notes", "content": "<p>hi</p>"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do("POST", "/files", "alice", gin.H{"type": "spreadsheets", "name": "x", "content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("GET", "/files", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["documents"], 1)
	assert.Empty(t, body["images"])

	w = env.do("GET", "/storage", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, decode(t, w)["used"].(float64), 0.0)

	w = env.do("GET", "/files/search?pattern=no*", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["matches"], 1)

	w = env.do("GET", "/files/search", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("DELETE", "/files/documents/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("DELETE", "/files/documents/notes", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("GET", "/sessions", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["sessions"])

	d := env.desktops.Get("alice")
	d.AppendMessage("assistant", "Hello!")

	w = env.do("POST", "/sessions", "alice", gin.H{"name": "before lunch"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["session_id"].(string)
	require.NotEmpty(t, id)

	w = env.do("GET", "/sessions/"+id, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/sessions/sess_unknown", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	d.AppendMessage("assistant", "Something after the save.")

	w = env.do("POST", "/sessions/"+id+"/restore", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	if got := len(d.Transcript()); got != 1 {
		t.Fatalf("transcript after restore = %d messages, want 1", got)
	}

	w = env.do("POST", "/sessions/sess_unknown/restore", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("DELETE", "/sessions/"+id, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/sessions/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDesktopEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("GET", "/desktop", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotNil(t, body["bounds"])
	assert.NotEmpty(t, body["icons"])
	assert.Equal(t, false, body["testing"])

	w = env.do("PUT", "/desktop/testing", "alice", gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.desktops.Get("alice").Testing())
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("POST", "/ai/chat", "alice", gin.H{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.upstream.configured = false
	w = env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env.upstream.configured = true

	env.upstream.decision = `not json`
	w = env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	env.upstream.decision = `[{"kind":"hover","selector":"#x"}]`
	w = env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	env.upstream.decision = `[{"kind":"speak","text":"Hello!"}]`
	w = env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "say hello"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotNil(t, body["decision"])
	transcript := body["transcript"].([]interface{})
	// Chat turns before this one also appended user messages.
	last := transcript[len(transcript)-1].(map[string]interface{})
	assert.Equal(t, "assistant", last["role"])
	assert.Equal(t, "Hello!", last["text"])

	env.desktops.Get("alice").SetTesting(true)
	w = env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatRejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.upstream.decision = `[{"kind":"speak","text":"Hello!"}]`

	d := env.desktops.Get("alice")
	require.True(t, d.TryRun())
	defer d.EndRun()

	w := env.do("POST", "/ai/chat", "alice", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGenerateImage(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("POST", "/ai/generate-image", "alice", gin.H{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.upstream.imageErr = ai.ErrNotConfigured
	w = env.do("POST", "/ai/generate-image", "alice", gin.H{"prompt": "a cat"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.upstream.imageErr = ai.ErrNoImage
	w = env.do("POST", "/ai/generate-image", "alice", gin.H{"prompt": "a cat"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["image"])

	env.upstream.imageErr = fmt.Errorf("upstream returned 500")
	w = env.do("POST", "/ai/generate-image", "alice", gin.H{"prompt": "a cat"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	env.upstream.imageErr = nil
	env.upstream.image = "data:image/png;base64,AAAA"
	w = env.do("POST", "/ai/generate-image", "alice", gin.H{"prompt": "a cat"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.upstream.image, decode(t, w)["image"])
}

func TestGoogleSearch(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	w := env.do("POST", "/ai/google-search", "alice", gin.H{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.upstream.searchErr = ai.ErrNotConfigured
	w = env.do("POST", "/ai/google-search", "alice", gin.H{"query": "go"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.upstream.searchErr = nil
	env.upstream.result = &ai.SearchResult{
		Summary: "Go is a programming language.",
		Sources: []ai.Source{{Title: "golang.org", URL: "https://golang.org"}},
	}
	w = env.do("POST", "/ai/google-search", "alice", gin.H{"query": "go"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Go is a programming language.", body["summary"])
	assert.Len(t, body["sources"], 1)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health", "", nil)
	rid := w.Header().Get(middleware.HeaderRequestID)
	require.NotEmpty(t, rid)
	assert.True(t, strings.HasPrefix(rid, "req_"), "expected generated id, got %q", rid)

	// A client-supplied id is echoed back unchanged.
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(middleware.HeaderRequestID, "req_client")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "req_client", rec.Header().Get(middleware.HeaderRequestID))
}
