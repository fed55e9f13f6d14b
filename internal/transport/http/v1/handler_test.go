package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/clearquote/assistant/internal/adapter/llm"
	"github.com/clearquote/assistant/internal/chat"
	"github.com/clearquote/assistant/internal/config"
	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/guardrail"
	"github.com/clearquote/assistant/internal/ratelimit"
	"github.com/clearquote/assistant/internal/retrieval"
	"github.com/clearquote/assistant/internal/store"
	"github.com/clearquote/assistant/tests/helpers"
)

type stubLoader struct {
	cfg domain.GuardrailConfig
}

func (l stubLoader) Load(ctx context.Context, tenantID string) (domain.GuardrailConfig, error) {
	return l.cfg, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

type testEnv struct {
	handler *Handler
	store   *store.SQLiteStore
	llm     *llm.MockClient
	echo    *echo.Echo
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	mock := llm.NewMockClient()

	svc := chat.New(
		st,
		ratelimit.New(rateLimit, nil),
		guardrail.NewMatcher(),
		stubLoader{},
		retrieval.NewRetriever(st, stubEmbedder{}, 5, 0.3),
		mock,
		&config.Config{LLMModel: "test-model"},
	)
	t.Cleanup(svc.Wait)

	h := NewHandler(svc, st)
	e := echo.New()
	h.RegisterRoutes(e)

	return &testEnv{handler: h, store: st, llm: mock, echo: e}
}

// do runs a request through the full router with identity headers attached.
func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}

func TestIdentityHeadersRequired(t *testing.T) {
	env := newTestEnv(t, 20)

	for _, target := range []string{
		"/v1/conversations",
		"/v1/conversations/conv_1/messages",
		"/v1/guardrail/events",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		env.echo.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
		require.Contains(t, rec.Body.String(), string(domain.ErrCodeUnauthorized), target)
	}
}
