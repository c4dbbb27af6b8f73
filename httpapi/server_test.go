package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/coderunner/config"
	"github.com/isdmx/coderunner/sandbox"
)

// MockSandboxExecutor implements sandbox.SandboxExecutor for testing
type MockSandboxExecutor struct {
	executeResult sandbox.ExecuteResult
	executeError  error
	lastRequest   sandbox.ExecuteRequest
	calls         int
}

func (m *MockSandboxExecutor) Execute(_ context.Context, req sandbox.ExecuteRequest) (sandbox.ExecuteResult, error) {
	m.calls++
	m.lastRequest = req
	return m.executeResult, m.executeError
}

func (m *MockSandboxExecutor) Languages() []string {
	return []string{"java", "python3"}
}

func newTestServer(t *testing.T, exec sandbox.SandboxExecutor) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:  config.ServerConfig{Transport: "rest", HTTPPort: 8080},
		Sandbox: config.SandboxConfig{TimeoutSec: 15, CleanupTimeoutSec: 5},
	}
	return New(cfg, zaptest.NewLogger(t), exec)
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestExecuteEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecuteResult{Stdout: "hi\n", Duration: 10}}
		s := newTestServer(t, mockExecutor)

		rec := post(t, s, `{"code":"print(\"hi\")","language":"python3","stdin":""}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"stdout":"hi\n","stderr":""}`, rec.Body.String())
		assert.Equal(t, "python3", mockExecutor.lastRequest.Language)
	})

	t.Run("ClassifiedFailure", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecuteResult{
			Stderr: sandbox.MessageResourceLimit,
			Error:  sandbox.MessageResourceLimit,
			Kind:   sandbox.KindResourceLimitExceeded,
		}}
		s := newTestServer(t, mockExecutor)

		rec := post(t, s, `{"code":"class Main {}","language":"java"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		var body sandbox.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "resource limit exceeded.", body.Error)
		assert.Equal(t, "resource limit exceeded.", body.Stderr)
	})

	badRequests := []struct {
		name string
		body string
	}{
		{"MissingCode", `{"language":"python3"}`},
		{"MissingLanguage", `{"code":"print(1)"}`},
		{"MalformedJSON", `{"code":`},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			mockExecutor := &MockSandboxExecutor{}
			s := newTestServer(t, mockExecutor)

			rec := post(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, mockExecutor.calls)
		})
	}

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeError: fmt.Errorf("%w: cobol", sandbox.ErrUnsupportedLanguage)}
		s := newTestServer(t, mockExecutor)

		rec := post(t, s, `{"code":"x","language":"cobol"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported language: cobol")
	})

	t.Run("NoExecutionSlot", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeError: fmt.Errorf("%w: %w", sandbox.ErrNoExecutionSlot, context.Canceled),
		}
		s := newTestServer(t, mockExecutor)

		rec := post(t, s, `{"code":"x","language":"java"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"error":"no execution slot available"}`, rec.Body.String())
	})

	t.Run("WorkspaceUnavailable", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeError: fmt.Errorf("%w: stat /srv/private/code-executor/java: permission denied", sandbox.ErrWorkspaceUnavailable),
		}
		s := newTestServer(t, mockExecutor)

		rec := post(t, s, `{"code":"x","language":"java"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "workspace unavailable")
		assert.NotContains(t, rec.Body.String(), "/srv/private")
	})
}

func TestLanguagesEndpoint(t *testing.T) {
	s := newTestServer(t, &MockSandboxExecutor{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"languages":["java","python3"]}`, rec.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &MockSandboxExecutor{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestShutdownBeforeStart(t *testing.T) {
	s := newTestServer(t, &MockSandboxExecutor{})
	assert.NoError(t, s.Shutdown(context.Background()))
}
