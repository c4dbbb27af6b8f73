package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
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
	return []string{"cpp", "java", "python3"}
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Transport: "stdio", HTTPPort: 8080},
		Sandbox: config.SandboxConfig{Backend: "docker", TimeoutSec: 15, InnerTimeoutSec: 12},
		Logging: config.LoggingConfig{Mode: "production", Level: "info"},
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      ToolName,
			Arguments: args,
		},
	}
}

func toolText(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	mockExecutor := &MockSandboxExecutor{}

	server, err := New(cfg, logger, mockExecutor)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, mockExecutor, server.sandboxExec)
	assert.NotNil(t, server.GetMCPServer())

	t.Run("RequiresExecutor", func(t *testing.T) {
		_, err := New(cfg, logger, nil)
		require.Error(t, err)
	})

	t.Run("ShutdownBeforeStart", func(t *testing.T) {
		assert.NoError(t, server.Shutdown(context.Background()))
	})
}

func TestHandleExecuteCode(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecuteResult{Stdout: "hi\n"}}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(ctx, callRequest(map[string]any{
			"code":     `print("hi")`,
			"language": "python3",
			"stdin":    "abc",
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.JSONEq(t, `{"stdout":"hi\n","stderr":""}`, toolText(result))
		assert.Equal(t, sandbox.ExecuteRequest{Language: "python3", Code: `print("hi")`, Stdin: "abc"}, mockExecutor.lastRequest)
	})

	t.Run("ClassifiedFailureIsNotToolError", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeResult: sandbox.ExecuteResult{
			Stderr: sandbox.MessageTimeout,
			Error:  sandbox.MessageTimeout,
			Kind:   sandbox.KindTimeout,
		}}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(ctx, callRequest(map[string]any{"code": "for(;;);", "language": "cpp"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &payload))
		assert.Equal(t, "Execution timed out", payload["error"])
		assert.Equal(t, "Execution timed out", payload["stderr"])
	})

	t.Run("MissingParameters", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(ctx, callRequest(map[string]any{"language": "python3"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "code parameter is required")

		result, err = server.handleExecuteCode(ctx, callRequest(map[string]any{"code": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "language parameter is required")
		assert.Zero(t, mockExecutor.calls)
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{executeError: sandbox.ErrUnsupportedLanguage}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(ctx, callRequest(map[string]any{"code": "x", "language": "cobol"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "unsupported language")
	})

	t.Run("HardErrorIsSanitized", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{
			executeError: errors.Join(sandbox.ErrWorkspaceUnavailable, errors.New("stat /srv/private/code-executor/java: permission denied")),
		}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		result, err := server.handleExecuteCode(ctx, callRequest(map[string]any{"code": "x", "language": "java"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "Execution failed")
		assert.NotContains(t, toolText(result), "/srv/private")
	})
}
