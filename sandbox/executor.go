package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Settings holds the orchestrator knobs that are not per-language
type Settings struct {
	Runtime        string        // container runtime binary
	OuterTimeout   time.Duration // supervision timeout around the whole child lifecycle
	MaxOutputBytes int           // captured output cap per stream
	MaxConcurrent  int           // executions admitted at once, 0 means unbounded
	KillTimeout    time.Duration // bound on removing a container after a supervisor kill
}

// DefaultSettings returns the stock orchestrator settings
func DefaultSettings() Settings {
	return Settings{
		Runtime:        "docker",
		OuterTimeout:   15 * time.Second,
		MaxOutputBytes: 1024 * 1024,
		MaxConcurrent:  8,
		KillTimeout:    10 * time.Second,
	}
}

// ContainerExecutor runs submissions inside containers. It implements SandboxExecutor.
type ContainerExecutor struct {
	logger     *zap.Logger
	settings   Settings
	registry   *Registry
	policy     LimitPolicy
	builder    *CommandBuilder
	workspaces *WorkspaceManager
	cmdRunner  CommandRunner
	fs         FileSystem
	sem        *semaphore.Weighted
	root       string
	cleanupTTL time.Duration
}

// ExecutorOption defines a functional option for ContainerExecutor
type ExecutorOption func(*ContainerExecutor)

// WithCommandRunner sets the CommandRunner for ContainerExecutor
func WithCommandRunner(cmdRunner CommandRunner) ExecutorOption {
	return func(e *ContainerExecutor) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for ContainerExecutor
func WithFileSystem(fs FileSystem) ExecutorOption {
	return func(e *ContainerExecutor) {
		e.fs = fs
	}
}

// WithWorkspaceRoot sets the parent of the per-language workspace locations
func WithWorkspaceRoot(root string) ExecutorOption {
	return func(e *ContainerExecutor) {
		e.root = root
	}
}

// WithCleanupTimeout bounds how long workspace removal may block a request
func WithCleanupTimeout(d time.Duration) ExecutorOption {
	return func(e *ContainerExecutor) {
		e.cleanupTTL = d
	}
}

// NewContainerExecutor creates a ContainerExecutor with default implementations and optional interfaces
func NewContainerExecutor(logger *zap.Logger, registry *Registry, policy LimitPolicy, settings Settings, opts ...ExecutorOption) (*ContainerExecutor, error) {
	if registry == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	if err := policy.Validate(settings.OuterTimeout); err != nil {
		return nil, fmt.Errorf("invalid resource policy: %w", err)
	}
	if settings.Runtime == "" {
		settings.Runtime = "docker"
	}

	e := &ContainerExecutor{
		logger:     logger,
		settings:   settings,
		registry:   registry,
		policy:     policy,
		builder:    NewCommandBuilder(settings.Runtime),
		cmdRunner:  &RealCommandRunner{}, // Default implementation
		fs:         &RealFileSystem{},    // Default implementation
		root:       "./code-executor",
		cleanupTTL: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	// the runtime treats a relative -v source as a named volume
	root, err := filepath.Abs(e.root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %q: %w", e.root, err)
	}
	e.root = root

	e.workspaces = NewWorkspaceManager(logger, e.fs, e.root, e.cleanupTTL)
	if settings.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(settings.MaxConcurrent))
	}
	return e, nil
}

// Languages returns the registered language keys
func (e *ContainerExecutor) Languages() []string {
	return e.registry.Languages()
}

// PrepareWorkspaces creates the per-language workspace locations
func (e *ContainerExecutor) PrepareWorkspaces() error {
	return e.workspaces.Prepare(e.registry.Languages())
}

// Execute runs req.Code in a fresh sandbox. Structural failures are returned
// as errors; everything that happens once the child was spawned is reported
// in the result.
func (e *ContainerExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return ExecuteResult{}, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if req.Language == "" {
		return ExecuteResult{}, fmt.Errorf("%w: language is required", ErrInvalidRequest)
	}
	profile, err := e.registry.Resolve(req.Language)
	if err != nil {
		return ExecuteResult{}, err
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return ExecuteResult{}, fmt.Errorf("%w: %w", ErrNoExecutionSlot, err)
		}
		defer e.sem.Release(1)
	}

	e.logger.Info("code execution requested",
		zap.String("language", profile.Key),
		zap.Int("code_len", len(req.Code)),
		zap.Int("stdin_len", len(req.Stdin)))

	// Staging
	ws, err := e.workspaces.Stage(profile, req.Code)
	if err != nil {
		e.logger.Error("failed to stage workspace", zap.String("language", profile.Key), zap.Error(err))
		return ExecuteResult{}, err
	}
	defer ws.Cleanup()

	// Running
	limits := e.policy.LimitsFor(profile)
	containerName := "coderunner-" + ws.ID
	invocation := profile.Invocation(ws.SandboxSourcePath(e.builder.MountPath))
	cmdLine := e.builder.Build(profile.Image, ws.Dir, invocation, limits,
		WithContainerName(containerName),
		WithEnvironment(profile.Environment))

	args, err := shlex.Split(cmdLine)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("parse sandbox command: %w", err)
	}
	e.logger.Debug("sandbox command", zap.String("command", cmdLine))

	// The outer timeout is the only cancellation trigger once the child runs
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.OuterTimeout)
	defer cancel()

	start := time.Now()
	out, err := e.cmdRunner.RunCommand(runCtx, Command{
		Args:           args,
		Stdin:          req.Stdin,
		MaxOutputBytes: e.settings.MaxOutputBytes,
	})
	duration := time.Since(start)
	if err != nil {
		e.logger.Error("failed to start sandbox", zap.String("runtime", e.settings.Runtime), zap.Error(err))
		return ExecuteResult{}, fmt.Errorf("%w: %w", ErrSandboxUnavailable, err)
	}

	// Collecting
	if out.Status.TimedOut || out.Status.OutputTruncated {
		e.logger.Warn("sandbox killed by supervisor",
			zap.String("container", containerName),
			zap.Bool("timed_out", out.Status.TimedOut),
			zap.Bool("output_truncated", out.Status.OutputTruncated))
		e.removeContainer(containerName)
	}

	result := shapeResult(profile, out)
	result.Duration = duration

	e.logger.Info("code execution completed",
		zap.String("language", profile.Key),
		zap.Int("exit_code", result.ExitCode),
		zap.String("error_kind", string(result.Kind)),
		zap.Duration("duration", duration),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return result, nil
}

// removeContainer force-removes a container whose client was killed. The
// container outlives its docker run client otherwise.
func (e *ContainerExecutor) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.killTimeout())
	defer cancel()

	out, err := e.cmdRunner.RunCommand(ctx, Command{
		Args:           []string{e.settings.Runtime, "rm", "-f", name},
		MaxOutputBytes: 64 * 1024,
	})
	if err == nil && out.Status.Code != 0 {
		err = errors.New(strings.TrimSpace(out.Stderr))
	}
	if err != nil {
		e.logger.Warn("failed to remove container after kill", zap.String("container", name), zap.Error(err))
	}
}

func (e *ContainerExecutor) killTimeout() time.Duration {
	if e.settings.KillTimeout > 0 {
		return e.settings.KillTimeout
	}
	return 10 * time.Second
}

// shapeResult turns the collected child output into a user-safe result
func shapeResult(profile LanguageProfile, out CommandResult) ExecuteResult {
	result := ExecuteResult{
		Stdout:   out.Stdout,
		Stderr:   profile.FilterStderr(out.Stderr),
		ExitCode: out.Status.Code,
		Kind:     Classify(out.Status),
	}

	switch result.Kind {
	case KindNone:
		return result
	case KindRuntimeOrCompileError:
		result.Error = runtimeErrorMessage(result.Stderr, result.ExitCode)
		result.Stderr = Sanitize(result.Stderr)
	default:
		result.Error = result.Kind.Message()
		result.Stderr = result.Error
	}
	result.Stdout = Sanitize(result.Stdout)
	return result
}
