package sandbox

import (
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is the private staging directory of one in-flight execution
type Workspace struct {
	ID         string
	Dir        string // host path, bind-mounted into the sandbox
	SourceFile string // host path of the submitted source
	SourceName string

	manager     *WorkspaceManager
	cleanupOnce sync.Once
}

// SandboxSourcePath is the source path as seen from inside the container
func (w *Workspace) SandboxSourcePath(mountPath string) string {
	return path.Join(mountPath, w.SourceName)
}

// Cleanup removes every file in the workspace and then the workspace itself.
// It runs at most once, never fails and gives up waiting after the manager's
// cleanup timeout.
func (w *Workspace) Cleanup() {
	w.cleanupOnce.Do(func() {
		w.manager.clean(w)
	})
}

// WorkspaceManager stages workspaces under <root>/<language>/<id>
type WorkspaceManager struct {
	root           string
	fs             FileSystem
	logger         *zap.Logger
	cleanupTimeout time.Duration
	newID          func() string
}

// NewWorkspaceManager creates a manager rooted at root
func NewWorkspaceManager(logger *zap.Logger, fs FileSystem, root string, cleanupTimeout time.Duration) *WorkspaceManager {
	return &WorkspaceManager{
		root:           root,
		fs:             fs,
		logger:         logger,
		cleanupTimeout: cleanupTimeout,
		newID:          uuid.NewString,
	}
}

// LanguageDir returns the per-language workspace location
func (m *WorkspaceManager) LanguageDir(language string) string {
	return filepath.Join(m.root, language)
}

// Prepare creates the per-language locations. It is a deployment step run
// once at startup, not per request.
func (m *WorkspaceManager) Prepare(languages []string) error {
	for _, lang := range languages {
		dir := m.LanguageDir(lang)
		if err := m.fs.MkdirAll(dir, DirPermission); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrWorkspaceUnavailable, dir, err)
		}
	}
	return nil
}

// Stage creates a fresh workspace for profile and writes code into it
func (m *WorkspaceManager) Stage(profile LanguageProfile, code string) (*Workspace, error) {
	langDir := m.LanguageDir(profile.Key)
	ok, err := m.fs.IsDir(langDir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrWorkspaceUnavailable, langDir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: language directory not found for %s", ErrWorkspaceUnavailable, profile.Key)
	}

	id := m.newID()
	dir := filepath.Join(langDir, id)
	if err := m.fs.Mkdir(dir, WorkspacePermission); err != nil {
		return nil, fmt.Errorf("%w: create workspace: %w", ErrWorkspaceUnavailable, err)
	}

	ws := &Workspace{
		ID:         id,
		Dir:        dir,
		SourceName: profile.SourceFileName(id),
		manager:    m,
	}
	ws.SourceFile = filepath.Join(dir, ws.SourceName)

	// the sandbox user writes build output next to the source
	if err := m.fs.Chmod(dir, WorkspacePermission); err != nil {
		ws.Cleanup()
		return nil, fmt.Errorf("%w: chmod workspace: %w", ErrWorkspaceUnavailable, err)
	}

	if err := m.fs.WriteFile(ws.SourceFile, []byte(code), FilePermission); err != nil {
		ws.Cleanup()
		return nil, fmt.Errorf("%w: write source: %w", ErrWorkspaceUnavailable, err)
	}
	return ws, nil
}

func (m *WorkspaceManager) clean(w *Workspace) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.removeContents(w.Dir)
	}()

	if m.cleanupTimeout <= 0 {
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(m.cleanupTimeout):
		m.logger.Warn("workspace cleanup timed out", zap.String("path", w.Dir), zap.Duration("timeout", m.cleanupTimeout))
	}
}

func (m *WorkspaceManager) removeContents(dir string) {
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		m.logger.Warn("failed to list workspace", zap.String("path", dir), zap.Error(err))
	}
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if err := m.fs.RemoveAll(p); err != nil {
			m.logger.Warn("failed to remove workspace file", zap.String("path", p), zap.Error(err))
		}
	}
	if err := m.fs.Remove(dir); err != nil {
		m.logger.Warn("failed to remove workspace directory", zap.String("path", dir), zap.Error(err))
	}
}
