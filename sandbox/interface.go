package sandbox

import (
	"context"
	"io/fs"
	"os"
	"time"
)

// ExecuteRequest represents the parameters for code execution
type ExecuteRequest struct {
	Language string
	Code     string
	Stdin    string
}

// ExecuteResult represents the result of code execution.
// Error is empty when Kind is KindNone.
type ExecuteResult struct {
	Stdout   string
	Stderr   string
	Error    string
	Kind     ErrorKind
	ExitCode int
	Duration time.Duration
}

// Response is the caller-facing view of an ExecuteResult shared by all transports
type Response struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error,omitempty"`
}

// Response drops the internal classification details
func (r ExecuteResult) Response() Response {
	return Response{Stdout: r.Stdout, Stderr: r.Stderr, Error: r.Error}
}

// SandboxExecutor defines the interface for sandbox execution
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
	Languages() []string
}

// Command is one supervised child process invocation
type Command struct {
	Args           []string
	Stdin          string
	MaxOutputBytes int // per stream, 0 means unbounded
}

// CommandResult is what the supervisor collected from the child
type CommandResult struct {
	Stdout string
	Stderr string
	Status ExitStatus
}

// CommandRunner defines an interface for executing system commands.
// A non-nil error means the child could not be started.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) (CommandResult, error)
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	Mkdir(path string, perm os.FileMode) error
	Chmod(path string, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadDir(dir string) ([]fs.DirEntry, error)
	Remove(path string) error
	RemoveAll(path string) error
	IsDir(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

func (RealFileSystem) Chmod(path string, perm os.FileMode) error {
	return os.Chmod(path, perm)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

func (RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (RealFileSystem) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// File permission constants. The container user is not the host user, so
// workspaces are world-writable and sources world-readable. Workspace
// permissions are applied with Chmod since Mkdir is subject to the umask.
const (
	DirPermission       = 0o755
	WorkspacePermission = 0o777
	FilePermission      = 0o644
)
