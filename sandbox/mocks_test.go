package sandbox

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	mu       sync.Mutex
	calls    []Command
	results  map[string]CommandResult // keyed by args[1] ("run", "rm")
	startErr error
	onRun    func(ctx context.Context, cmd Command) CommandResult
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, cmd Command) (CommandResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	onRun := m.onRun
	m.mu.Unlock()

	if len(cmd.Args) > 1 && cmd.Args[1] == "run" {
		if m.startErr != nil {
			return CommandResult{}, m.startErr
		}
		if onRun != nil {
			return onRun(ctx, cmd), nil
		}
	}
	if len(cmd.Args) > 1 {
		if result, ok := m.results[cmd.Args[1]]; ok {
			return result, nil
		}
	}
	return CommandResult{}, nil
}

func (m *MockCommandRunner) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

func (m *MockCommandRunner) CallsTo(sub string) []Command {
	var out []Command
	for _, c := range m.Calls() {
		if len(c.Args) > 1 && c.Args[1] == sub {
			out = append(out, c)
		}
	}
	return out
}

// MockFileSystem implements FileSystem for testing. It keeps an in-memory
// tree and returns injected errors per path.
type MockFileSystem struct {
	mu           sync.Mutex
	dirs         map[string]bool
	files        map[string][]byte
	mkdirErrors  map[string]error
	chmodErrors  map[string]error
	modes        map[string]os.FileMode
	writeErrors  map[string]error
	removeErrors map[string]error
	statErrors   map[string]error
	removeCalls  []string
	readDirCalls int
	mutations    int
}

func NewMockFileSystem(dirs ...string) *MockFileSystem {
	m := &MockFileSystem{
		dirs:         map[string]bool{},
		files:        map[string][]byte{},
		mkdirErrors:  map[string]error{},
		chmodErrors:  map[string]error{},
		modes:        map[string]os.FileMode{},
		writeErrors:  map[string]error{},
		removeErrors: map[string]error{},
		statErrors:   map[string]error{},
	}
	for _, d := range dirs {
		m.dirs[d] = true
	}
	return m
}

func (m *MockFileSystem) Mkdir(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	if err, ok := m.mkdirErrors[path]; ok {
		return err
	}
	m.dirs[path] = true
	return nil
}

func (m *MockFileSystem) Chmod(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	if err, ok := m.chmodErrors[path]; ok {
		return err
	}
	m.modes[path] = perm
	return nil
}

func (m *MockFileSystem) Mode(path string) os.FileMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modes[path]
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return m.Mkdir(path, perm)
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	if err, ok := m.writeErrors[filename]; ok {
		return err
	}
	m.files[filename] = append([]byte(nil), data...)
	return nil
}

func (m *MockFileSystem) ReadDir(dir string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirCalls++
	var entries []fs.DirEntry
	for name := range m.files {
		if parent, base := splitPath(name); parent == dir {
			entries = append(entries, mockEntry(base))
		}
	}
	return entries, nil
}

func (m *MockFileSystem) Remove(path string) error {
	return m.remove(path)
}

func (m *MockFileSystem) RemoveAll(path string) error {
	return m.remove(path)
}

func (m *MockFileSystem) remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, path)
	if err, ok := m.removeErrors[path]; ok {
		return err
	}
	delete(m.files, path)
	delete(m.dirs, path)
	return nil
}

func (m *MockFileSystem) IsDir(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.statErrors[path]; ok {
		return false, err
	}
	return m.dirs[path], nil
}

func (m *MockFileSystem) File(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

func (m *MockFileSystem) RemoveCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removeCalls...)
}

func (m *MockFileSystem) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

func splitPath(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

type mockEntry string

func (e mockEntry) Name() string { return string(e) }
func (mockEntry) IsDir() bool { return false }
func (mockEntry) Type() fs.FileMode { return 0 }
func (mockEntry) Info() (fs.FileInfo, error) { return nil, fs.ErrNotExist }
