package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// killGracePeriod bounds how long Wait blocks on pipes after the child is killed
const killGracePeriod = 2 * time.Second

// RealCommandRunner implements CommandRunner using os/exec.
// Cancelling ctx kills the child; exceeding MaxOutputBytes does too.
type RealCommandRunner struct{}

// RunCommand executes the given command and waits for it
func (RealCommandRunner) RunCommand(ctx context.Context, c Command) (CommandResult, error) {
	if len(c.Args) < 1 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Args[0], c.Args[1:]...) //nolint:gosec // args come from CommandBuilder
	cmd.WaitDelay = killGracePeriod
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	stdout := newCappedBuffer(c.MaxOutputBytes, cancel)
	stderr := newCappedBuffer(c.MaxOutputBytes, cancel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Status: ExitStatus{
			Code:            -1,
			TimedOut:        errors.Is(ctx.Err(), context.DeadlineExceeded),
			OutputTruncated: stdout.Exceeded() || stderr.Exceeded(),
		},
	}
	if cmd.ProcessState != nil {
		result.Status.Code = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
		case errors.Is(err, exec.ErrWaitDelay):
		case cmd.ProcessState != nil:
			// killed through the context
		default:
			return CommandResult{}, err
		}
	}
	return result, nil
}

// cappedBuffer keeps at most limit bytes and calls onExceed once when the
// child writes more.
type cappedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int
	exceeded bool
	onExceed func()
}

func newCappedBuffer(limit int, onExceed func()) *cappedBuffer {
	return &cappedBuffer{limit: limit, onExceed: onExceed}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		return b.buf.Write(p)
	}

	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		if remaining > 0 {
			b.buf.Write(p[:remaining])
		}
		if !b.exceeded {
			b.exceeded = true
			b.onExceed()
		}
		// Pretend we wrote everything so the copier keeps draining
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
