package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// CommandBuilder assembles the container runtime command line for one execution
type CommandBuilder struct {
	Runtime   string // docker or podman
	MountPath string // in-sandbox location of the workspace
}

// NewCommandBuilder returns a builder for the given runtime binary
func NewCommandBuilder(runtime string) *CommandBuilder {
	return &CommandBuilder{Runtime: runtime, MountPath: SandboxWorkdir}
}

type buildOptions struct {
	containerName string
	env           map[string]string
}

// BuildOption customizes a single Build call
type BuildOption func(*buildOptions)

// WithContainerName names the container so it can be removed on outer timeout
func WithContainerName(name string) BuildOption {
	return func(o *buildOptions) {
		o.containerName = name
	}
}

// WithEnvironment passes variables into the container. Names are upper-cased.
func WithEnvironment(env map[string]string) BuildOption {
	return func(o *buildOptions) {
		o.env = env
	}
}

// Build returns the full command line. The workspace is the only bind mount,
// networking is disabled and runInvocation is wrapped in the inner timeout.
func (b *CommandBuilder) Build(image, workspacePath, runInvocation string, limits ResourceLimits, opts ...BuildOption) string {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	parts := []string{b.Runtime, "run", "--rm", "-i"}
	if o.containerName != "" {
		parts = append(parts, "--name", o.containerName)
	}
	parts = append(parts,
		"--network", "none",
		"--cpus="+quote(limits.CPUFlag()),
		"--memory="+quote(limits.MemoryFlag()),
		"--pids-limit", fmt.Sprintf("%d", limits.PidsLimit),
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"-v", quote(workspacePath+":"+b.MountPath),
		"-w", b.MountPath,
	)

	keys := make([]string, 0, len(o.env))
	for k := range o.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-e", quote(strings.ToUpper(k)+"="+o.env[k]))
	}

	parts = append(parts,
		image,
		"timeout", fmt.Sprintf("%ds", limits.TimeoutSeconds),
		"sh", "-c", quote(runInvocation),
	)
	return strings.Join(parts, " ")
}

// quote wraps s in double quotes, escaping the two characters shlex treats
// specially inside them.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
