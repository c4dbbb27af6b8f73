package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies how a sandboxed execution ended
type ErrorKind string

// Error kinds. KindNone means the program exited with status 0.
const (
	KindNone                  ErrorKind = ""
	KindTimeout               ErrorKind = "timeout"
	KindResourceLimitExceeded ErrorKind = "resource_limit_exceeded"
	KindSegmentationFault     ErrorKind = "segmentation_fault"
	KindRuntimeOrCompileError ErrorKind = "runtime_or_compile_error"
)

// Exit codes produced by timeout(1) and by signals inside the container
const (
	ExitCodeTimeout  = 124
	ExitCodeKilled   = 137 // 128 + SIGKILL, OOM killer included
	ExitCodeSegfault = 139 // 128 + SIGSEGV
)

// User-facing messages for the fixed error kinds
const (
	MessageTimeout       = "Execution timed out"
	MessageResourceLimit = "resource limit exceeded."
	MessageSegfault      = "Segmentation fault"
)

// ExitStatus is what the supervisor observed when the child finished
type ExitStatus struct {
	Code            int  // -1 when the child did not exit on its own
	TimedOut        bool // killed by the outer supervision timeout
	OutputTruncated bool // killed for exceeding the captured-output cap
}

// ClassifyExitCode maps a process exit code to an error kind
func ClassifyExitCode(code int) ErrorKind {
	switch code {
	case 0:
		return KindNone
	case ExitCodeTimeout:
		return KindTimeout
	case ExitCodeKilled:
		return KindResourceLimitExceeded
	case ExitCodeSegfault:
		return KindSegmentationFault
	default:
		return KindRuntimeOrCompileError
	}
}

// Classify maps the observed exit status to an error kind.
// Supervisor kills take precedence over the exit code.
func Classify(status ExitStatus) ErrorKind {
	switch {
	case status.TimedOut:
		return KindTimeout
	case status.OutputTruncated:
		return KindResourceLimitExceeded
	}
	return ClassifyExitCode(status.Code)
}

// Message returns the fixed user-facing message for a kind, or "" when the
// kind carries the underlying diagnostic instead.
func (k ErrorKind) Message() string {
	switch k {
	case KindTimeout:
		return MessageTimeout
	case KindResourceLimitExceeded:
		return MessageResourceLimit
	case KindSegmentationFault:
		return MessageSegfault
	}
	return ""
}

var (
	absolutePathRe  = regexp.MustCompile(`/[^\s:()]*/([^/\s:()]+):`)
	parenPathRe     = regexp.MustCompile(`\([^()]*?/([^/\s()]+)\)`)
	tracebackPathRe = regexp.MustCompile(`at\s+\S*?/([^/\s]+):`)
	barePathRe      = regexp.MustCompile(`(^|[\s'"=])/(?:[^\s/:()'"]+/)+([^\s/:()'"]+)`)
	versionBannerRe = regexp.MustCompile(`(Node\.js|Python|Ruby|PHP|OpenJDK|Java\(TM\)|Mono|Kotlin|Scala|Swift|rustc) v?\d+\.\d+(\.\d+)?[-\w.+]*`)
)

// Sanitize strips host paths down to their final component and removes
// runtime version banners from a diagnostic message.
func Sanitize(message string) string {
	message = absolutePathRe.ReplaceAllString(message, "$1:")
	message = parenPathRe.ReplaceAllString(message, "($1)")
	message = tracebackPathRe.ReplaceAllString(message, "at $1:")
	message = barePathRe.ReplaceAllString(message, "$1$2")
	message = versionBannerRe.ReplaceAllString(message, "")
	return strings.TrimSpace(message)
}

// runtimeErrorMessage is the error text for KindRuntimeOrCompileError
func runtimeErrorMessage(stderr string, code int) string {
	if msg := Sanitize(stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("Process exited with code %d", code)
}
