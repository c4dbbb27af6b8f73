package sandbox

import "errors"

// Structural failures, raised before any sandbox process is spawned
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrWorkspaceUnavailable = errors.New("workspace unavailable")
)

// ErrSandboxUnavailable means the container runtime could not be started at all
var ErrSandboxUnavailable = errors.New("sandbox runtime unavailable")

// ErrNoExecutionSlot means the caller gave up while waiting for admission
var ErrNoExecutionSlot = errors.New("no execution slot available")

// IsStructural reports whether err is a pre-flight configuration or request failure
func IsStructural(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnsupportedLanguage) ||
		errors.Is(err, ErrWorkspaceUnavailable)
}

// IsClientError reports whether err was caused by the request rather than the deployment
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnsupportedLanguage)
}
