// Package sandbox provides secure code execution capabilities.
//
// The sandbox package runs untrusted source code in one of the registered
// languages inside a Docker or Podman container with networking disabled,
// CPU, memory and process caps applied, no-new-privileges set and only a
// private workspace directory mounted.
//
// An execution moves through staging (a fresh workspace under
// <root>/<language>/<id> receives the source), running (the container
// command is supervised with an outer timeout and an output cap while
// timeout(1) enforces the inner one), collecting, cleanup and result
// shaping. Exit statuses 124, 137 and 139 become Timeout,
// ResourceLimitExceeded and SegmentationFault; other non-zero statuses carry
// the sanitized diagnostic.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Language: "python3",
//	    Code:     "print('Hello, World!')",
//	})
package sandbox
