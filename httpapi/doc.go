// Package httpapi serves the sandbox executor over a small JSON REST API.
//
// Routes:
//
//	POST /api/execute    {"code", "language", "stdin"} -> {"stdout", "stderr", "error"}
//	GET  /api/languages  registered language keys
//	GET  /healthz        liveness
//
// Classified execution failures (timeouts, resource limits, crashes, compile
// errors) are normal 200 responses with the error field set. Missing fields
// and unknown languages are 400, a request that gave up waiting for an
// execution slot is 503 and deployment faults are 500.
package httpapi
