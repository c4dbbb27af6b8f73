// Package main is the entry point for the coderunner server.
//
// coderunner compiles and runs untrusted programs in thirteen languages
// inside Docker or Podman containers with networking disabled and CPU,
// memory, process and wall-clock caps applied, and returns their output with
// host paths scrubbed. It is served as a REST API (gin), as an MCP tool over
// stdio, or as an MCP tool over streamable HTTP.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
