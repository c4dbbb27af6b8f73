// Package mcpserver exposes the sandbox executor as a Model Context Protocol tool.
//
// The execute_code tool takes code, language and an optional stdin and
// returns a JSON text result {"stdout", "stderr", "error"}. Requests the
// executor rejects (unknown language, empty code) come back as tool errors
// rather than protocol errors. The server runs on stdio or on the
// streamable HTTP transport of mark3labs/mcp-go.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, sandboxExecutor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
