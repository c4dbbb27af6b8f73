// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's zap logger. Output always
// goes to stderr so that the MCP stdio transport owns stdout.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("execution finished", zap.String("language", "python3"))
package logger
