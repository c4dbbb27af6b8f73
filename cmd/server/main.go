package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/coderunner/config"
	"github.com/isdmx/coderunner/httpapi"
	"github.com/isdmx/coderunner/logger"
	"github.com/isdmx/coderunner/mcpserver"
	"github.com/isdmx/coderunner/sandbox"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			sandbox.NewExecutor,
			mcpserver.New,
			httpapi.New,
		),

		// Start the transport selected by server.transport
		fx.Invoke(registerTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

type transportParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *config.Config
	Logger     *zap.Logger
	MCP        *mcpserver.MCPServer
	REST       *httpapi.Server
}

func registerTransport(p transportParams) error {
	var serve func() error
	var stop func(context.Context) error

	switch p.Config.Server.Transport {
	case "stdio":
		serve = p.MCP.ServeStdio
		stop = func(context.Context) error { return nil }
	case "http":
		serve = p.MCP.ServeHTTP
		stop = p.MCP.Shutdown
	case "rest":
		serve = p.REST.ListenAndServe
		stop = p.REST.Shutdown
	default:
		return fmt.Errorf("unsupported transport: %s", p.Config.Server.Transport)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := serve()
				if err != nil {
					p.Logger.Error("transport stopped", zap.String("transport", p.Config.Server.Transport), zap.Error(err))
				}
				// stdio returns when the client closes the stream
				if shutdownErr := p.Shutdowner.Shutdown(); shutdownErr != nil {
					p.Logger.Warn("failed to request shutdown", zap.Error(shutdownErr))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping transport", zap.String("transport", p.Config.Server.Transport))
			return stop(ctx)
		},
	})
	return nil
}
