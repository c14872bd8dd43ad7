package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/content"
	"github.com/brizzai/blogctl/internal/credentials"
	"github.com/brizzai/blogctl/internal/logger"
	"github.com/brizzai/blogctl/internal/requester"
	"github.com/brizzai/blogctl/internal/session"
)

// app holds the services a command works with
type app struct {
	fx      *fx.App
	session *session.Manager
	content *content.Service
}

// newApp loads the configuration and starts the dependency graph
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{}
	a.fx = fx.New(
		fx.Supply(cfg),
		credentials.Module,
		requester.Module,
		session.Module,
		content.Module,
		fx.Populate(&a.session, &a.content),
		fx.NopLogger,
	)
	if err := a.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), fx.DefaultTimeout)
	defer cancel()
	if err := a.fx.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := a.fx.Stop(ctx); err != nil {
		logger.Warn("failed to stop application", zap.Error(err))
	}
	_ = logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// run wraps a command body with application setup and teardown
func run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(commandContext(cmd), a, cmd, args)
	}
}
