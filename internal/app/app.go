package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hrustic/seedhub/internal/gateway"
)

// App orchestrates the lifecycle of the local gateway and the session
// stack behind it.
type App struct {
	cfg     *Config
	session *Session
	gateway *gateway.Gateway
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sess, err := BuildSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build session stack: %w", err)
	}

	var opts []gateway.Option
	if cfg.UI.Assets != "" {
		opts = append(opts, gateway.WithAssets(cfg.UI.Assets))
	}

	gw, err := gateway.New(sess.Coordinator, sess.Store, cfg.Upstream.BaseURL, sess.Transport, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &App{
		cfg:     cfg,
		session: sess,
		gateway: gw,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function
// collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	// Populate the store from durable storage before serving anything
	if err := a.session.Bridge.Load(gCtx); err != nil {
		return fmt.Errorf("failed to load session state: %w", err)
	}

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting gateway", "address", address, "upstream", a.cfg.Upstream.BaseURL)
	gatewayErrCh, err := a.gateway.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.gateway.Shutdown)

	// Watch keeps this process in sync with sessions started or ended by
	// other seedhub processes sharing the same storage.
	g.Go(func() error {
		err := a.session.Bridge.Watch(gCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(gCtx, "session watch failed", "error", err)
			return fmt.Errorf("session watch: %w", err)
		}
		return nil
	})

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
