// Command tutorvox-server runs the REST gateway: auth, tutoring sessions,
// notes, and post-session summaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutorvox/tutorvox/internal/dotenv"
	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/gateway/config"
	"github.com/tutorvox/tutorvox/pkg/gateway/handlers"
	gatewayserver "github.com/tutorvox/tutorvox/pkg/gateway/server"
	"github.com/tutorvox/tutorvox/pkg/store"
	"github.com/tutorvox/tutorvox/pkg/summarize"
)

type gateway interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type serverDeps struct {
	loadConfig   func() (config.Config, error)
	migrate      func(ctx context.Context, databaseURL string) error
	openStore    func(ctx context.Context, databaseURL string, logger *slog.Logger) (*store.Store, error)
	newGateway   func(gatewayserver.Options) (gateway, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServerDeps() serverDeps {
	return serverDeps{
		loadConfig: config.LoadFromEnv,
		migrate:    store.Migrate,
		openStore:  store.Open,
		newGateway: func(opts gatewayserver.Options) (gateway, error) {
			return gatewayserver.New(opts)
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildCredentials(cfg config.Config, st *store.Store) (auth.Credentials, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderLocal:
		return auth.NewLocal(st), nil
	case config.AuthProviderWorkOS:
		return auth.NewWorkOS(st, cfg.WorkOSAPIKey, cfg.WorkOSClientID), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

func runServer(ctx context.Context, logger *slog.Logger, deps serverDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newGateway == nil {
		return errors.New("missing server dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cfg.MigrateOnStart {
		if deps.migrate == nil {
			return errors.New("missing migrate dependency")
		}
		if err := deps.migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	st, err := deps.openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	creds, err := buildCredentials(cfg, st)
	if err != nil {
		return err
	}

	var summarizer handlers.Summarizer
	if cfg.GeminiAPIKey != "" {
		s, err := summarize.New(ctx, cfg.GeminiAPIKey, cfg.SummaryModel, logger)
		if err != nil {
			return fmt.Errorf("summarizer: %w", err)
		}
		summarizer = s
	} else {
		logger.Warn("GEMINI_API_KEY not set, session summaries disabled")
	}

	gw, err := deps.newGateway(gatewayserver.Options{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Credentials: creds,
		Summarizer:  summarizer,
	})
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	listenErrCh := make(chan error, 1)
	go func() {
		listenErrCh <- gw.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serverDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "tutorvox-server: %v\n", err)
		return 1
	}

	if err := runServer(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "tutorvox-server: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServerDeps()))
}
