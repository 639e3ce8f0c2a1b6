// Command jobd runs the long-running process supervisor (C5): it opens the
// catalog as the single writer, reconciles catalog state against reality,
// starts every startable job in dependency order, and then services the
// event loop until SIGINT/SIGTERM, at which point it sends SIGTERM to every
// running job in reverse dependency order and exits without waiting for
// them.
//
// spec.md names the catalog and catalog schema but, unlike jobcfg/jobstat,
// never names this process's own CLI surface — it only describes the
// supervisor's behavior (§4.5, §5). This binary is the natural home for
// that behavior: something has to own the event loop, and the module name
// is the obvious command name for it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/3leaps/jobd/internal/apperrors"
	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/config"
	"github.com/3leaps/jobd/internal/observability"
	"github.com/3leaps/jobd/internal/runtimestate"
	"github.com/3leaps/jobd/internal/supervisor"
)

func main() {
	defer observability.Sync()

	verbose := os.Getenv("JOBD_VERBOSE") == "1"
	observability.InitSupervisor(verbose)
	logger := observability.SupervisorLogger

	if err := run(logger); err != nil {
		logger.Error("jobd exited with error", zap.Error(err))
		os.Exit(apperrors.ExitCodeOf(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load("", nil)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.RuntimeDir, 0o755); err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.DBPath, false)
	if err != nil {
		return apperrors.New(apperrors.KindCatalogUnavailable, err)
	}
	defer func() { _ = cat.Close() }()

	runtime := runtimestate.NewStore(cfg.RuntimeDir)
	sup := supervisor.New(cat, runtime, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Reconcile(ctx); err != nil {
		logger.Warn("reconcile reported a problem", zap.Error(err))
	}

	logger.Info("jobd supervisor started",
		zap.String("db_path", cfg.DBPath),
		zap.String("runtime_dir", cfg.RuntimeDir),
	)
	return sup.Run(ctx)
}
