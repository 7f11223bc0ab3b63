package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/skorotkiewicz/gnunet-social/internal/config"
	"github.com/skorotkiewicz/gnunet-social/internal/db"
	"github.com/skorotkiewicz/gnunet-social/internal/httpserver"
	"github.com/skorotkiewicz/gnunet-social/internal/logging"
)

// Run bootstraps the social fabric node.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or migrate")
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "migrate":
		return runMigrations(ctx, args[1:], os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     logging.ParseLevel(level),
	}))
}

func serve(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.IntVarP(&cfg.AppPort, "port", "p", cfg.AppPort, "HTTP listen port")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL URL for the activity archive")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool db.Pool
	if cfg.ArchiveEnabled() {
		pgPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		pool = pgPool
		logger.Info("activity archive enabled")
	}

	fab, err := buildDependencies(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.AppPort, fab.handler(), httpserver.WithShutdownTimeout(cfg.ShutdownTimeout))
	srv.OnShutdown(fab.closeClients)

	logger.Info("starting http server", "port", cfg.AppPort, "object_store", cfg.ObjectStore.Enabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return fab.run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return fab.shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMigrations(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flags.StringVar(&cfg.MigrationDir, "dir", cfg.MigrationDir, "directory holding *.sql migrations")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL URL")
	if err := flags.Parse(args); err != nil {
		return err
	}

	command := "up"
	if rest := flags.Args(); len(rest) > 0 {
		command = rest[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if !cfg.ArchiveEnabled() {
		return fmt.Errorf("migrate: %sDATABASE_URL is not set", config.EnvPrefix)
	}

	migrationDir := cfg.MigrationDir
	if !filepath.IsAbs(migrationDir) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		migrationDir = filepath.Join(wd, migrationDir)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.Migrate(ctx, pool, migrationDir, command, out)
}
