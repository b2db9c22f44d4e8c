package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/internal/app"
	"github.com/charlesng35/rsvp/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

type serverFlags struct {
	configPath  string
	devLogs     bool
	checkConfig bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (serverFlags, error) {
	var f serverFlags
	fs := flag.NewFlagSet("rsvp-server", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration directory or file")
	fs.BoolVar(&f.devLogs, "dev", false, "Human readable console logs")
	fs.BoolVar(&f.checkConfig, "check-config", false, "Validate configuration and secrets, then exit")
	return f, fs.Parse(args)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(flags.configPath)
	if err != nil {
		return err
	}
	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}
	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	if flags.checkConfig {
		fmt.Fprintln(out, describeConfig(cfg, generated))
		return nil
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, flags.devLogs); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync()

	log := logger.WithModule("bootstrap")
	if len(generated) > 0 {
		log.Warn("using generated secrets, sessions end on restart", zap.Strings("keys", generated))
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	return serve(ctx, &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}, cfg, log)
}

// serve blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests.
func serve(ctx context.Context, server *http.Server, cfg *app.Config, log *zap.Logger) error {
	failed := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.Bool("private_app", cfg.Auth.PrivateApp),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-failed; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func describeConfig(cfg *app.Config, generated []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "config ok: port %d, database %s, timezone %s", cfg.Server.Port, cfg.Database.Driver, cfg.Events.Timezone)
	fmt.Fprintf(&b, ", private_app %t, oidc %t, %d social platforms", cfg.Auth.PrivateApp, cfg.Auth.OIDC.Enabled, len(cfg.Social.Platforms))
	if len(generated) > 0 {
		fmt.Fprintf(&b, "\ngenerated at startup: %s", strings.Join(generated, ", "))
	}
	return b.String()
}

func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	case err != nil:
		return nil, fmt.Errorf("stat config path: %w", err)
	case info.IsDir():
		return app.LoadConfig(path)
	default:
		return app.LoadConfig(filepath.Dir(path))
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	return cfg.CheckSecrets()
}
