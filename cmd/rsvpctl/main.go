// Command rsvpctl runs administrative tasks against the RSVP database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/app"
	"github.com/charlesng35/rsvp/internal/database"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rsvpctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { printUsage(out) }

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		printUsage(out)
		return errors.New("no command given")
	}

	var (
		cfg *app.Config
		err error
	)
	if configPath == "" {
		cfg, err = app.LoadConfig()
	} else {
		cfg, err = app.LoadConfig(configPath)
	}
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, true); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db)

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("auto-migrate database: %w", err)
	}

	svc, err := buildServices(db, cfg)
	if err != nil {
		return err
	}

	return execute(ctx, svc, fs.Args(), out)
}

func buildServices(db *gorm.DB, cfg *app.Config) (*services.Container, error) {
	mailer, err := cfg.Email.NewMailer()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Events.Location()
	if err != nil {
		return nil, err
	}
	return services.NewContainer(db, services.ContainerConfig{
		Mailer:          mailer,
		BaseURL:         cfg.Server.BaseURL,
		Location:        loc,
		DefaultDuration: cfg.Events.DefaultDuration,
	})
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithModule("rsvpctl").Warn("failed to close database", zap.Error(err))
	}
}
