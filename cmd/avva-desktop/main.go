package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"avva-desktop/internal/app"
	"avva-desktop/internal/config"
	"avva-desktop/internal/sidecar"
	"avva-desktop/pkg/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	cancel()
	if err != nil {
		msg := diagnostic(err)
		fmt.Fprintln(os.Stderr, msg)
		showFatal(msg)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := resolveConfigPath()
	if err := config.EnsureExists(cfgPath); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := utils.NewLogger(
		logPathOrFallback(cfg.Logging.File),
		cfg.Logging.MaxSizeMB,
		cfg.Logging.MaxBackups,
	)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logCloser.Close()
	logger.Printf("config loaded: %s", cfgPath)

	if err := app.New(cfg, logger).Run(ctx); err != nil {
		logger.Printf("%v", err)
		return err
	}
	return nil
}

// diagnostic is the message shown to the user when the application cannot run.
func diagnostic(err error) string {
	msg := fmt.Sprintf("error while running application: %v", err)

	var rerr *sidecar.ResolutionError
	var serr *sidecar.SpawnError
	switch {
	case errors.As(err, &rerr):
		msg += "\n\nThe bundled helper could not be found. Reinstalling the application usually fixes this."
	case errors.As(err, &serr):
		msg += "\n\nThe bundled helper could not be started."
	}
	return msg
}

func resolveConfigPath() string {
	if p := os.Getenv("AVVA_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(config.Default().App.DataDir, "config.yaml")
}

func logPathOrFallback(path string) string {
	if path == "" {
		return "avva-desktop.log"
	}
	return path
}
