package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"classd/internal/classifier"
	"classd/internal/config"
	"classd/internal/download"
	"classd/internal/httpapi"
	"classd/internal/lifecycle"
	"classd/internal/registry"
	"classd/internal/statestore"
)

// applyDefaults fills the remaining unspecified fields.
func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.BundledDir == "" {
		cfg.BundledDir = "./models"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(cfg.DataDir, "state.json")
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var corsOrigins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyDefaults(cfg)
			return serve(*cfg, corsOrigins)
		},
	}
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origins (repeatable; CORS disabled when empty)")
	return cmd
}

func serve(cfg config.Config, corsOrigins []string) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "classd").Logger()
	if !classifier.RuntimeBuiltIn() {
		logger.Warn().Msg("built without the onnx tag: model loads will be refused")
	}

	store, err := statestore.OpenFile(cfg.StatePath)
	if err != nil {
		return err
	}
	downloader := download.NewHTTP(cfg.RegistryURL, cfg.DataDir, cfg.Checksums)
	meta := classifier.DiskMetadata{BundledDir: cfg.BundledDir, DataDir: cfg.DataDir}
	cache := classifier.NewCache(classifier.NewONNXAdapter(cfg.OnnxLibPath), meta)
	ctrl := lifecycle.New(lifecycle.ControllerConfig{
		Cache:      cache,
		Downloader: downloader,
		Store:      store,
	})
	defer ctrl.Close()

	if bundled, err := registry.ScanBundledDir(cfg.BundledDir); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.BundledDir).Msg("bundled model scan failed")
	} else {
		logger.Info().Int("bundled", len(bundled)).Str("dir", cfg.BundledDir).Msg("bundled models found")
	}

	httpapi.SetLogger(logger)
	if len(corsOrigins) > 0 {
		httpapi.SetCORSOptions(true, corsOrigins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(ctrl)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("classd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
