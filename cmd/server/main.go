// Vaultbox Server
//
// Features:
// - Active, trash and vault zones under one base directory
// - Collision-safe moves with a pending-move journal
// - Password-protected vault with short-lived tokens
// - Upload, zip download, text editing and thumbnails
// - WebDAV access to the active zone
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/api"
	"github.com/fruitsalade/vaultbox/internal/auth"
	"github.com/fruitsalade/vaultbox/internal/config"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/vault"
	"github.com/fruitsalade/vaultbox/internal/webdav"
	"github.com/fruitsalade/vaultbox/internal/zones"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(cfg.Logging()); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Vaultbox server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("base_dir", cfg.BaseDir))

	if cfg.JWTSecretGenerated {
		logging.Warn("VAULT_JWT_SECRET not set; vault tokens will not survive a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persisted settings override the environment limits.
	settings, found, err := config.LoadSettings(cfg.SettingsFile, cfg.Limits)
	if err != nil {
		logging.Fatal("settings load failed", zap.String("file", cfg.SettingsFile), zap.Error(err))
	}
	if found {
		logging.Info("storage settings loaded",
			zap.String("file", cfg.SettingsFile),
			zap.Int64("storage_limit", settings.StorageLimit),
			zap.Int64("file_size_limit", settings.FileSizeLimit))
	}

	zm, err := zones.New(zones.Options{BaseDir: cfg.BaseDir, Limits: settings.Limits()})
	if err != nil {
		logging.Fatal("zone init failed", zap.Error(err))
	}
	if _, err := zm.Recover(); err != nil {
		logging.Error("pending move recovery incomplete", zap.Error(err))
	}
	if info, err := zm.StorageInfo(ctx); err == nil {
		logging.Info("storage scanned",
			zap.Int64("used", info.Used),
			zap.Int64("total", info.Total),
			zap.Float64("percentage", info.Percentage))
	}

	store := vault.NewStore(afero.NewOsFs(), zm.VaultConfigPath(), cfg.BcryptCost)
	if err := store.Ensure(); err != nil {
		logging.Fatal("vault init failed", zap.Error(err))
	}
	if !cfg.ResetEnabled {
		logging.Info("vault reset endpoint disabled")
	}

	authHandler := auth.New(store, auth.Options{
		Secret:        []byte(cfg.JWTSecret),
		TTL:           cfg.TokenTTL,
		AuthPerMinute: cfg.AuthPerMinute,
	})

	var dav http.Handler
	if cfg.WebDAVEnabled {
		dav = webdav.NewHandler(zm)
		logging.Info("webdav enabled", zap.String("prefix", webdav.Prefix))
	}

	srv := api.NewServer(api.Options{
		Zones:        zm,
		Vault:        store,
		Auth:         authHandler,
		SettingsFile: cfg.SettingsFile,
		ResetEnabled: cfg.ResetEnabled,
		CORSOrigin:   cfg.CORSOrigin,
		WebAppDir:    cfg.WebAppDir,
		WebDAV:       dav,
	})

	// Start metrics server
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLSEnabled() {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("http shutdown", zap.Error(err))
		}
		if metricsServer != nil {
			metricsServer.Close()
		}
	}()

	// Periodic cleanup of vault login buckets and zone gauges
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authHandler.CleanupLimiter(time.Hour)
				if _, err := zm.StorageInfo(ctx); err != nil && ctx.Err() == nil {
					logging.Warn("storage scan failed", zap.Error(err))
				}
			}
		}
	}()

	if cfg.TLSEnabled() {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}
