package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/mdfs/internal/logger"
	"github.com/marmos91/mdfs/pkg/config"
	"github.com/marmos91/mdfs/pkg/fsal"
	"github.com/marmos91/mdfs/pkg/fsal/mdcache"
	"github.com/marmos91/mdfs/pkg/fsal/memfs"
	"github.com/marmos91/mdfs/pkg/metrics"
)

// seedInitialStructure populates a fresh export with a small tree so a
// mounted client has something to look at. Everything goes through the
// helper layer and the cache, the same path a protocol head would use.
func seedInitialStructure(ctx *fsal.OpContext, root fsal.ObjectHandle) error {
	docs, err := fsal.Create(ctx, root, "docs", fsal.Directory, 0o755, nil)
	if err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}
	defer docs.Unref()

	files := []struct {
		parent  fsal.ObjectHandle
		name    string
		content string
	}{
		{root, "readme.txt", "This is a README file.\nWelcome to MDFS!\n"},
		{docs, "getting-started.txt", "Mount the export and start poking around.\n"},
		{docs, "notes.txt", "Some notes about this metadata server.\n"},
	}

	for _, f := range files {
		obj, err := fsal.Create(ctx, f.parent, f.name, fsal.Regular, 0o644, nil)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}

		data := []byte(f.content)
		sync := true
		_, _, err = fsal.RdWr(ctx, obj, fsal.IOWrite, 0, data, &sync, nil)
		if err != nil {
			obj.Unref()
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}

		obj.Unref()
	}

	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logger
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	logger.SetOutput(cfg.Logging.Output)

	fmt.Println("MDFS - Metadata-Cached File Server Core")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Metrics exposition
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}

		go func() {
			logger.Info("Metrics listening on %s", cfg.Metrics.ListenAddress)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	// One FD budget and one cache shared by all exports
	budget := fsal.NewFDBudget(cfg.Cache.FDLimit)
	cache := mdcache.New(budget, metrics.NewCacheMetrics(budget))
	logger.Info("Metadata cache ready (fd limit: %d)", cfg.Cache.FDLimit)

	for _, ec := range cfg.Exports {
		export := memfs.NewExport(ec.ID, ec.Path, fsal.ExportOptions{
			ForceCommit:          ec.ForceCommit,
			CanSetTime:           ec.CanSetTime,
			LinkPermissionChecks: ec.LinkPermissionChecks,
			ReopenMethod:         ec.ReopenMethod,
		})

		ctx := fsal.NewOpContext(context.Background(), fsal.Credentials{UID: 0, GID: 0}, export, budget)

		rawRoot, err := export.Root(ctx)
		if err != nil {
			log.Fatalf("Failed to get root of export %s: %v", ec.Path, err)
		}

		rootAttrs := &fsal.Attributes{
			Mask:  fsal.AttrMode | fsal.AttrOwner | fsal.AttrGroup,
			Mode:  ec.RootAttr.Mode,
			Owner: ec.RootAttr.UID,
			Group: ec.RootAttr.GID,
		}
		if err := fsal.SetAttrs(ctx, rawRoot, rootAttrs); err != nil {
			log.Fatalf("Failed to set root attributes of export %s: %v", ec.Path, err)
		}

		root := cache.Wrap(rawRoot)
		if err := seedInitialStructure(ctx, root); err != nil {
			log.Fatalf("Failed to seed export %s: %v", ec.Path, err)
		}
		root.Unref()

		logger.Info("Export added: %s (id %d)", ec.Path, ec.ID)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")
	<-sigChan

	logger.Info("Shutting down server...")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error: %v", err)
		}
	}
}
