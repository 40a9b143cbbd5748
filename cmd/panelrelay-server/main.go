package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahamlinman/panelrelay/internal/api"
	"github.com/ahamlinman/panelrelay/internal/assets/zipserve"
	"github.com/ahamlinman/panelrelay/internal/config"
	"github.com/ahamlinman/panelrelay/internal/device"
	"github.com/ahamlinman/panelrelay/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Loaded %v", cfg)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// run serves until a termination signal arrives or a listener fails.
func run(cfg *config.Config) error {
	archive, err := openArchive(cfg.StaticZip)
	if err != nil {
		return err
	}
	defer archive.Close()

	var (
		m   *metrics.Metrics
		reg *prometheus.Registry
	)
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
	}

	client := device.NewClient(cfg.DeviceBase)
	if m != nil {
		client.Observe = m.ObserveDeviceFetch
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		monitor  *device.Monitor
		monitors sync.WaitGroup
	)
	if cfg.StatusPollInterval > 0 {
		monitor = device.NewMonitor(client, cfg.StatusPollInterval, cfg.DeviceTimeout)
		monitors.Add(1)
		go func() {
			defer monitors.Done()
			monitor.Run(ctx)
		}()
	}

	handler := api.NewHandler(api.Config{
		Device:        client,
		DeviceTimeout: cfg.DeviceTimeout,
		Archive:       archive,
		Directory:     cfg.StaticDir,
		Monitor:       monitor,
		Metrics:       m,
	})

	servers := []*http.Server{newServer(cfg.Addr(), handler)}
	if reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		servers = append(servers, newServer(cfg.MetricsAddr, mux))
	}

	logBanner(cfg, archive, monitor != nil)

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Print("Shutting down")
	case serveErr = <-errs:
		log.Printf("Server failed: %v", serveErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down %s: %v", srv.Addr, err)
		}
	}
	monitors.Wait()
	return serveErr
}

// openArchive opens the panel archive at path. A path that doesn't exist
// leaves the server without an archive source, while one that exists but
// can't be read is an error.
func openArchive(path string) (*zipserve.Archive, error) {
	if path == "" {
		return nil, nil
	}

	archive, err := zipserve.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[WARN] Archive not found: %s", path)
		return nil, nil
	}
	return archive, err
}

func newServer(addr string, h http.Handler) *http.Server {
	// No ReadTimeout or WriteTimeout, since status sockets are long-lived.
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func logBanner(cfg *config.Config, archive *zipserve.Archive, socket bool) {
	log.Printf("[OK] Server at http://%s", cfg.Addr())

	switch {
	case archive != nil:
		log.Printf("     Static mode: ZIP: %s (%d entries, index %q)", cfg.StaticZip, archive.Len(), archive.IndexName())
	case cfg.StaticDir != "":
		log.Printf("     Static mode: DIR: %s", cfg.StaticDir)
	default:
		log.Print("     Static mode: built-in panel")
	}

	log.Printf("     ESP32_BASE = %s", cfg.DeviceBase)
	log.Print("     API: GET /api/status, POST /api/start, POST /api/stop")
	if socket {
		log.Printf("     Status socket: /api/sockets/status (every %v)", cfg.StatusPollInterval)
	}
	if cfg.MetricsAddr != "" {
		log.Printf("     Metrics: http://%s/metrics", cfg.MetricsAddr)
	}
}
