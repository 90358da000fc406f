package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keel/internal/manifest"
	"keel/pkg/logging"
)

const (
	// DefaultCheckpointInterval is how often serve writes the checkpoint.
	DefaultCheckpointInterval = 30 * time.Second

	// changeBuffer is the capacity of the detector's event channel.
	changeBuffer = 64

	shutdownTimeout = 5 * time.Second
)

// ServeOptions controls the long-running mode.
type ServeOptions struct {
	// CheckpointInterval defaults to DefaultCheckpointInterval.
	CheckpointInterval time.Duration

	// OnReady is called once the initial manifests are applied and the
	// change detector runs.
	OnReady func(*Services)
}

// Serve runs the engine until ctx ends or the process receives SIGINT or
// SIGTERM.
//
// Behavior:
//   - Applies the manifests once at startup
//   - Reloads the whole manifest tree on every change the detector reports;
//     bursts of changes are coalesced into one reload
//   - Keeps the previous desired state when a reload fails validation
//   - Writes a checkpoint periodically and on shutdown
//   - Serves /metrics, /healthz and /readyz on metricsAddr when configured
//   - Notifies systemd when ready and when stopping
func (a *Application) Serve(ctx context.Context, opts ServeOptions) error {
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := InitializeServices(a.engine, a.config.Services)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	var srv *http.Server
	if a.engine.MetricsAddr != "" {
		srv, err = startMetricsServer(a.engine.MetricsAddr, s, &ready)
		if err != nil {
			return err
		}
		s.MetricsAddr = srv.Addr
	}

	if err := s.Manager.Start(ctx); err != nil {
		shutdownServer(srv)
		return fmt.Errorf("failed to start reconcile manager: %w", err)
	}

	if err := reload(ctx, s); err != nil {
		logging.Error("Serve", err, "Initial manifest load failed, waiting for changes")
	}

	detector, err := s.NewDetector()
	if err != nil {
		a.shutdown(s, nil, srv)
		return fmt.Errorf("failed to create change detector: %w", err)
	}
	changes := make(chan manifest.ChangeEvent, changeBuffer)
	if err := detector.Start(ctx, changes); err != nil {
		a.shutdown(s, nil, srv)
		return fmt.Errorf("failed to watch manifests: %w", err)
	}

	ready.Store(true)
	notify(daemon.SdNotifyReady)
	logging.Info("Serve", "Keel is running. Press Ctrl+C to stop.")
	if opts.OnReady != nil {
		opts.OnReady(s)
	}

	ticker := s.Clock.NewTicker(opts.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ready.Store(false)
			a.shutdown(s, detector, srv)
			return nil

		case ev := <-changes:
			logging.Info("Serve", "Manifest change: %s", ev)
			for drained := false; !drained; {
				select {
				case ev = <-changes:
					logging.Debug("Serve", "Coalesced manifest change: %s", ev)
				default:
					drained = true
				}
			}
			if err := reload(ctx, s); err != nil {
				logging.Error("Serve", err, "Reload failed, keeping the previous desired state")
			}

		case <-ticker.C():
			if err := s.Checkpoint(); err != nil {
				logging.Error("Serve", err, "Failed to write checkpoint")
			}
		}
	}
}

// reload reads the whole manifest tree and applies it. Invalid manifests
// leave the live state untouched.
func reload(ctx context.Context, s *Services) error {
	docs, err := s.Source.ReadTree(ctx)
	if err != nil {
		return err
	}
	report, g := validateDocuments(docs, manifestOptions(s.Config))
	if !report.Valid {
		return &ValidationFailedError{Report: report}
	}
	return s.Manager.Apply(g)
}

func (a *Application) shutdown(s *Services, detector manifest.ChangeDetector, srv *http.Server) {
	logging.Info("Serve", "Shutting down...")
	notify(daemon.SdNotifyStopping)

	if detector != nil {
		if err := detector.Stop(); err != nil {
			logging.Error("Serve", err, "Failed to stop change detector")
		}
	}
	if err := s.Manager.Stop(); err != nil {
		logging.Error("Serve", err, "Failed to stop reconcile manager")
	}
	if err := s.Checkpoint(); err != nil {
		logging.Error("Serve", err, "Failed to write final checkpoint")
	}
	shutdownServer(srv)
}

// startMetricsServer serves the registry and the health probes on addr.
func startMetricsServer(addr string, s *Services, ready *atomic.Bool) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.Manager.IsRunning() {
			http.Error(w, "reconcile manager is not running", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics", err, "Metrics server stopped")
		}
	}()
	logging.Info("Metrics", "Serving metrics on %s", srv.Addr)
	return srv, nil
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Metrics", err, "Failed to shut down metrics server")
	}
}

// notify sends state to systemd. Outside systemd it does nothing.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Serve", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("Serve", "Notified systemd: %s", state)
	}
}
