package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/rest"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"keel/internal/config"
	"keel/internal/events"
	"keel/internal/manifest"
	"keel/internal/platform"
	"keel/internal/platform/kube"
	"keel/internal/platform/memory"
	"keel/internal/reconciler"
	"keel/internal/state"
	"keel/pkg/logging"
)

// Services holds the engine and everything it is wired to.
//
// The services are initialized in dependency order:
//  1. Cluster access (kube platform or configmap source only)
//  2. Platform binding (simulator or cluster)
//  3. Event recorder and metrics registry
//  4. Store, restored from the checkpoint when one exists
//  5. Reconcile manager with one reconciler per kind
//  6. Manifest source
type Services struct {
	Config config.EngineConfig
	Clock  clock.WithTickerAndDelayedExecution

	// Platform is the binding the reconcilers drive.
	Platform platform.Platform

	// Simulator is set for the memory platform.
	Simulator *memory.Simulator

	// RestConfig and Kube are set when cluster access is configured.
	RestConfig *rest.Config
	Kube       client.Client

	Recorder *events.MemoryRecorder
	Registry *prometheus.Registry
	Manager  *reconciler.Manager
	Source   manifest.Source

	// MetricsAddr is the address the metrics server listens on, once serve
	// has started it.
	MetricsAddr string
}

// ServiceOptions tunes InitializeServices.
type ServiceOptions struct {
	// Clock defaults to the real clock.
	Clock clock.WithTickerAndDelayedExecution

	// Simulator replaces the memory platform's simulator. Used by tests to
	// inject faults.
	Simulator *memory.Simulator

	// Kube replaces the cluster client. Used by tests with a fake client.
	Kube client.Client
}

// InitializeServices builds the engine described by cfg.
func InitializeServices(cfg config.EngineConfig, opts ServiceOptions) (*Services, error) {
	s := &Services{
		Config: cfg,
		Clock:  opts.Clock,
		Kube:   opts.Kube,
	}
	if s.Clock == nil {
		s.Clock = clock.RealClock{}
	}

	if err := s.connect(); err != nil {
		return nil, err
	}

	switch cfg.Platform.Kind {
	case config.PlatformKube:
		s.Platform = kube.New(s.Kube)
		logging.Info("Services", "Using the Kubernetes platform")
	default:
		s.Simulator = opts.Simulator
		if s.Simulator == nil {
			s.Simulator = memory.New(s.Clock)
		}
		s.Platform = s.Simulator.Platform()
		logging.Info("Services", "Using the in-memory platform simulator")
	}

	s.Recorder = events.NewMemoryRecorder(events.DefaultCapacity, s.Clock)
	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := restoreStore(cfg.StatePath, s.Clock)
	if err != nil {
		return nil, err
	}

	s.Manager = reconciler.NewManager(reconciler.ManagerConfig{
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
		Backoff: reconciler.Backoff{
			Base:   cfg.Backoff.Base,
			Max:    cfg.Backoff.Max,
			Factor: cfg.Backoff.Factor,
			Jitter: cfg.Backoff.Jitter,
		},
		ReconcileTimeout: cfg.ReconcileTimeout,
		DriftInterval:    cfg.DriftInterval,
		FinalizeAttempts: cfg.FinalizeAttempts,
		DisabledKinds:    cfg.DisabledKindSet(),
		Clock:            s.Clock,
		Store:            store,
		Recorder:         s.Recorder,
		Metrics:          reconciler.NewMetrics(s.Registry),
	})
	reconcilers := reconciler.DefaultReconcilers(s.Platform, s.Clock, s.Recorder, reconciler.Options{
		Certificate: reconciler.CertificateOptions{
			RenewBefore:         cfg.Certificate.RenewBefore,
			ChallengeTimeout:    cfg.Certificate.ChallengeTimeout,
			PollInterval:        cfg.Certificate.PollInterval,
			MaxIssuanceAttempts: cfg.Certificate.MaxIssuanceAttempts,
		},
		RepairInterval: cfg.Database.RepairInterval,
	})
	if err := reconciler.RegisterAll(s.Manager, reconcilers); err != nil {
		return nil, fmt.Errorf("failed to register reconcilers: %w", err)
	}

	s.Source, err = NewSource(cfg, s.Kube)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// connect sets up cluster access when the platform or the manifest source
// needs it.
func (s *Services) connect() error {
	if !needsCluster(s.Config) || s.Kube != nil {
		return nil
	}
	restConfig, c, err := connectCluster(s.Config)
	if err != nil {
		return err
	}
	s.RestConfig = restConfig
	s.Kube = c
	return nil
}

func needsCluster(cfg config.EngineConfig) bool {
	return cfg.Platform.Kind == config.PlatformKube || cfg.Manifest.Source == config.SourceConfigMap
}

// connectCluster builds a REST config from platform.kubeconfig (or the
// in-cluster and default loading rules) and a client over it.
func connectCluster(cfg config.EngineConfig) (*rest.Config, client.Client, error) {
	restConfig, err := kube.GetRestConfig(cfg.Platform.Kubeconfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}
	c, err := kube.NewClient(restConfig)
	if err != nil {
		return nil, nil, err
	}
	return restConfig, c, nil
}

// NewSource creates the manifest source selected by cfg. The configmap
// source needs a cluster client.
func NewSource(cfg config.EngineConfig, c client.Client) (manifest.Source, error) {
	switch cfg.Manifest.Source {
	case config.SourceConfigMap:
		if c == nil {
			return nil, fmt.Errorf("the configmap manifest source needs cluster access")
		}
		return manifest.NewConfigMapSource(c, cfg.Manifest.Namespace), nil
	default:
		return manifest.NewFilesystemSource(cfg.Manifest.Path), nil
	}
}

// NewDetector creates the change detector matching the manifest source.
func (s *Services) NewDetector() (manifest.ChangeDetector, error) {
	switch s.Config.Manifest.Source {
	case config.SourceConfigMap:
		return manifest.NewKubernetesDetector(s.RestConfig, s.Config.Manifest.Namespace)
	default:
		return manifest.NewFilesystemDetector(s.Config.Manifest.Path, manifest.DefaultDebounceInterval), nil
	}
}

// restoreStore returns a store seeded from the checkpoint at path, or an
// empty store when there is none.
func restoreStore(path string, clk clock.PassiveClock) (*state.Store, error) {
	store := state.NewStore(clk)
	snap, err := loadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		store.Restore(snap)
		logging.Info("Services", "Restored %d resources from checkpoint %s", len(snap.Resources), path)
	}
	return store, nil
}
