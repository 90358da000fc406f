package config

import "time"

// EngineConfig is the top-level configuration of the keel engine.
//
// Values are layered: built-in defaults, then the YAML file, then KEEL_*
// environment variables (including those read from .env files).
type EngineConfig struct {
	// Workers is the number of concurrent reconcile workers.
	Workers int `yaml:"workers,omitempty" env:"WORKERS"`
	// MaxAttempts is the transient failure budget of a resource.
	MaxAttempts      int           `yaml:"maxAttempts,omitempty" env:"MAX_ATTEMPTS"`
	Backoff          BackoffConfig `yaml:"backoff,omitempty" envPrefix:"BACKOFF_"`
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout,omitempty" env:"RECONCILE_TIMEOUT"`
	// DriftInterval is the period of the drift scan. Zero disables it.
	DriftInterval    time.Duration `yaml:"driftInterval,omitempty" env:"DRIFT_INTERVAL"`
	FinalizeAttempts int           `yaml:"finalizeAttempts,omitempty" env:"FINALIZE_ATTEMPTS"`

	Certificate CertificateConfig `yaml:"certificate,omitempty" envPrefix:"CERTIFICATE_"`
	Database    DatabaseConfig    `yaml:"database,omitempty" envPrefix:"DATABASE_"`
	Manifest    ManifestConfig    `yaml:"manifest,omitempty" envPrefix:"MANIFEST_"`
	Platform    PlatformConfig    `yaml:"platform,omitempty" envPrefix:"PLATFORM_"`

	// StatePath is the checkpoint file. Empty disables checkpointing.
	StatePath string `yaml:"statePath,omitempty" env:"STATE_PATH"`
	// MetricsAddr is the listen address of the metrics endpoint. Empty
	// disables it.
	MetricsAddr string    `yaml:"metricsAddr,omitempty" env:"METRICS_ADDR"`
	Log         LogConfig `yaml:"log,omitempty" envPrefix:"LOG_"`

	// DisabledKinds are loaded and resolved but never reconciled.
	DisabledKinds []string `yaml:"disabledKinds,omitempty" env:"DISABLED_KINDS"`
}

// BackoffConfig controls retry delays of transient failures.
type BackoffConfig struct {
	Base   time.Duration `yaml:"base,omitempty" env:"BASE"`
	Max    time.Duration `yaml:"max,omitempty" env:"MAX"`
	Factor float64       `yaml:"factor,omitempty" env:"FACTOR"`
	Jitter float64       `yaml:"jitter,omitempty" env:"JITTER"`
}

// CertificateConfig holds the certificate reconciler settings.
type CertificateConfig struct {
	RenewBefore         time.Duration `yaml:"renewBefore,omitempty" env:"RENEW_BEFORE"`
	ChallengeTimeout    time.Duration `yaml:"challengeTimeout,omitempty" env:"CHALLENGE_TIMEOUT"`
	PollInterval        time.Duration `yaml:"pollInterval,omitempty" env:"POLL_INTERVAL"`
	MaxIssuanceAttempts int           `yaml:"maxIssuanceAttempts,omitempty" env:"MAX_ISSUANCE_ATTEMPTS"`
}

// DatabaseConfig holds the database reconciler settings.
type DatabaseConfig struct {
	// RepairInterval is how often a degraded cluster is checked again.
	RepairInterval time.Duration `yaml:"repairInterval,omitempty" env:"REPAIR_INTERVAL"`
}

// Manifest source types.
const (
	SourceFilesystem = "filesystem"
	SourceConfigMap  = "configmap"
)

// ManifestConfig selects where desired state is read from.
type ManifestConfig struct {
	// Source is "filesystem" or "configmap".
	Source string `yaml:"source,omitempty" env:"SOURCE"`
	// Path is the manifest directory or file for the filesystem source.
	Path string `yaml:"path,omitempty" env:"PATH"`
	// Namespace scopes the configmap source. Empty means all namespaces.
	Namespace string `yaml:"namespace,omitempty" env:"NAMESPACE"`
	// DefaultNamespace is used for resources that do not set one.
	DefaultNamespace string `yaml:"defaultNamespace,omitempty" env:"DEFAULT_NAMESPACE"`
	// Values are passed to manifest templates.
	Values map[string]interface{} `yaml:"values,omitempty"`
}

// Platform kinds.
const (
	PlatformMemory = "memory"
	PlatformKube   = "kube"
)

// PlatformConfig selects the platform binding.
type PlatformConfig struct {
	// Kind is "memory" or "kube".
	Kind string `yaml:"kind,omitempty" env:"KIND"`
	// Kubeconfig is the kubeconfig file of the kube platform. Empty uses the
	// usual discovery (KUBECONFIG, in-cluster, ~/.kube/config).
	Kubeconfig string `yaml:"kubeconfig,omitempty" env:"KUBECONFIG"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" env:"LEVEL"`
	Format string `yaml:"format,omitempty" env:"FORMAT"`
}
