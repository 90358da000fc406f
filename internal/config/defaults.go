package config

import "time"

const (
	// DefaultConfigFile is read from the working directory when no config
	// file is named explicitly.
	DefaultConfigFile = "keel.yaml"

	// DefaultEnvFile is loaded when present.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KEEL_"
)

// Default returns the configuration used when nothing is overridden.
func Default() EngineConfig {
	return EngineConfig{
		Workers:          4,
		MaxAttempts:      5,
		ReconcileTimeout: 30 * time.Second,
		DriftInterval:    5 * time.Minute,
		FinalizeAttempts: 3,
		Backoff: BackoffConfig{
			Base:   time.Second,
			Max:    5 * time.Minute,
			Factor: 2,
			Jitter: 0.1,
		},
		Certificate: CertificateConfig{
			RenewBefore:         30 * 24 * time.Hour,
			ChallengeTimeout:    10 * time.Minute,
			PollInterval:        5 * time.Second,
			MaxIssuanceAttempts: 3,
		},
		Database: DatabaseConfig{
			RepairInterval: 30 * time.Second,
		},
		Manifest: ManifestConfig{
			Source:           SourceFilesystem,
			Path:             "manifests",
			DefaultNamespace: "default",
		},
		Platform: PlatformConfig{
			Kind: PlatformMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
