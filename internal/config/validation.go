package config

import (
	"fmt"
	"net"
	"strings"

	"keel/internal/resource"
	"keel/pkg/logging"
)

// Validate checks the configuration and returns every problem found.
func (c EngineConfig) Validate() *ConfigurationErrorCollection {
	errs := NewConfigurationErrorCollection()

	positive := func(field string, v int) {
		if v < 1 {
			errs.AddInvalid(field, fmt.Sprintf("must be at least 1, got %d", v))
		}
	}
	positive("workers", c.Workers)
	positive("maxAttempts", c.MaxAttempts)
	positive("finalizeAttempts", c.FinalizeAttempts)
	positive("certificate.maxIssuanceAttempts", c.Certificate.MaxIssuanceAttempts)

	if c.Backoff.Base <= 0 {
		errs.AddInvalid("backoff.base", "must be positive")
	}
	if c.Backoff.Max < c.Backoff.Base {
		errs.AddInvalid("backoff.max", fmt.Sprintf("must not be below backoff.base (%s)", c.Backoff.Base))
	}
	if c.Backoff.Factor < 1 {
		errs.AddInvalid("backoff.factor", fmt.Sprintf("must be at least 1, got %g", c.Backoff.Factor))
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		errs.AddInvalid("backoff.jitter", fmt.Sprintf("must be between 0 and 1, got %g", c.Backoff.Jitter))
	}

	if c.ReconcileTimeout <= 0 {
		errs.AddInvalid("reconcileTimeout", "must be positive")
	}
	if c.DriftInterval < 0 {
		errs.AddInvalid("driftInterval", "must not be negative", "Use 0 to disable the periodic drift scan")
	}
	if c.Certificate.RenewBefore < 0 {
		errs.AddInvalid("certificate.renewBefore", "must not be negative")
	}
	if c.Certificate.ChallengeTimeout <= 0 {
		errs.AddInvalid("certificate.challengeTimeout", "must be positive")
	}
	if c.Certificate.PollInterval <= 0 {
		errs.AddInvalid("certificate.pollInterval", "must be positive")
	}
	if c.Database.RepairInterval <= 0 {
		errs.AddInvalid("database.repairInterval", "must be positive")
	}

	switch c.Manifest.Source {
	case SourceFilesystem:
		if strings.TrimSpace(c.Manifest.Path) == "" {
			errs.AddInvalid("manifest.path", "is required for the filesystem source")
		}
	case SourceConfigMap:
		if c.Platform.Kind != PlatformKube {
			errs.AddInvalid("manifest.source", "configmap requires the kube platform",
				"Set platform.kind to kube or use the filesystem source")
		}
	default:
		errs.AddInvalid("manifest.source", fmt.Sprintf("unsupported source %q", c.Manifest.Source),
			"Use filesystem or configmap")
	}

	switch c.Platform.Kind {
	case PlatformMemory, PlatformKube:
	default:
		errs.AddInvalid("platform.kind", fmt.Sprintf("unsupported platform %q", c.Platform.Kind),
			"Use memory or kube")
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs.AddInvalid("metricsAddr", err.Error(), "Use host:port, for example :9090")
		}
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs.AddInvalid("log.level", fmt.Sprintf("unknown level %q", c.Log.Level), "Use debug, info, warn or error")
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		errs.AddInvalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format), "Use text or json")
	}

	for i, k := range c.DisabledKinds {
		if _, ok := resource.ParseKind(k); !ok {
			errs.AddInvalid(fmt.Sprintf("disabledKinds[%d]", i), fmt.Sprintf("unknown kind %q", k))
		}
	}

	return errs
}

// DisabledKindSet returns DisabledKinds as a set. Unknown kinds are skipped;
// Validate reports them.
func (c EngineConfig) DisabledKindSet() map[resource.Kind]bool {
	out := make(map[resource.Kind]bool, len(c.DisabledKinds))
	for _, s := range c.DisabledKinds {
		if k, ok := resource.ParseKind(s); ok {
			out[k] = true
		}
	}
	return out
}
