package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/resource"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// noEnv isolates a test from the process environment and any .env file.
func noEnv(path string) LoadOptions {
	return LoadOptions{Path: path, EnvFiles: []string{}, Environment: map[string]string{}}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(noEnv(path))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workers: 8
backoff:
  base: 2s
  max: 1m
driftInterval: 0s
certificate:
  renewBefore: 240h
manifest:
  path: ./deploy
  values:
    env: staging
    replicas: 3
statePath: /var/lib/keel/state.yaml
disabledKinds: [DatabaseCluster]
`)

	cfg, err := Load(noEnv(path))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.Backoff.Base)
	assert.Equal(t, time.Minute, cfg.Backoff.Max)
	assert.Equal(t, 2.0, cfg.Backoff.Factor, "unset keys keep their defaults")
	assert.Zero(t, cfg.DriftInterval)
	assert.Equal(t, 240*time.Hour, cfg.Certificate.RenewBefore)
	assert.Equal(t, "./deploy", cfg.Manifest.Path)
	assert.Equal(t, SourceFilesystem, cfg.Manifest.Source)
	assert.Equal(t, "staging", cfg.Manifest.Values["env"])
	assert.Equal(t, 3, cfg.Manifest.Values["replicas"])
	assert.Equal(t, "/var/lib/keel/state.yaml", cfg.StatePath)
	assert.Equal(t, map[resource.Kind]bool{resource.KindDatabaseCluster: true}, cfg.DisabledKindSet())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "workers: 8\nbackoff:\n  base: 2s\n")

	opts := noEnv(path)
	opts.Environment = map[string]string{
		"KEEL_WORKERS":        "16",
		"KEEL_BACKOFF_BASE":   "500ms",
		"KEEL_MANIFEST_PATH":  "/srv/manifests",
		"KEEL_PLATFORM_KIND":  "kube",
		"KEEL_DISABLED_KINDS": "Gateway,HTTPRoute",
		"WORKERS":             "99",
	}

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff.Base)
	assert.Equal(t, "/srv/manifests", cfg.Manifest.Path)
	assert.Equal(t, PlatformKube, cfg.Platform.Kind)
	assert.Equal(t, []string{"Gateway", "HTTPRoute"}, cfg.DisabledKinds)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KEEL_WORKERS=6\nKEEL_MAX_ATTEMPTS=9\n"), 0644))

	opts := noEnv(writeConfig(t, ""))
	opts.EnvFiles = []string{envFile}
	opts.Environment = map[string]string{"KEEL_MAX_ATTEMPTS": "7"}

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 7, cfg.MaxAttempts, "the process environment wins over .env files")
}

func TestLoadMissingEnvFile(t *testing.T) {
	opts := noEnv(writeConfig(t, ""))
	opts.EnvFiles = []string{filepath.Join(t.TempDir(), "missing.env")}

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading env files")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(noEnv(filepath.Join(t.TempDir(), "absent.yaml")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "workers: [unclosed\n")

	_, err := Load(noEnv(path))
	require.Error(t, err)

	var cerr *ConfigurationErrorCollection
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ErrorTypeParse, cerr.Errors[0].ErrorType)
	assert.Equal(t, path, cerr.Errors[0].FilePath)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	opts := noEnv(writeConfig(t, ""))
	opts.Environment = map[string]string{"KEEL_WORKERS": "many"}

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config from environment")
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "workers: 0\nplatform:\n  kind: cloud\n")

	_, err := Load(noEnv(path))
	require.Error(t, err)

	var cerr *ConfigurationErrorCollection
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"workers", "platform.kind"}, cerr.Fields())
}
