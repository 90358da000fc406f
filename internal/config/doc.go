// Package config provides configuration management for keel.
//
// Configuration is layered. Built-in defaults (see Default) are overridden by
// a YAML file, which is in turn overridden by KEEL_* environment variables.
// Variables from .env files apply beneath the process environment, so an
// exported variable always wins over the same key in a .env file.
//
// # Configuration File
//
// The file defaults to keel.yaml in the working directory; a missing default
// file is not an error. A file named explicitly must exist.
//
//	workers: 8
//	maxAttempts: 5
//	backoff:
//	  base: 1s
//	  max: 5m
//	driftInterval: 2m
//	certificate:
//	  renewBefore: 720h
//	manifest:
//	  source: filesystem
//	  path: ./manifests
//	  values:
//	    env: staging
//	platform:
//	  kind: memory
//	statePath: /var/lib/keel/state.yaml
//	disabledKinds: [DatabaseCluster]
//
// # Environment
//
// Nested keys are joined with underscores: backoff.base becomes
// KEEL_BACKOFF_BASE and manifest.path becomes KEEL_MANIFEST_PATH. Lists are
// comma separated (KEEL_DISABLED_KINDS=Gateway,HTTPRoute). Template values
// can only be set in the file.
//
// # Validation
//
// Load validates the merged configuration and returns a
// *ConfigurationErrorCollection listing every problem, each with the offending
// key and, where useful, suggestions for fixing it.
package config
