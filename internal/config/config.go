// Package config loads vaultcraft's process-wide configuration from
// environment variables, optionally merged with a YAML file, and enforces
// the option set's invariants (unknown keys rejected, a floor on PBKDF2
// iterations) once at process start rather than at first use.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/keldara/vaultcraft/internal/cryptoprim"
)

// MinPBKDF2Iterations is the lowest iteration count config.Load accepts.
// Below this, a derived key is cheap enough to brute-force offline that
// accepting it would defeat the point of deriving one at all.
const MinPBKDF2Iterations = 100_000

// Config is vaultcraft's full, immutable option set (spec.md §6). It is
// loaded once at process start and passed by value or pointer to every
// component that needs it; nothing in this package keeps a package-level
// mutable copy.
type Config struct {
	PBKDF2Iterations int    `yaml:"pbkdf2_iterations" env:"PBKDF2_ITERATIONS"`
	SRPGroup         string `yaml:"srp_group" env:"SRP_GROUP"`
	SyncBaseURL      string `yaml:"sync_base_url" env:"SYNC_BASE_URL"`
	SyncTimeoutMS    int    `yaml:"sync_timeout_ms" env:"SYNC_TIMEOUT_MS"`
	KeyStoreBackend  string `yaml:"key_store_backend" env:"KEY_STORE_BACKEND"`
}

// SyncTimeout returns SyncTimeoutMS as a time.Duration, for direct use by
// syncclient.NewTransport / NewReconciler.
func (c Config) SyncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutMS) * time.Millisecond
}

func defaults() Config {
	return Config{
		PBKDF2Iterations: cryptoprim.DefaultPBKDF2Iterations,
		SRPGroup:         "rfc5054-2048",
		SyncBaseURL:      "http://localhost:3000",
		SyncTimeoutMS:    10_000,
		KeyStoreBackend:  "file",
	}
}

// Load builds a Config starting from defaults, merging in yamlPath (if
// non-empty) and then environment variables prefixed VAULTCRAFT_, in that
// precedence order — env overrides file, file overrides defaults. The
// YAML file is decoded with KnownFields(true), so a typo'd or obsolete key
// is a load-time error rather than a silently ignored no-op.
func Load(yamlPath string) (Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		f, err := os.Open(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %s: %w", yamlPath, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", yamlPath, err)
		}
	}

	opts := env.Options{Prefix: "VAULTCRAFT_"}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PBKDF2Iterations < MinPBKDF2Iterations {
		return fmt.Errorf("config: pbkdf2_iterations %d is below the minimum of %d", c.PBKDF2Iterations, MinPBKDF2Iterations)
	}
	switch c.KeyStoreBackend {
	case "file", "memory":
	default:
		return fmt.Errorf("config: unknown key_store_backend %q", c.KeyStoreBackend)
	}
	if c.SyncTimeoutMS <= 0 {
		return fmt.Errorf("config: sync_timeout_ms must be positive, got %d", c.SyncTimeoutMS)
	}
	return nil
}
