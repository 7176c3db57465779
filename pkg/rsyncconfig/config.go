// Package rsyncconfig loads the optional YAML configuration file consumed
// by the rsyncdelta CLI, following the load-and-unmarshal pattern of
// mutagen's pkg/encoding.
package rsyncconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the default signature/patch parameters the CLI falls back to
// when a subcommand's own flags don't override them.
type Config struct {
	// BlockSize is the default signature block size, in bytes.
	BlockSize uint32 `yaml:"block_size"`
	// CryptoHashSize is the default truncated MD4 digest length, in bytes.
	CryptoHashSize uint32 `yaml:"crypto_hash_size"`
	// MaxOutputSize is the default cap on how much output the patch
	// subcommand will produce from a single delta. Zero means unlimited.
	MaxOutputSize uint64 `yaml:"max_output_size"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		BlockSize:      2048,
		CryptoHashSize: 8,
	}
}

// Load reads and strictly decodes the YAML configuration at path. A missing
// file is returned as the unwrapped os error, so the caller can check
// os.IsNotExist and fall back to Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("unable to load configuration file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal configuration: %w", err)
	}
	return cfg, nil
}
