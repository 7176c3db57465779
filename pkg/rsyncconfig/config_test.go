package rsyncconfig

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes content to a temporary file and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unable to write test configuration: %v", err)
	}
	return path
}

// TestDefault verifies the fallback configuration values.
func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BlockSize != 2048 {
		t.Errorf("unexpected default block size: %d", cfg.BlockSize)
	}
	if cfg.CryptoHashSize != 8 {
		t.Errorf("unexpected default crypto hash size: %d", cfg.CryptoHashSize)
	}
	if cfg.MaxOutputSize != 0 {
		t.Errorf("expected no default output limit, got %d", cfg.MaxOutputSize)
	}
}

// TestLoad verifies that a configuration file overrides the fields it sets
// and leaves the rest at their defaults.
func TestLoad(t *testing.T) {
	path := writeTestConfig(t, "block_size: 4096\nmax_output_size: 1048576\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlockSize != 4096 {
		t.Errorf("unexpected block size: %d", cfg.BlockSize)
	}
	if cfg.CryptoHashSize != 8 {
		t.Errorf("expected default crypto hash size to survive, got %d", cfg.CryptoHashSize)
	}
	if cfg.MaxOutputSize != 1048576 {
		t.Errorf("unexpected output limit: %d", cfg.MaxOutputSize)
	}
}

// TestLoadRejectsUnknownFields verifies strict decoding: a misspelled or
// unsupported key is an error rather than being silently dropped.
func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTestConfig(t, "block_size: 4096\nblock_sizes: 8192\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

// TestLoadRejectsMalformedYAML verifies that syntactically invalid YAML is
// reported as an error.
func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeTestConfig(t, "block_size: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

// TestLoadMissingFile verifies a nonexistent path is reported in a way the
// caller can distinguish via os.IsNotExist.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.IsNotExist to recognize the error, got %v", err)
	}
}
