package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProxy_defaults(t *testing.T) {
	for _, k := range []string{
		"HLSPROXY_HOST", "HLSPROXY_PORT", "HLSPROXY_VARIANT_LIMIT", "HLSPROXY_FETCH_TIMEOUT",
		"HLSPROXY_CHUNK_SIZE", "HLSPROXY_INSECURE_TLS", "HLSPROXY_USER_AGENT", "HLSPROXY_EXCLUDE_TRACKS",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadProxy()
	if cfg.Host != "127.0.0.1" || cfg.Port != 0 {
		t.Errorf("unexpected address %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.VariantLimit != 3 {
		t.Errorf("variant limit = %d, want 3", cfg.VariantLimit)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("fetch timeout = %s", cfg.FetchTimeout)
	}
	if cfg.ChunkSize != 128*1024 || !cfg.InsecureTLS {
		t.Errorf("unexpected chunk size %d / insecure %v", cfg.ChunkSize, cfg.InsecureTLS)
	}
	if len(cfg.ExcludeTracks) != 1 || cfg.ExcludeTracks[0] != "thumb" {
		t.Errorf("exclude tracks = %v", cfg.ExcludeTracks)
	}
}

func TestLoadProxy_overrides(t *testing.T) {
	t.Setenv("HLSPROXY_PORT", "8089")
	t.Setenv("HLSPROXY_VARIANT_LIMIT", "0")
	t.Setenv("HLSPROXY_FETCH_TIMEOUT", "3s")
	t.Setenv("HLSPROXY_INSECURE_TLS", "false")
	t.Setenv("HLSPROXY_EXCLUDE_TRACKS", "thumb, trickplay ,")

	cfg := LoadProxy()
	if cfg.Port != 8089 || cfg.VariantLimit != 0 || cfg.FetchTimeout != 3*time.Second || cfg.InsecureTLS {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.ExcludeTracks) != 2 || cfg.ExcludeTracks[1] != "trickplay" {
		t.Errorf("exclude tracks = %v", cfg.ExcludeTracks)
	}
}

func TestGetEnv_invalid_values_fall_back(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	if GetEnvInt("X_INT", 7) != 7 || GetEnvBool("X_BOOL", true) != true || GetEnvDuration("X_DUR", time.Second) != time.Second {
		t.Error("invalid values should fall back")
	}
	t.Setenv("X_LIST", "")
	if got := GetEnvList("X_LIST", []string{"a"}); got != nil {
		t.Errorf("set but empty list = %v, want nil", got)
	}
}

func TestLoad_dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("HLSPROXY_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HLSPROXY_TEST_KEY", "")
	os.Unsetenv("HLSPROXY_TEST_KEY")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("HLSPROXY_TEST_KEY", "fallback"); got != "from-file" {
		t.Errorf("got %q", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
