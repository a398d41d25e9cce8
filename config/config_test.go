package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"SERVER_PORT", "MONGO_URI", "MONGO_DB_NAME", "STORE_BACKEND", "CACHE_BACKEND",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "CASS_DB", "CASS_KEYSPACE",
	"LOG_FILE", "LOG_LEVEL", "CORS_ORIGIN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != ":8080" || cfg.MongoDBName != "taskgraph" || cfg.CacheTTL != time.Hour {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.StoreBackend != StoreMongo || cfg.CacheBackend != CacheRedis || cfg.CassandraHost != "" {
		t.Errorf("Unexpected backends %+v", cfg)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SERVER_PORT=9090\nCACHE_BACKEND=Memory\nCACHE_TTL=90s\nREDIS_DB=2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("Expected the environment to win, got %s", cfg.ServerPort)
	}
	if cfg.CacheBackend != CacheMemory || cfg.CacheTTL != 90*time.Second || cfg.RedisDB != 2 {
		t.Errorf("Expected values from the file, got %+v", cfg)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"REDIS_DB", "zero"},
		{"CACHE_TTL", "soon"},
		{"CACHE_TTL", "-1m"},
		{"SERVER_PORT", "http"},
		{"STORE_BACKEND", "postgres"},
		{"CACHE_BACKEND", "memcached"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("Expected an error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
