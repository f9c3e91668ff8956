package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("querychat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Store.MaxOpenConns != 20 {
		t.Fatalf("Store.MaxOpenConns = %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Cache.Enabled {
		t.Fatal("Cache.Enabled should default to false in dev")
	}
	if cfg.Cache.SchemaTTL != 10*time.Minute {
		t.Fatalf("Cache.SchemaTTL = %s", cfg.Cache.SchemaTTL)
	}
	if cfg.Quota.DefaultQueriesAllowed != 50 {
		t.Fatalf("Quota.DefaultQueriesAllowed = %d", cfg.Quota.DefaultQueriesAllowed)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"QUERYCHAT_PROFILE": "prod"})
	cfg, err := Load("querychat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("Cache.Enabled should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYCHAT_PROFILE":                        "test",
		"QUERYCHAT_SERVICE_NAME":                   "querychat-custom",
		"QUERYCHAT_HTTP_ADDR":                      ":9999",
		"QUERYCHAT_HTTP_READ_TIMEOUT":              "2s",
		"QUERYCHAT_HTTP_WRITE_TIMEOUT":             "3s",
		"QUERYCHAT_LOG_LEVEL":                      "error",
		"QUERYCHAT_AUTH_REQUIRED":                  "true",
		"QUERYCHAT_AUTH_STATIC_KEYS":               "k1:user-1",
		"QUERYCHAT_AUTH_JWT_SECRET":                "hush",
		"QUERYCHAT_STORE_DSN":                      "postgres://example",
		"QUERYCHAT_STORE_MAX_OPEN_CONNS":           "42",
		"QUERYCHAT_STORE_MAX_IDLE_CONNS":           "17",
		"QUERYCHAT_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"QUERYCHAT_OBJECTSTORE_BUCKET":             "querychat-prod",
		"QUERYCHAT_OBJECTSTORE_REGION":             "us-west-2",
		"QUERYCHAT_OBJECTSTORE_ACCESS_KEY":         "abc",
		"QUERYCHAT_OBJECTSTORE_SECRET_KEY":         "def",
		"QUERYCHAT_OBJECTSTORE_USE_SSL":            "true",
		"QUERYCHAT_OBJECTSTORE_PREFIX":             "uploads",
		"QUERYCHAT_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"QUERYCHAT_CACHE_ENABLED":                  "true",
		"QUERYCHAT_CACHE_REDIS_ADDR":               "redis.example.com:6379",
		"QUERYCHAT_CACHE_REDIS_DB":                 "3",
		"QUERYCHAT_CACHE_SCHEMA_TTL":               "90s",
		"QUERYCHAT_AI_BASE_URL":                    "https://api.example.com",
		"QUERYCHAT_AI_API_KEY":                     "secret-key",
		"QUERYCHAT_AI_MODEL":                       "gpt-4o",
		"QUERYCHAT_AI_TIMEOUT":                     "21s",
		"QUERYCHAT_QUOTA_DEFAULT_ALLOWED":          "200",
	})
	cfg, err := Load("querychat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "querychat-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:user-1" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Auth.JWTSecret != "hush" {
		t.Fatalf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Store.DSN != "postgres://example" {
		t.Fatalf("Store.DSN = %q", cfg.Store.DSN)
	}
	if cfg.Store.MaxOpenConns != 42 || cfg.Store.MaxIdleConns != 17 {
		t.Fatalf("Store pool = %d/%d", cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "querychat-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Prefix != "uploads" {
		t.Fatalf("ObjectStore.Prefix = %q", cfg.ObjectStore.Prefix)
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr != "redis.example.com:6379" || cfg.Cache.DB != 3 {
		t.Fatalf("Cache = %#v", cfg.Cache)
	}
	if cfg.Cache.SchemaTTL != 90*time.Second {
		t.Fatalf("Cache.SchemaTTL = %s", cfg.Cache.SchemaTTL)
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Quota.DefaultQueriesAllowed != 200 {
		t.Fatalf("Quota.DefaultQueriesAllowed = %d", cfg.Quota.DefaultQueriesAllowed)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"QUERYCHAT_PROFILE": "oops"},
		{"QUERYCHAT_HTTP_READ_TIMEOUT": "NaN"},
		{"QUERYCHAT_STORE_MAX_OPEN_CONNS": "oops"},
		{"QUERYCHAT_CACHE_REDIS_DB": "oops"},
		{"QUERYCHAT_AI_TIMEOUT": "bad"},
		{"QUERYCHAT_AUTH_REQUIRED": "not-bool"},
		{"QUERYCHAT_LOG_LEVEL": "verbose"},
		{"QUERYCHAT_QUOTA_DEFAULT_ALLOWED": "0"},
	}
	for _, env := range tests {
		_, err := Load("querychat-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
