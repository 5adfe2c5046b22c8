package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocal() Config {
	return Config{App: AppConfig{Env: "local", Port: 8080}}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_MemoryDefaults(t *testing.T) {
	c := validLocal()
	require.NoError(t, c.Validate())

	assert.Equal(t, BackendMemory, c.Store.Backend)
	assert.Equal(t, BackendMemory, c.Index.Backend)
	assert.Equal(t, "cdr:index", c.Index.Stream)
	assert.Equal(t, 100*time.Millisecond, c.Lookup.MinLatency)
	assert.Equal(t, 300*time.Millisecond, c.Lookup.MaxLatency)
	assert.Equal(t, 0.0, c.Lookup.FailureRate)
	assert.Equal(t, 1, c.Lookup.MaxAttempts)
	assert.False(t, c.NeedsRedis())
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		Store: StoreConfig{Backend: BackendPostgres},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "cdr", SSLMode: ""},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Store: StoreConfig{Backend: BackendPostgres},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "cdr", SSLMode: ""},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_MemoryStoreIgnoresDB(t *testing.T) {
	c := validLocal()
	c.Store.Backend = BackendMemory
	c.DB = DBConfig{}
	assert.NoError(t, c.Validate())
}

func TestValidate_UnknownBackends(t *testing.T) {
	c := validLocal()
	c.Store.Backend = "mongo"
	c.Index.Backend = "elastic"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
	assert.Contains(t, err.Error(), "INDEX_BACKEND")
}

func TestValidate_RedisRequiredWhenUsed(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"index": func(c *Config) { c.Index.Backend = BackendRedis },
		"cache": func(c *Config) { c.Lookup.CacheTTL = time.Minute },
		"cap":   func(c *Config) { c.Lookup.ConcurrencyCap = 10 },
	} {
		t.Run(name, func(t *testing.T) {
			c := validLocal()
			mutate(&c)
			assert.True(t, c.NeedsRedis())

			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "REDIS_HOST")

			c.Redis = RedisConfig{Host: "localhost", Port: 6379}
			assert.NoError(t, c.Validate())
		})
	}
}

func TestValidate_CassandraRequiresHosts(t *testing.T) {
	c := validLocal()
	c.Index.Backend = BackendCassandra
	c.Cassandra.Keyspace = "cdr"
	require.Error(t, c.Validate())

	c.Cassandra.Hosts = []string{"127.0.0.1"}
	assert.NoError(t, c.Validate())
}

func TestValidate_LookupBounds(t *testing.T) {
	c := validLocal()
	c.Lookup.MinLatency = time.Second
	c.Lookup.MaxLatency = 10 * time.Millisecond
	c.Lookup.FailureRate = 1.5
	c.Lookup.RateLimit = -1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOKUP_MAX_LATENCY")
	assert.Contains(t, err.Error(), "LOOKUP_FAILURE_RATE")
	assert.Contains(t, err.Error(), "LOOKUP_RATE_LIMIT")
}

func TestValidate_RateLimitDefaultsBurst(t *testing.T) {
	c := validLocal()
	c.Lookup.RateLimit = 50
	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.Lookup.RateBurst)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("INDEX_BACKEND", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("LOOKUP_FAILURE_RATE", "0.2")
	t.Setenv("LOOKUP_MAX_ATTEMPTS", "3")
	t.Setenv("LOOKUP_CACHE_TTL", "10m")
	t.Setenv("CASSANDRA_HOSTS", " a, b ,,c ")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTPAddr())
	assert.Equal(t, "cache:6379", c.RedisAddr())
	assert.Equal(t, 0.2, c.Lookup.FailureRate)
	assert.Equal(t, 3, c.Lookup.MaxAttempts)
	assert.Equal(t, 10*time.Minute, c.Lookup.CacheTTL)
	assert.Equal(t, []string{"a", "b", "c"}, c.Cassandra.Hosts)
}

func TestLoad_ParseErrors(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("LOOKUP_RATE_LIMIT", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_PORT must be an integer")
	assert.Contains(t, err.Error(), "LOOKUP_RATE_LIMIT must be a number")
}

func TestLoad_InvalidDurations(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("LOOKUP_CACHE_TTL", "soon")
	t.Setenv("LOOKUP_MAX_LATENCY", "200")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `LOOKUP_CACHE_TTL must be a duration, got "soon"`)
	assert.Contains(t, err.Error(), `LOOKUP_MAX_LATENCY must be a duration, got "200"`)
}
