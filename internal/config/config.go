package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process and cdrctl.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Index     IndexConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	Lookup    LookupConfig
}

type AppConfig struct {
	Env  string
	Port int
}

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"
	BackendCassandra = "cassandra"
)

// StoreConfig selects the primary store: memory or postgres.
type StoreConfig struct {
	Backend string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode  string
	MaxConns int
}

// IndexConfig selects the search index: memory, redis or cassandra.
type IndexConfig struct {
	Backend string
	Stream  string
}

type RedisConfig struct {
	Host string
	Port int
}

type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
}

// LookupConfig tunes the simulated operator lookup and its optional decorators.
// Zero values for the decorators leave them off.
type LookupConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64

	CacheTTL       time.Duration
	RateLimit      float64
	RateBurst      int
	MaxAttempts    int
	ConcurrencyCap int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Backend = envOr("STORE_BACKEND", BackendMemory)
	c.Index.Backend = envOr("INDEX_BACKEND", BackendMemory)
	c.Index.Stream = envOr("REDIS_INDEX_STREAM", "cdr:index")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	{
		n, err := optionalInt("DB_MAX_CONNS", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxConns = n
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Cassandra.Hosts = splitList(os.Getenv("CASSANDRA_HOSTS"))
	c.Cassandra.Keyspace = envOr("CASSANDRA_KEYSPACE", "cdr")
	c.Cassandra.Username = strings.TrimSpace(os.Getenv("CASSANDRA_USERNAME"))
	c.Cassandra.Password = os.Getenv("CASSANDRA_PASSWORD")

	// Duration env vars are optional; defaults applied in Validate().
	for key, dst := range map[string]*time.Duration{
		"LOOKUP_MIN_LATENCY": &c.Lookup.MinLatency,
		"LOOKUP_MAX_LATENCY": &c.Lookup.MaxLatency,
		"LOOKUP_CACHE_TTL":   &c.Lookup.CacheTTL,
	} {
		d, err := optionalDuration(key)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		*dst = d
	}
	{
		f, err := optionalFloat("LOOKUP_FAILURE_RATE", -1)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Lookup.FailureRate = f
	}
	{
		f, err := optionalFloat("LOOKUP_RATE_LIMIT", 0)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Lookup.RateLimit = f
	}
	for key, dst := range map[string]*int{
		"LOOKUP_RATE_BURST":      &c.Lookup.RateBurst,
		"LOOKUP_MAX_ATTEMPTS":    &c.Lookup.MaxAttempts,
		"LOOKUP_CONCURRENCY_CAP": &c.Lookup.ConcurrencyCap,
	} {
		n, err := optionalInt(key, 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		*dst = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Index.Backend == "" {
		c.Index.Backend = BackendMemory
	}
	if c.Index.Stream == "" {
		c.Index.Stream = "cdr:index"
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		errs = append(errs, c.validateDB()...)
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, got %q", c.Store.Backend))
	}

	switch c.Index.Backend {
	case BackendMemory, BackendRedis:
	case BackendCassandra:
		if len(c.Cassandra.Hosts) == 0 {
			errs = append(errs, errors.New("CASSANDRA_HOSTS is required for the cassandra index"))
		}
		if c.Cassandra.Keyspace == "" {
			errs = append(errs, errors.New("CASSANDRA_KEYSPACE is required for the cassandra index"))
		}
	default:
		errs = append(errs, fmt.Errorf("INDEX_BACKEND must be one of memory, redis, cassandra, got %q", c.Index.Backend))
	}

	if c.NeedsRedis() {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	errs = append(errs, c.validateLookup()...)

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be >= 0, got %d", c.DB.MaxConns))
	}
	return errs
}

func (c *Config) validateLookup() []error {
	var errs []error
	l := &c.Lookup
	if l.MinLatency <= 0 {
		l.MinLatency = 100 * time.Millisecond
	}
	if l.MaxLatency <= 0 {
		l.MaxLatency = 300 * time.Millisecond
	}
	if l.MaxLatency < l.MinLatency {
		errs = append(errs, errors.New("LOOKUP_MAX_LATENCY must be >= LOOKUP_MIN_LATENCY"))
	}
	if l.FailureRate < 0 {
		l.FailureRate = 0.05
	}
	if l.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("LOOKUP_FAILURE_RATE must be within [0, 1], got %v", l.FailureRate))
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = 1
	}
	if l.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("LOOKUP_RATE_LIMIT must be >= 0, got %v", l.RateLimit))
	}
	if l.RateLimit > 0 && l.RateBurst <= 0 {
		l.RateBurst = 1
	}
	if l.ConcurrencyCap < 0 {
		errs = append(errs, fmt.Errorf("LOOKUP_CONCURRENCY_CAP must be >= 0, got %d", l.ConcurrencyCap))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// NeedsRedis reports whether any selected component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Index.Backend == BackendRedis || c.Lookup.CacheTTL > 0 || c.Lookup.ConcurrencyCap > 0
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
