package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Provider ProviderConfig `json:"provider"`
	Routing  RoutingConfig  `json:"routing"`
	Logging  LoggingConfig  `json:"logging"`
	Redis    RedisConfig    `json:"redis"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxLifetime  int    `json:"max_lifetime"`
}

// ProviderConfig is the Configuration surface named in the external
// interfaces: the upstream "chat completion provider" the gateway talks
// to, plus the resilience knobs wrapping that call.
type ProviderConfig struct {
	ApiKey                         string `json:"api_key"`
	BaseUrl                        string `json:"base_url"`
	TimeoutSeconds                 int    `json:"timeout_seconds"`
	HealthCheckTimeoutSeconds      int    `json:"health_check_timeout_seconds"`
	MaxRetries                     int    `json:"max_retries"`
	CircuitBreakerFailureThreshold int    `json:"circuit_breaker_failure_threshold"`
	CircuitBreakerCooldownSeconds  int    `json:"circuit_breaker_cooldown_seconds"`
	MaxConnectionsPerServer        int    `json:"max_connections_per_server"`
	ConnectionLifetimeMinutes      int    `json:"connection_lifetime_minutes"`
	UseHttp2                       bool   `json:"use_http2"`
}

// RoutingConfig carries the model routing constants and the fallback
// chain ordering decided in SPEC_FULL.md.
type RoutingConfig struct {
	DefaultModel         string   `json:"default_model"`
	LargeContextModel    string   `json:"large_context_model"`
	BalancedModel        string   `json:"balanced_model"`
	StandardContextLimit int      `json:"standard_context_limit"`
	LargeContextLimit    int      `json:"large_context_limit"`
	FallbackChain        []string `json:"fallback_chain"`
	MaxAttempts          int      `json:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Output string `json:"output"`
}

// RedisConfig backs the optional Pricing TTL cache (spec.md §5).
type RedisConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Password       string `json:"password"`
	DB             int    `json:"db"`
	PricingCacheTTL int   `json:"pricing_cache_ttl"`
	EnablePricingCache bool `json:"enable_pricing_cache"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "gatewayuser"),
			Password:     getEnv("DB_PASSWORD", "gatewaypassword"),
			Name:         getEnv("DB_NAME", "llm_gateway"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		Provider: ProviderConfig{
			ApiKey:                         getEnv("PROVIDER_API_KEY", ""),
			BaseUrl:                        getEnv("PROVIDER_BASE_URL", "http://localhost:8081"),
			TimeoutSeconds:                 getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 60),
			HealthCheckTimeoutSeconds:      getEnvAsInt("PROVIDER_HEALTH_CHECK_TIMEOUT_SECONDS", 5),
			MaxRetries:                     getEnvAsInt("PROVIDER_MAX_RETRIES", 2),
			CircuitBreakerFailureThreshold: getEnvAsInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 3),
			CircuitBreakerCooldownSeconds:  getEnvAsInt("CIRCUIT_BREAKER_COOLDOWN_SECONDS", 30),
			MaxConnectionsPerServer:        getEnvAsInt("MAX_CONNECTIONS_PER_SERVER", 100),
			ConnectionLifetimeMinutes:      getEnvAsInt("CONNECTION_LIFETIME_MINUTES", 5),
			UseHttp2:                       getEnvAsBool("USE_HTTP2", true),
		},
		Routing: RoutingConfig{
			DefaultModel:         getEnv("ROUTING_DEFAULT_MODEL", "provider/default"),
			LargeContextModel:    getEnv("ROUTING_LARGE_CONTEXT_MODEL", "provider/large-context"),
			BalancedModel:        getEnv("ROUTING_BALANCED_MODEL", "provider/balanced"),
			StandardContextLimit: getEnvAsInt("ROUTING_STANDARD_CONTEXT_LIMIT", 10000),
			LargeContextLimit:    getEnvAsInt("ROUTING_LARGE_CONTEXT_LIMIT", 200000),
			FallbackChain: getEnvAsSlice("ROUTING_FALLBACK_CHAIN", []string{
				getEnv("ROUTING_LARGE_CONTEXT_MODEL", "provider/large-context"),
				getEnv("ROUTING_BALANCED_MODEL", "provider/balanced"),
				getEnv("ROUTING_DEFAULT_MODEL", "provider/default"),
			}),
			MaxAttempts: getEnvAsInt("ROUTING_MAX_ATTEMPTS", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Redis: RedisConfig{
			Host:               getEnv("REDIS_HOST", "localhost"),
			Port:               getEnvAsInt("REDIS_PORT", 6379),
			Password:           getEnv("REDIS_PASSWORD", ""),
			DB:                 getEnvAsInt("REDIS_DB", 0),
			PricingCacheTTL:    getEnvAsInt("REDIS_PRICING_CACHE_TTL", 300),
			EnablePricingCache: getEnvAsBool("REDIS_ENABLE_PRICING_CACHE", true),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateConfig(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required (DB_PASSWORD)")
	}

	if config.Provider.BaseUrl == "" {
		return fmt.Errorf("provider base URL is required (PROVIDER_BASE_URL)")
	}

	if len(config.Routing.FallbackChain) == 0 {
		return fmt.Errorf("routing fallback chain must not be empty (ROUTING_FALLBACK_CHAIN)")
	}

	if config.Routing.StandardContextLimit >= config.Routing.LargeContextLimit {
		return fmt.Errorf("routing standard context limit must be smaller than large context limit")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
