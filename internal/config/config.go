package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sui-invariant-monitor/internal/sui"
)

const (
	HardcodedVersion       = "v0.3.0"
	DefaultAlertGRPCMethod = "/sui.monitor.v1.AlertService/StreamViolations"
	DefaultOllamaBaseURL   = "http://localhost:11434"
)

type Config struct {
	MonitorID             string
	SuiNetwork            string
	SuiRPCURL             string
	PollInterval          time.Duration
	MonitoredObjectIDs    []string
	BalanceOwner          string
	BalanceCoinType       string
	Port                  int
	HTTPListenAddr        string
	ProbeListenAddr       string
	WebhookURL            string
	DiscordWebhookURL     string
	AlertGRPCAddr         string
	AlertGRPCMethod       string
	AlertWSURL            string
	AlertToken            string
	AlertRate             float64
	AlertBurst            int
	AlertTimeout          time.Duration
	WebSocketWriteTimeout time.Duration
	WebSocketPingInterval time.Duration
	HealthInterval        time.Duration
	ReconnectInterval     time.Duration
	MaxReconnectJitter    time.Duration
	ShutdownTimeout       time.Duration
	CollectorErrorBackoff time.Duration
	BuiltinChecks         bool
	MonitorVersion        string
	TLSEnabled            bool
	TLSSkipVerify         bool
	TLSCAPath             string
	TLSCertPath           string
	TLSKeyPath            string
	LogJSON               bool
	LogLevel              string
	OpenRouterAPIKey      string
	OllamaBaseURL         string
	LLMModel              string
}

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := loadDotEnv(env("MONITOR_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	network := strings.ToLower(env("SUI_NETWORK", ""))
	port := envInt("PORT", 8080)

	cfg := Config{
		MonitorID:             env("MONITOR_ID", hostname),
		SuiNetwork:            network,
		SuiRPCURL:             sui.RPCURL(network, env("SUI_RPC_URL", "")),
		PollInterval:          envDuration("MONITOR_POLL_INTERVAL", time.Duration(envInt("POLLING_INTERVAL_SECS", 10))*time.Second),
		MonitoredObjectIDs:    envList("MONITORED_OBJECT_IDS"),
		BalanceOwner:          env("MONITOR_BALANCE_OWNER", ""),
		BalanceCoinType:       env("MONITOR_BALANCE_COIN_TYPE", sui.DefaultCoinType),
		Port:                  port,
		HTTPListenAddr:        fmt.Sprintf("0.0.0.0:%d", port),
		ProbeListenAddr:       env("MONITOR_PROBE_ADDR", "0.0.0.0:7443"),
		WebhookURL:            env("WEBHOOK_URL", ""),
		DiscordWebhookURL:     env("DISCORD_WEBHOOK_URL", ""),
		AlertGRPCAddr:         env("MONITOR_ALERT_GRPC_ADDR", ""),
		AlertGRPCMethod:       env("MONITOR_ALERT_GRPC_METHOD", DefaultAlertGRPCMethod),
		AlertWSURL:            env("MONITOR_ALERT_WS_URL", ""),
		AlertToken:            env("MONITOR_ALERT_TOKEN", ""),
		AlertRate:             envFloat("MONITOR_ALERT_RATE", 1),
		AlertBurst:            envInt("MONITOR_ALERT_BURST", 5),
		AlertTimeout:          envDuration("MONITOR_ALERT_TIMEOUT", 10*time.Second),
		WebSocketWriteTimeout: envDuration("MONITOR_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketPingInterval: envDuration("MONITOR_WS_PING_INTERVAL", 10*time.Second),
		HealthInterval:        envDuration("MONITOR_HEALTH_INTERVAL", 30*time.Second),
		ReconnectInterval:     envDuration("MONITOR_RECONNECT_INTERVAL", 3*time.Second),
		MaxReconnectJitter:    envDuration("MONITOR_RECONNECT_MAX_JITTER", 900*time.Millisecond),
		ShutdownTimeout:       envDuration("MONITOR_SHUTDOWN_TIMEOUT", 15*time.Second),
		CollectorErrorBackoff: envDuration("MONITOR_COLLECTOR_ERROR_BACKOFF", 1500*time.Millisecond),
		BuiltinChecks:         envBool("MONITOR_BUILTIN_CHECKS", true),
		MonitorVersion:        HardcodedVersion,
		TLSEnabled:            envBool("MONITOR_TLS_ENABLED", false),
		TLSSkipVerify:         envBool("MONITOR_TLS_SKIP_VERIFY", false),
		TLSCAPath:             env("MONITOR_TLS_CA_PATH", ""),
		TLSCertPath:           env("MONITOR_TLS_CERT_PATH", ""),
		TLSKeyPath:            env("MONITOR_TLS_KEY_PATH", ""),
		LogJSON:               envBool("MONITOR_LOG_JSON", false),
		LogLevel:              strings.ToLower(env("MONITOR_LOG_LEVEL", "info")),
		OpenRouterAPIKey:      env("OPENROUTER_API_KEY", ""),
		OllamaBaseURL:         env("OLLAMA_BASE_URL", DefaultOllamaBaseURL),
		LLMModel:              env("LLM_MODEL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.MonitorID) == "" {
		return errors.New("MONITOR_ID must not be empty")
	}
	if strings.TrimSpace(c.MonitorVersion) == "" {
		return errors.New("monitor version must not be empty")
	}
	if c.SuiRPCURL == "" {
		return errors.New("SUI_RPC_URL is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLLING_INTERVAL_SECS must be > 0")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("MONITOR_PROBE_ADDR is required")
	}
	for _, id := range c.MonitoredObjectIDs {
		if !sui.IsObjectID(id) {
			return fmt.Errorf("MONITORED_OBJECT_IDS: invalid object id %q", id)
		}
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("MONITOR_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("MONITOR_HEALTH_INTERVAL must be > 0")
	}
	if c.ReconnectInterval <= 0 {
		return errors.New("MONITOR_RECONNECT_INTERVAL must be > 0")
	}
	if c.AlertRate <= 0 {
		return errors.New("MONITOR_ALERT_RATE must be > 0")
	}
	if c.AlertBurst < 1 {
		return errors.New("MONITOR_ALERT_BURST must be >= 1")
	}
	if c.AlertTimeout <= 0 {
		return errors.New("MONITOR_ALERT_TIMEOUT must be > 0")
	}
	if c.AlertGRPCAddr != "" && strings.TrimSpace(c.AlertGRPCMethod) == "" {
		return errors.New("MONITOR_ALERT_GRPC_METHOD is required when MONITOR_ALERT_GRPC_ADDR is set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
