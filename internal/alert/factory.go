package alert

import (
	"crypto/tls"
	"log/slog"
	"net/http"

	"sui-invariant-monitor/internal/config"
)

// NewSinksFromConfig builds one sink per configured receiver. No receivers
// is valid: violations are then only logged and published.
func NewSinksFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) []Sink {
	httpClient := &http.Client{Timeout: cfg.AlertTimeout}
	var sinks []Sink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, httpClient))
	}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, NewDiscordSink(cfg.DiscordWebhookURL, httpClient))
	}
	if cfg.AlertGRPCAddr != "" {
		sinks = append(sinks, NewGRPCSink(cfg.AlertGRPCAddr, cfg.AlertGRPCMethod, cfg.MonitorID, tlsCfg, cfg.AlertToken, logger))
	}
	if cfg.AlertWSURL != "" {
		sinks = append(sinks, NewWebSocketSink(cfg.AlertWSURL, cfg.MonitorID, cfg.AlertToken, tlsCfg,
			cfg.WebSocketWriteTimeout, cfg.WebSocketPingInterval, logger))
	}
	return sinks
}
