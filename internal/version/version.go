// Package version reports what build is running and where it points.
package version

import (
	"runtime"
	"time"

	"sui-invariant-monitor/internal/config"
)

type Info struct {
	MonitorID       string `json:"monitor_id"`
	MonitorVersion  string `json:"monitor_version"`
	GoVersion       string `json:"go_version"`
	SuiNetwork      string `json:"sui_network"`
	SuiRPCURL       string `json:"sui_rpc_url"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}

func Get(cfg config.Config) Info {
	v := cfg.MonitorVersion
	if v == "" {
		v = config.HardcodedVersion
	}
	return Info{
		MonitorID:       cfg.MonitorID,
		MonitorVersion:  v,
		GoVersion:       runtime.Version(),
		SuiNetwork:      cfg.SuiNetwork,
		SuiRPCURL:       cfg.SuiRPCURL,
		ProbeListenAddr: cfg.ProbeListenAddr,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
