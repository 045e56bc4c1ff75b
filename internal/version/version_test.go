package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"sui-invariant-monitor/internal/config"
)

func TestGet(t *testing.T) {
	info := Get(config.Config{
		MonitorID:       "mon-1",
		MonitorVersion:  "v1.2.3",
		SuiNetwork:      "testnet",
		SuiRPCURL:       "https://fullnode.testnet.sui.io:443",
		ProbeListenAddr: "0.0.0.0:7443",
	})
	assert.Equal(t, "mon-1", info.MonitorID)
	assert.Equal(t, "v1.2.3", info.MonitorVersion)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "testnet", info.SuiNetwork)
	assert.Positive(t, info.CheckedAtUnix)
}

func TestGet_FallsBackToBuiltinVersion(t *testing.T) {
	assert.Equal(t, config.HardcodedVersion, Get(config.Config{}).MonitorVersion)
}
