package sui

import "strings"

const (
	MainnetURL  = "https://fullnode.mainnet.sui.io:443"
	TestnetURL  = "https://fullnode.testnet.sui.io:443"
	DevnetURL   = "https://fullnode.devnet.sui.io:443"
	LocalnetURL = "http://127.0.0.1:9000"
)

// RPCURL maps a network name to its public full node. Unknown or empty
// names resolve to fallback, or to mainnet when fallback is empty.
func RPCURL(network, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet":
		return MainnetURL
	case "testnet":
		return TestnetURL
	case "devnet":
		return DevnetURL
	case "localnet":
		return LocalnetURL
	}
	if fallback != "" {
		return fallback
	}
	return MainnetURL
}

// IsObjectID reports whether id is 0x followed by 64 hex digits.
func IsObjectID(id string) bool {
	if len(id) != 66 || !strings.HasPrefix(id, "0x") {
		return false
	}
	for _, r := range id[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
