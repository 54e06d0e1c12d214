// Package swapconfig loads the settings file named in spec §6: a nested
// JSON document describing the two full-node RPC endpoints, the peer
// TCP listen address, the slate storage directory, and the chain
// network. Loaded with github.com/spf13/viper so every key can also be
// overridden by an MWBTCSWAP_-prefixed environment variable, the same
// pattern certenIO-certen-validator uses for its own settings (there
// via os.Getenv directly; here via viper's AutomaticEnv, since the
// settings are a nested file rather than a flat .env).
package swapconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// NodeSettings is the shared shape of the `btc` and `grin` settings
// blocks. Grin additionally sets Id (the wallet owner identifier the
// `/v2/foreign` API expects); Bitcoin Core leaves it empty.
type NodeSettings struct {
	URL  string `mapstructure:"url"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	Id   string `mapstructure:"id"`
}

// Network is the chain network a Settings targets.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Settings is spec §6's settings JSON file, unmarshalled.
type Settings struct {
	BTC            NodeSettings `mapstructure:"btc"`
	Grin           NodeSettings `mapstructure:"grin"`
	TCPAddr        string       `mapstructure:"tcp_addr"`
	TCPPort        int          `mapstructure:"tcp_port"`
	SlateDirectory string       `mapstructure:"slate_directory"`
	Network        Network      `mapstructure:"network"`
}

// Validate rejects a settings document missing a field every swap
// command needs regardless of which one was invoked.
func (s *Settings) Validate() error {
	var missing []string
	if s.BTC.URL == "" {
		missing = append(missing, "btc.url")
	}
	if s.Grin.URL == "" {
		missing = append(missing, "grin.url")
	}
	if s.TCPAddr == "" {
		missing = append(missing, "tcp_addr")
	}
	if s.SlateDirectory == "" {
		missing = append(missing, "slate_directory")
	}
	if s.Network != Mainnet && s.Network != Testnet {
		return fmt.Errorf("swapconfig: network must be %q or %q, got %q", Mainnet, Testnet, s.Network)
	}
	if len(missing) > 0 {
		return fmt.Errorf("swapconfig: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load reads the settings file at path (always parsed as JSON, whatever
// its extension) and applies MWBTCSWAP_-prefixed environment
// overrides on top — MWBTCSWAP_BTC_URL overrides btc.url,
// MWBTCSWAP_TCP_PORT overrides tcp_port, and so on.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix("MWBTCSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("swapconfig: read %s: %w", path, err)
	}

	// viper's AutomaticEnv only resolves an env override for a key it
	// already knows about from the file or an explicit BindEnv; nested
	// keys not present in the file would otherwise never check the
	// environment, so every key swap cares about is bound explicitly.
	for _, key := range []string{
		"btc.url", "btc.port", "btc.user", "btc.pass",
		"grin.url", "grin.port", "grin.user", "grin.pass", "grin.id",
		"tcp_addr", "tcp_port", "slate_directory", "network",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("swapconfig: bind env %s: %w", key, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("swapconfig: unmarshal: %w", err)
	}
	return &settings, nil
}
