package swapconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/swapconfig"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

const settingsJSON = `{
	"btc": {"url": "127.0.0.1", "port": 18332, "user": "rpcuser", "pass": "rpcpass"},
	"grin": {"url": "127.0.0.1", "port": 3415, "user": "grinuser", "pass": "grinpass", "id": "default"},
	"tcp_addr": "0.0.0.0",
	"tcp_port": 9735,
	"slate_directory": "./slates",
	"network": "testnet"
}`

func writeSettings(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	testutils.AssertNoError(t, "write settings file", os.WriteFile(path, []byte(settingsJSON), 0o600))
	return path
}

func TestLoadParsesNestedSettings(t *testing.T) {
	path := writeSettings(t)
	settings, err := swapconfig.Load(path)
	testutils.AssertNoError(t, "load settings", err)
	testutils.AssertStringsEqual(t, "btc url", "127.0.0.1", settings.BTC.URL)
	testutils.AssertIntsEqual(t, "btc port", 18332, settings.BTC.Port)
	testutils.AssertStringsEqual(t, "grin id", "default", settings.Grin.Id)
	testutils.AssertStringsEqual(t, "tcp addr", "0.0.0.0", settings.TCPAddr)
	testutils.AssertIntsEqual(t, "tcp port", 9735, settings.TCPPort)
	testutils.AssertStringsEqual(t, "slate directory", "./slates", settings.SlateDirectory)
	testutils.AssertStringsEqual(t, "network", string(swapconfig.Testnet), string(settings.Network))
	testutils.AssertNoError(t, "validate", settings.Validate())
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	path := writeSettings(t)
	t.Setenv("MWBTCSWAP_BTC_URL", "10.0.0.5")
	t.Setenv("MWBTCSWAP_TCP_PORT", "7777")

	settings, err := swapconfig.Load(path)
	testutils.AssertNoError(t, "load settings", err)
	testutils.AssertStringsEqual(t, "btc url overridden", "10.0.0.5", settings.BTC.URL)
	testutils.AssertIntsEqual(t, "tcp port overridden", 7777, settings.TCPPort)
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	settings := swapconfig.Settings{
		BTC:            swapconfig.NodeSettings{URL: "x"},
		Grin:           swapconfig.NodeSettings{URL: "y"},
		TCPAddr:        "0.0.0.0",
		SlateDirectory: "./slates",
		Network:        "regtest",
	}
	testutils.AssertError(t, "unknown network rejected", settings.Validate())
}

func TestValidateRejectsMissingFields(t *testing.T) {
	settings := swapconfig.Settings{Network: swapconfig.Mainnet}
	testutils.AssertError(t, "missing fields rejected", settings.Validate())
}
