package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/bitpay/bws-daemon/internal/core/application"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey selects the bitcoin network, either livenet or testnet
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey is the base url of the Insight block explorer
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// ExplorerRequestTimeoutKey is the timeout in seconds of a single
	// explorer request
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// MaxMainAddressGapKey is the number of consecutive inactive main
	// addresses tolerated before refusing to derive more
	MaxMainAddressGapKey = "MAX_MAIN_ADDRESS_GAP"
	// ScanAddressGapKey is the wider gap limit applied during a full
	// recovery scan
	ScanAddressGapKey = "SCAN_ADDRESS_GAP"
	// DustThresholdKey is the minimum output value in satoshis
	DustThresholdKey = "DUST_THRESHOLD"
	// MaxTxSizeKbKey caps the estimated size of a created transaction
	MaxTxSizeKbKey = "MAX_TX_SIZE_KB"
	// DeleteLockTimeKey is the window in seconds during which a voted
	// proposal cannot be removed
	DeleteLockTimeKey = "DELETE_LOCK_TIME"
	// BackoffOffsetKey is the number of consecutive rejected proposals after
	// which creation is throttled
	BackoffOffsetKey = "BACKOFF_OFFSET"
	// BackoffTimeKey is the throttling window in seconds
	BackoffTimeKey = "BACKOFF_TIME"
	// FeeCacheTTLKey bounds the lifetime in seconds of a cached fee estimate
	FeeCacheTTLKey = "FEE_CACHE_TTL"
	// DefaultFeePerKbKey is the rate used when no fee level is given
	DefaultFeePerKbKey = "DEFAULT_FEE_PER_KB"

	// DbLocation ...
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("bws-daemon", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("BWS")
	vip.AutomaticEnv()

	defaults := application.DefaultConfig()
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, wallet.NetworkLivenet)
	vip.SetDefault(ExplorerEndpointKey, "https://insight.bitpay.com/api")
	vip.SetDefault(ExplorerRequestTimeoutKey, 15)
	vip.SetDefault(MaxMainAddressGapKey, defaults.MaxMainAddressGap)
	vip.SetDefault(ScanAddressGapKey, defaults.ScanAddressGap)
	vip.SetDefault(DustThresholdKey, int(defaults.DustThreshold))
	vip.SetDefault(MaxTxSizeKbKey, defaults.MaxTxSizeKb)
	vip.SetDefault(DeleteLockTimeKey, int(defaults.DeleteLockTime))
	vip.SetDefault(BackoffOffsetKey, defaults.BackoffOffset)
	vip.SetDefault(BackoffTimeKey, int(defaults.BackoffTime))
	vip.SetDefault(FeeCacheTTLKey, int(defaults.FeeCacheTTL.Seconds()))
	vip.SetDefault(DefaultFeePerKbKey, int(defaults.DefaultFeePerKb))

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetServiceConfig folds the env overrides into the default service config.
func GetServiceConfig() application.Config {
	cfg := application.DefaultConfig()
	cfg.MaxMainAddressGap = GetInt(MaxMainAddressGapKey)
	cfg.ScanAddressGap = GetInt(ScanAddressGapKey)
	cfg.DustThreshold = uint64(GetInt(DustThresholdKey))
	cfg.MaxTxSizeKb = GetInt(MaxTxSizeKbKey)
	cfg.DeleteLockTime = int64(GetInt(DeleteLockTimeKey))
	cfg.BackoffOffset = GetInt(BackoffOffsetKey)
	cfg.BackoffTime = int64(GetInt(BackoffTimeKey))
	cfg.FeeCacheTTL = time.Duration(GetInt(FeeCacheTTLKey)) * time.Second
	cfg.DefaultFeePerKb = uint64(GetInt(DefaultFeePerKbKey))
	return cfg
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if _, err := wallet.NetworkParams(GetString(NetworkKey)); err != nil {
		return fmt.Errorf("invalid network: %s", GetString(NetworkKey))
	}

	if len(GetString(ExplorerEndpointKey)) <= 0 {
		return fmt.Errorf("missing explorer endpoint")
	}

	if GetInt(MaxMainAddressGapKey) <= 0 || GetInt(ScanAddressGapKey) <= 0 {
		return fmt.Errorf("address gaps must be positive")
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
