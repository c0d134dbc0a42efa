package application

import "time"

// FeeLevel maps a named fee level to its confirmation target and the static
// rate used when the explorer cannot answer.
type FeeLevel struct {
	Name            string
	NbBlocks        int
	DefaultFeePerKb uint64
}

// Config carries every tunable of the wallet service. It is an immutable
// value set at construction; tests substitute alternate configs instead of
// patching shared state.
type Config struct {
	// MaxMainAddressGap is the number of consecutive inactive main addresses
	// tolerated before refusing to derive more.
	MaxMainAddressGap int
	// ScanAddressGap is the wider gap limit applied during a full recovery
	// scan.
	ScanAddressGap int
	// DustThreshold is the minimum economically meaningful output value in
	// satoshis.
	DustThreshold uint64
	// MaxTxSizeKb caps the estimated size of a created transaction.
	MaxTxSizeKb int
	// DeleteLockTime is the window in seconds during which a voted proposal
	// cannot be removed.
	DeleteLockTime int64
	// BackoffOffset is the number of consecutive rejected or unbroadcasted
	// proposals after which creation is throttled.
	BackoffOffset int
	// BackoffTime is the throttling window in seconds.
	BackoffTime int64
	// FeeCacheTTL bounds the lifetime of a cached fee estimate.
	FeeCacheTTL time.Duration
	// DefaultFeePerKb is the rate used when no level is given.
	DefaultFeePerKb uint64
	// FeeLevels, ordered from most to least urgent.
	FeeLevels []FeeLevel

	// Coin selection factors.
	MaxSingleUtxoFactor         float64
	MinTxAmountVsUtxoFactor     float64
	MaxFeeVsTxAmountFactor      float64
	MaxFeeVsSingleUtxoFeeFactor float64

	// UnsafeAncestorDepth caps the parent-tx walk classifying unconfirmed
	// utxos as safe or unsafe.
	UnsafeAncestorDepth int

	// TwoStepBalanceThreshold partitions wallet addresses into the set
	// answered immediately and the set refreshed asynchronously.
	TwoStepBalanceThreshold time.Duration

	// MaxNotificationAge caps how far back notification listings may reach.
	MaxNotificationAge time.Duration
}

// DefaultConfig returns the config the daemon runs with when no overrides
// are provided.
func DefaultConfig() Config {
	return Config{
		MaxMainAddressGap:           20,
		ScanAddressGap:              40,
		DustThreshold:               546,
		MaxTxSizeKb:                 100,
		DeleteLockTime:              600,
		BackoffOffset:               10,
		BackoffTime:                 600,
		FeeCacheTTL:                 10 * time.Minute,
		DefaultFeePerKb:             10000,
		MaxSingleUtxoFactor:         2,
		MinTxAmountVsUtxoFactor:     0.1,
		MaxFeeVsTxAmountFactor:      0.05,
		MaxFeeVsSingleUtxoFeeFactor: 5,
		UnsafeAncestorDepth:         5,
		TwoStepBalanceThreshold:     time.Hour,
		MaxNotificationAge:          14 * 24 * time.Hour,
		FeeLevels: []FeeLevel{
			{Name: "urgent", NbBlocks: 2, DefaultFeePerKb: 150000},
			{Name: "priority", NbBlocks: 2, DefaultFeePerKb: 100000},
			{Name: "normal", NbBlocks: 3, DefaultFeePerKb: 40000},
			{Name: "economy", NbBlocks: 6, DefaultFeePerKb: 25000},
			{Name: "superEconomy", NbBlocks: 24, DefaultFeePerKb: 10000},
		},
	}
}
