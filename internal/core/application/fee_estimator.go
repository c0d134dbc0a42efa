package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/pkg/explorer"
)

type cachedEstimate struct {
	feePerKb  uint64
	expiresAt time.Time
}

// FeeEstimator resolves named fee levels to rates in satoshis per kilobyte,
// caching explorer answers and falling back to static defaults. It never
// fails the caller: fee estimation must not block proposal creation.
type FeeEstimator struct {
	explorerSvc explorer.Service
	cfg         Config

	mtx   sync.RWMutex
	cache map[string]cachedEstimate
}

// NewFeeEstimator ...
func NewFeeEstimator(explorerSvc explorer.Service, cfg Config) *FeeEstimator {
	return &FeeEstimator{
		explorerSvc: explorerSvc,
		cfg:         cfg,
		cache:       make(map[string]cachedEstimate),
	}
}

// GetFeeLevels resolves every configured level. Levels the explorer cannot
// answer fall back, in order, to the level's cached estimate, to the
// estimate resolved for the next coarser level, and to the static default.
func (f *FeeEstimator) GetFeeLevels(ctx context.Context) map[string]FeeLevelInfo {
	levels := make(map[string]FeeLevelInfo, len(f.cfg.FeeLevels))

	var lastResolved uint64
	for _, level := range f.cfg.FeeLevels {
		feePerKb, ok := f.resolve(ctx, level)
		if !ok && lastResolved > 0 {
			feePerKb = lastResolved
		}
		if feePerKb > 0 {
			lastResolved = feePerKb
		} else {
			feePerKb = level.DefaultFeePerKb
		}
		levels[level.Name] = FeeLevelInfo{
			FeePerKb: feePerKb,
			NbBlocks: level.NbBlocks,
		}
	}
	return levels
}

// GetFeePerKb resolves a single named level, falling back to its static
// default when the explorer has no answer.
func (f *FeeEstimator) GetFeePerKb(ctx context.Context, levelName string) (uint64, error) {
	for _, level := range f.cfg.FeeLevels {
		if level.Name != levelName {
			continue
		}
		if feePerKb, ok := f.resolve(ctx, level); ok {
			return feePerKb, nil
		}
		return level.DefaultFeePerKb, nil
	}
	return 0, ErrUnknownFeeLevel
}

func (f *FeeEstimator) resolve(ctx context.Context, level FeeLevel) (uint64, bool) {
	if feePerKb, ok := f.fromCache(level.Name); ok {
		return feePerKb, true
	}

	estimate, err := f.explorerSvc.EstimateFee(ctx, level.NbBlocks)
	if err != nil {
		log.WithError(err).Warnf("fee estimation failed for level %s", level.Name)
		return 0, false
	}
	if estimate <= 0 {
		// the explorer returns FeeUnavailable when it has no data for the
		// requested target
		return 0, false
	}

	feePerKb := uint64(estimate)
	f.mtx.Lock()
	f.cache[level.Name] = cachedEstimate{
		feePerKb:  feePerKb,
		expiresAt: time.Now().Add(f.cfg.FeeCacheTTL),
	}
	f.mtx.Unlock()
	return feePerKb, true
}

func (f *FeeEstimator) fromCache(levelName string) (uint64, bool) {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	cached, ok := f.cache[levelName]
	if !ok || time.Now().After(cached.expiresAt) {
		return 0, false
	}
	return cached.feePerKb, true
}
