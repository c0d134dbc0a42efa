package application

import (
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

// CoinSelector picks the input subset of a transaction under the
// confirmation, dust and fee-efficiency rules of the service config.
type CoinSelector struct {
	cfg Config
}

// NewCoinSelector ...
func NewCoinSelector(cfg Config) *CoinSelector {
	return &CoinSelector{cfg: cfg}
}

// SelectInputsOpts is the struct given to the SelectInputs method. Utxos
// must already exclude locked and explicitly excluded outputs; unsafe
// zero-confirmation utxos must already be filtered out by the caller.
// When FixedFee is set the fee is taken as given instead of being derived
// from FeePerKb and the estimated tx size, and the fee-efficiency check is
// skipped.
type SelectInputsOpts struct {
	Utxos              []*Utxo
	Amount             uint64
	FeePerKb           uint64
	FixedFee           uint64
	ScriptType         string
	M                  int
	N                  int
	NbOutputs          int
	ExcludeUnconfirmed bool
}

// SelectionResult carries the chosen inputs and the exact fee recomputed
// from the final input and output count. Change below the dust threshold is
// folded into the fee, leaving ChangeAmount at zero.
type SelectionResult struct {
	Inputs       []*Utxo
	Fee          uint64
	ChangeAmount uint64
}

// SelectInputs implements the selection algorithm: prefer a single
// big input when one fits the target closely, otherwise accumulate
// smallest-first among utxos contributing a meaningful fraction of the
// target, with confirmed utxos exhausted before unconfirmed ones.
func (s *CoinSelector) SelectInputs(opts SelectInputsOpts) (*SelectionResult, error) {
	candidates := s.partition(opts)

	var totalAvailable uint64
	for _, u := range candidates {
		totalAvailable += u.Satoshis
	}
	if totalAvailable < opts.Amount {
		return nil, domain.ErrInsufficientFunds
	}

	// big input shortcut: a single utxo close enough to the target keeps
	// the tx small and the fee low
	if result := s.bigInputShortcut(candidates, opts); result != nil {
		return s.finalize(result, opts)
	}

	selected, err := s.accumulate(candidates, opts)
	if err != nil {
		return nil, err
	}
	return s.finalize(selected, opts)
}

// partition drops utxos excluded by policy and orders the rest: confirmed
// first, then unconfirmed, each tier sorted by ascending value with
// equal-value runs shuffled so that the selection outcome is deterministic
// in total value but not in which same-value coin gets spent.
func (s *CoinSelector) partition(opts SelectInputsOpts) []*Utxo {
	confirmed := make([]*Utxo, 0, len(opts.Utxos))
	unconfirmed := make([]*Utxo, 0, len(opts.Utxos))
	for _, u := range opts.Utxos {
		if u.IsConfirmed() {
			confirmed = append(confirmed, u)
			continue
		}
		if opts.ExcludeUnconfirmed {
			continue
		}
		unconfirmed = append(unconfirmed, u)
	}
	sortTier(confirmed)
	sortTier(unconfirmed)
	return append(confirmed, unconfirmed...)
}

func sortTier(tier []*Utxo) {
	rand.Shuffle(len(tier), func(i, j int) {
		tier[i], tier[j] = tier[j], tier[i]
	})
	sort.SliceStable(tier, func(i, j int) bool {
		return tier[i].Satoshis < tier[j].Satoshis
	})
}

func (s *CoinSelector) bigInputShortcut(
	candidates []*Utxo, opts SelectInputsOpts,
) []*Utxo {
	maxValue := decimal.NewFromInt(int64(opts.Amount)).
		Mul(decimal.NewFromFloat(s.cfg.MaxSingleUtxoFactor))

	var best *Utxo
	for _, u := range candidates {
		if u.Satoshis < opts.Amount {
			continue
		}
		if decimal.NewFromInt(int64(u.Satoshis)).GreaterThan(maxValue) {
			continue
		}
		fee := s.feeFor(1, opts)
		if u.Satoshis < opts.Amount+fee {
			continue
		}
		if best == nil || u.Satoshis < best.Satoshis {
			best = u
		}
	}
	if best == nil {
		return nil
	}
	return []*Utxo{best}
}

func (s *CoinSelector) accumulate(
	candidates []*Utxo, opts SelectInputsOpts,
) ([]*Utxo, error) {
	minContribution := decimal.NewFromInt(int64(opts.Amount)).
		Mul(decimal.NewFromFloat(s.cfg.MinTxAmountVsUtxoFactor))

	selected := make([]*Utxo, 0, len(candidates))
	var total uint64
	for _, u := range candidates {
		if decimal.NewFromInt(int64(u.Satoshis)).LessThan(minContribution) {
			continue
		}
		selected = append(selected, u)
		total += u.Satoshis

		fee := s.feeFor(len(selected), opts)
		if total >= opts.Amount+fee {
			if s.feeAcceptable(fee, opts) {
				return selected, nil
			}
			// the fee exceeds the acceptable fraction of the amount: switch
			// to one oversized coin when that divides the fee by more than
			// the configured factor. Without such a coin, or when the blowup
			// is mild, the accumulated set is kept despite the excess: the
			// sender pays more in fees but the payment still goes through
			if s.singleInputFeeBlowup(fee, opts) {
				if fallback := s.smallestBigCoin(candidates, opts); fallback != nil {
					return fallback, nil
				}
			}
			return selected, nil
		}
		if s.sizeFor(len(selected), opts) > s.cfg.MaxTxSizeKb*1000 {
			break
		}
	}

	// target not reached on the cheap path: fall back to the smallest single
	// utxo able to cover amount plus fee on its own
	if fallback := s.smallestBigCoin(candidates, opts); fallback != nil {
		return fallback, nil
	}

	if s.sizeFor(len(selected)+1, opts) > s.cfg.MaxTxSizeKb*1000 {
		return nil, domain.ErrTxMaxSizeExceeded
	}
	return nil, domain.ErrInsufficientFundsForFee
}

// singleInputFeeBlowup reports whether the accumulated fee grew past the
// configured multiple of a one-input fee, the signal that spending a single
// big coin is worth discarding the accumulated selection.
func (s *CoinSelector) singleInputFeeBlowup(fee uint64, opts SelectInputsOpts) bool {
	maxFee := decimal.NewFromInt(int64(s.feeFor(1, opts))).
		Mul(decimal.NewFromFloat(s.cfg.MaxFeeVsSingleUtxoFeeFactor))
	return decimal.NewFromInt(int64(fee)).GreaterThan(maxFee)
}

func (s *CoinSelector) smallestBigCoin(
	candidates []*Utxo, opts SelectInputsOpts,
) []*Utxo {
	required := opts.Amount + s.feeFor(1, opts)
	var best *Utxo
	for _, u := range candidates {
		if u.Satoshis < required {
			continue
		}
		if best == nil || u.Satoshis < best.Satoshis {
			best = u
		}
	}
	if best == nil {
		return nil
	}
	return []*Utxo{best}
}

func (s *CoinSelector) feeAcceptable(fee uint64, opts SelectInputsOpts) bool {
	if opts.FixedFee > 0 {
		return true
	}
	maxFee := decimal.NewFromInt(int64(opts.Amount)).
		Mul(decimal.NewFromFloat(s.cfg.MaxFeeVsTxAmountFactor))
	return decimal.NewFromInt(int64(fee)).LessThanOrEqual(maxFee)
}

func (s *CoinSelector) finalize(
	selected []*Utxo, opts SelectInputsOpts,
) (*SelectionResult, error) {
	if s.sizeFor(len(selected), opts) > s.cfg.MaxTxSizeKb*1000 && len(selected) > 1 {
		return nil, domain.ErrTxMaxSizeExceeded
	}

	var total uint64
	for _, u := range selected {
		total += u.Satoshis
	}

	fee := s.feeFor(len(selected), opts)
	if total < opts.Amount+fee {
		return nil, domain.ErrInsufficientFundsForFee
	}

	change := total - opts.Amount - fee
	if change > 0 && change < s.cfg.DustThreshold {
		// fold sub-dust change into the fee instead of creating an output
		fee += change
		change = 0
	}

	return &SelectionResult{
		Inputs:       selected,
		Fee:          fee,
		ChangeAmount: change,
	}, nil
}

func (s *CoinSelector) feeFor(nbInputs int, opts SelectInputsOpts) uint64 {
	if opts.FixedFee > 0 {
		return opts.FixedFee
	}
	return wallet.FeeForSize(s.sizeFor(nbInputs, opts), opts.FeePerKb)
}

func (s *CoinSelector) sizeFor(nbInputs int, opts SelectInputsOpts) int {
	return wallet.EstimateTxSize(
		opts.ScriptType, opts.M, opts.N, nbInputs, opts.NbOutputs,
	)
}
