package application_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitpay/bws-daemon/internal/core/application"
	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

func newSelectorOpts(utxos []*application.Utxo, amount uint64) application.SelectInputsOpts {
	return application.SelectInputsOpts{
		Utxos:      utxos,
		Amount:     amount,
		FeePerKb:   10000,
		ScriptType: wallet.ScriptTypeP2SH,
		M:          2,
		N:          3,
		NbOutputs:  2,
	}
}

func newUtxos(confirmations int64, values ...uint64) []*application.Utxo {
	utxos := make([]*application.Utxo, 0, len(values))
	for i, v := range values {
		utxos = append(utxos, &application.Utxo{
			TxID:          fmt.Sprintf("%064d", i),
			Vout:          uint32(i),
			Satoshis:      v,
			Confirmations: confirmations,
			Safe:          true,
		})
	}
	return utxos
}

func TestSelectInputsBigInputShortcut(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	// 200000 exceeds twice the target and is skipped, 100000 fits on its own
	res, err := selector.SelectInputs(
		newSelectorOpts(newUtxos(6, 100000, 200000), 80000),
	)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, uint64(100000), res.Inputs[0].Satoshis)

	// one 2-of-3 input, two outputs: 10 + 296 + 68 bytes at 10 sat/byte
	require.Equal(t, uint64(3740), res.Fee)
	require.Equal(t, uint64(100000-80000-3740), res.ChangeAmount)
}

func TestSelectInputsPrefersConfirmed(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	confirmed := newUtxos(6, 50000)
	unconfirmed := newUtxos(0, 50000)
	unconfirmed[0].TxID = fmt.Sprintf("%064d", 99)

	res, err := selector.SelectInputs(
		newSelectorOpts(append(confirmed, unconfirmed...), 40000),
	)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.True(t, res.Inputs[0].IsConfirmed())
}

func TestSelectInputsExcludeUnconfirmed(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	opts := newSelectorOpts(newUtxos(0, 100000), 50000)
	opts.ExcludeUnconfirmed = true

	_, err := selector.SelectInputs(opts)
	require.EqualError(t, err, domain.ErrInsufficientFunds.Error())
}

func TestSelectInputsSkipsDustyContributions(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	// 5000 contributes less than a tenth of the target and must be skipped
	utxos := newUtxos(6, 5000, 60000, 60000)
	res, err := selector.SelectInputs(newSelectorOpts(utxos, 100000))
	require.NoError(t, err)
	require.Len(t, res.Inputs, 2)
	for _, in := range res.Inputs {
		require.Equal(t, uint64(60000), in.Satoshis)
	}
}

func TestSelectInputsFallsBackOnFeeBlowup(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	// eight small coins reach the target but their combined fee grows past
	// five times a one-input fee: the oversized coin wins even though it is
	// too big for the shortcut
	values := []uint64{500000}
	for i := 0; i < 8; i++ {
		values = append(values, 30000)
	}

	res, err := selector.SelectInputs(
		newSelectorOpts(newUtxos(6, values...), 200000),
	)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, uint64(500000), res.Inputs[0].Satoshis)
	require.Equal(t, uint64(3740), res.Fee)
}

func TestSelectInputsInsufficientFunds(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	_, err := selector.SelectInputs(newSelectorOpts(newUtxos(6, 1000, 2000), 50000))
	require.EqualError(t, err, domain.ErrInsufficientFunds.Error())
}

func TestSelectInputsInsufficientFundsForFee(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	// funds cover the amount but not the fee on top of it
	_, err := selector.SelectInputs(newSelectorOpts(newUtxos(6, 50000), 49000))
	require.EqualError(t, err, domain.ErrInsufficientFundsForFee.Error())
}

func TestSelectInputsFixedFee(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	opts := newSelectorOpts(newUtxos(6, 100000), 50000)
	opts.FixedFee = 1000

	res, err := selector.SelectInputs(opts)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.Fee)
	require.Equal(t, uint64(49000), res.ChangeAmount)
}

func TestSelectInputsFoldsSubDustChange(t *testing.T) {
	selector := application.NewCoinSelector(application.DefaultConfig())

	opts := newSelectorOpts(newUtxos(6, 100000), 99500)
	opts.FixedFee = 300

	res, err := selector.SelectInputs(opts)
	require.NoError(t, err)
	// the 200 satoshi leftover is below dust and goes to the fee
	require.Equal(t, uint64(500), res.Fee)
	require.Zero(t, res.ChangeAmount)
}
