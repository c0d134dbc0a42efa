package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

func validWalletOpts() domain.NewWalletOpts {
	return domain.NewWalletOpts{
		Name:               "shared wallet",
		M:                  2,
		N:                  3,
		Network:            wallet.NetworkLivenet,
		DerivationStrategy: domain.DerivationStrategyBIP45,
	}
}

func newTestCopayer(name string) *domain.Copayer {
	return domain.NewCopayer(
		name,
		fmt.Sprintf("xpub-%s", name),
		fmt.Sprintf("requestkey-%s", name),
	)
}

func TestNewWallet(t *testing.T) {
	w, err := domain.NewWallet(validWalletOpts())
	require.NoError(t, err)
	require.NotNil(t, w)
	require.NotEmpty(t, w.ID)
	require.Equal(t, domain.WalletStatusPending, w.Status)
	require.Equal(t, wallet.ScriptTypeP2SH, w.AddressType)
	require.False(t, w.IsComplete())
	require.True(t, w.IsShared())
	require.Empty(t, w.PubKeyRing)
	require.Equal(t, uint32(domain.SharedCosignerIndex), w.AddressManager.CopayerIndex)
}

func TestNewWalletSingleKeyDefaultsToP2PKH(t *testing.T) {
	opts := validWalletOpts()
	opts.M, opts.N = 1, 1
	w, err := domain.NewWallet(opts)
	require.NoError(t, err)
	require.Equal(t, wallet.ScriptTypeP2PKH, w.AddressType)
	require.False(t, w.IsShared())
}

func TestFailingNewWallet(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *domain.NewWalletOpts)
	}{
		{"missing_name", func(o *domain.NewWalletOpts) { o.Name = "" }},
		{"zero_m", func(o *domain.NewWalletOpts) { o.M = 0 }},
		{"m_above_n", func(o *domain.NewWalletOpts) { o.M = 4 }},
		{"n_above_max", func(o *domain.NewWalletOpts) { o.M, o.N = 1, 16 }},
		{"bad_network", func(o *domain.NewWalletOpts) { o.Network = "regtest" }},
		{"bad_strategy", func(o *domain.NewWalletOpts) { o.DerivationStrategy = "BIP32" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validWalletOpts()
			tt.mutate(&opts)
			_, err := domain.NewWallet(opts)
			require.EqualError(t, err, domain.ErrInvalidArgument.Error())
		})
	}
}

func TestAddCopayer(t *testing.T) {
	w, err := domain.NewWallet(validWalletOpts())
	require.NoError(t, err)

	copayers := []*domain.Copayer{
		newTestCopayer("alice"), newTestCopayer("bob"), newTestCopayer("carol"),
	}
	for i, c := range copayers {
		require.NoError(t, w.AddCopayer(c))
		if i < len(copayers)-1 {
			require.False(t, w.IsComplete())
			require.Empty(t, w.PubKeyRing)
		}
	}

	// the n-th copayer completes the wallet and freezes the key ring
	require.True(t, w.IsComplete())
	require.Len(t, w.PubKeyRing, 3)
	for i, c := range copayers {
		require.Equal(t, c.XPubKey, w.PubKeyRing[i])
		require.NotNil(t, w.GetCopayer(c.ID))
	}

	require.EqualError(
		t, w.AddCopayer(newTestCopayer("dave")), domain.ErrWalletFull.Error(),
	)
}

func TestAddCopayerTwice(t *testing.T) {
	w, err := domain.NewWallet(validWalletOpts())
	require.NoError(t, err)

	copayer := newTestCopayer("alice")
	require.NoError(t, w.AddCopayer(copayer))
	require.EqualError(
		t, w.AddCopayer(newTestCopayer("alice")),
		domain.ErrCopayerInWallet.Error(),
	)
}

func TestCopayerIDFromXPub(t *testing.T) {
	id := domain.CopayerIDFromXPub("xpub-alice")
	require.Len(t, id, 64)
	require.Equal(t, id, domain.CopayerIDFromXPub("xpub-alice"))
	require.NotEqual(t, id, domain.CopayerIDFromXPub("xpub-bob"))
}

func TestAddRequestPubKey(t *testing.T) {
	copayer := newTestCopayer("alice")
	require.Len(t, copayer.RequestPubKeys, 1)

	copayer.AddRequestPubKey("requestkey-rotated")
	require.Len(t, copayer.RequestPubKeys, 2)

	// adding the same key again is a no-op
	copayer.AddRequestPubKey("requestkey-rotated")
	require.Len(t, copayer.RequestPubKeys, 2)
}
