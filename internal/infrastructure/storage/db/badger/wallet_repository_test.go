package dbbadger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
	dbbadger "github.com/bitpay/bws-daemon/internal/infrastructure/storage/db/badger"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

func newRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()
	repoManager, err := dbbadger.NewRepoManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func newStoredWallet(t *testing.T) *domain.Wallet {
	t.Helper()
	w, err := domain.NewWallet(domain.NewWalletOpts{
		Name:               "family savings",
		M:                  2,
		N:                  3,
		Network:            wallet.NetworkLivenet,
		DerivationStrategy: domain.DerivationStrategyBIP45,
	})
	require.NoError(t, err)
	return w
}

func TestWalletRoundTrip(t *testing.T) {
	repo := newRepoManager(t).WalletRepository()
	ctx := context.Background()

	w := newStoredWallet(t)
	require.NoError(t, repo.InsertWallet(ctx, w))
	// re-inserting the same wallet is a no-op
	require.NoError(t, repo.InsertWallet(ctx, w))

	stored, err := repo.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, w.Name, stored.Name)
	require.Equal(t, w.M, stored.M)
	require.Equal(t, w.N, stored.N)

	_, err = repo.GetWallet(ctx, "unknown")
	require.EqualError(t, err, domain.ErrWalletNotFound.Error())
}

func TestConcurrentWalletCounterUpdates(t *testing.T) {
	repo := newRepoManager(t).WalletRepository()
	ctx := context.Background()

	w := newStoredWallet(t)
	require.NoError(t, repo.InsertWallet(ctx, w))

	// every writer must reserve its own index: conflicting commits retry
	// until they serialize instead of surfacing an error
	const writers = 10
	g := errgroup.Group{}
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			return repo.UpdateWallet(
				ctx, w.ID,
				func(current *domain.Wallet) (*domain.Wallet, error) {
					current.AddressManager.GetNewAddressPath(false)
					return current, nil
				},
			)
		})
	}
	require.NoError(t, g.Wait())

	stored, err := repo.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(writers), stored.AddressManager.ReceiveAddressIndex)
}

func TestGetRecentTxProposalsByCreator(t *testing.T) {
	repo := newRepoManager(t).TxProposalRepository()
	ctx := context.Background()

	for _, p := range []struct {
		creator string
		status  string
	}{
		{"copayer-a", domain.TxProposalStatusRejected},
		{"copayer-b", domain.TxProposalStatusPending},
		{"copayer-a", domain.TxProposalStatusRejected},
	} {
		require.NoError(t, repo.InsertTxProposal(ctx, &domain.TxProposal{
			ID:        domain.NewTxProposalID(),
			WalletID:  "wallet-1",
			CreatorID: p.creator,
			Status:    p.status,
		}))
	}

	recent, err := repo.GetRecentTxProposals(ctx, "wallet-1", "copayer-a", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, txp := range recent {
		require.Equal(t, "copayer-a", txp.CreatorID)
	}
	// most recent first
	require.GreaterOrEqual(t, recent[0].ID, recent[1].ID)

	recent, err = repo.GetRecentTxProposals(ctx, "wallet-1", "copayer-b", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
