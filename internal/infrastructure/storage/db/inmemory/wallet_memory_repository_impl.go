package inmemory

import (
	"context"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type walletRepositoryImpl struct {
	store *walletInmemoryStore
}

// NewWalletRepositoryImpl returns a new inmemory WalletRepository
// implementation.
func NewWalletRepositoryImpl(store *walletInmemoryStore) domain.WalletRepository {
	return &walletRepositoryImpl{store}
}

func (r walletRepositoryImpl) InsertWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.wallets[wallet.ID]; ok {
		return nil
	}
	r.store.wallets[wallet.ID] = wallet
	return nil
}

func (r walletRepositoryImpl) GetWallet(
	_ context.Context, walletID string,
) (*domain.Wallet, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getWallet(walletID)
}

func (r walletRepositoryImpl) UpdateWallet(
	_ context.Context,
	walletID string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	wallet, err := r.getWallet(walletID)
	if err != nil {
		return err
	}
	updated, err := updateFn(wallet)
	if err != nil {
		return err
	}
	r.store.wallets[walletID] = updated
	return nil
}

func (r walletRepositoryImpl) GetWalletIDForCopayer(
	_ context.Context, copayerID string,
) (string, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, wallet := range r.store.wallets {
		if wallet.GetCopayer(copayerID) != nil {
			return wallet.ID, nil
		}
	}
	return "", domain.ErrNotAuthorized
}

func (r walletRepositoryImpl) DeleteWallet(
	_ context.Context, walletID string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.wallets[walletID]; !ok {
		return domain.ErrWalletNotFound
	}
	delete(r.store.wallets, walletID)
	return nil
}

func (r walletRepositoryImpl) getWallet(walletID string) (*domain.Wallet, error) {
	wallet, ok := r.store.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}
