package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type walletRepositoryImpl struct {
	db *DbManager
}

func NewWalletRepositoryImpl(db *DbManager) domain.WalletRepository {
	return walletRepositoryImpl{
		db: db,
	}
}

func (r walletRepositoryImpl) InsertWallet(
	ctx context.Context, wallet *domain.Wallet,
) error {
	if err := r.db.Store.Insert(wallet.ID, wallet); err != nil {
		if err != badgerhold.ErrKeyExists {
			return err
		}
	}
	return nil
}

func (r walletRepositoryImpl) GetWallet(
	ctx context.Context, walletID string,
) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.db.Store.Get(walletID, &wallet); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateWallet runs the update function inside a badger transaction so that
// concurrent updates of the same wallet conflict instead of overwriting
// each other. Conflicting transactions are retried.
func (r walletRepositoryImpl) UpdateWallet(
	ctx context.Context,
	walletID string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	return r.db.updateWithRetry(func(tx *badger.Txn) error {
		var wallet domain.Wallet
		if err := r.db.Store.TxGet(tx, walletID, &wallet); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrWalletNotFound
			}
			return err
		}
		updated, err := updateFn(&wallet)
		if err != nil {
			return err
		}
		return r.db.Store.TxUpdate(tx, walletID, *updated)
	})
}

func (r walletRepositoryImpl) GetWalletIDForCopayer(
	ctx context.Context, copayerID string,
) (string, error) {
	query := badgerhold.Where("ID").MatchFunc(
		func(ra *badgerhold.RecordAccess) (bool, error) {
			wallet, ok := ra.Record().(*domain.Wallet)
			if !ok {
				return false, nil
			}
			return wallet.GetCopayer(copayerID) != nil, nil
		},
	)

	var wallets []domain.Wallet
	if err := r.db.Store.Find(&wallets, query); err != nil {
		return "", err
	}
	if len(wallets) <= 0 {
		return "", domain.ErrNotAuthorized
	}
	return wallets[0].ID, nil
}

func (r walletRepositoryImpl) DeleteWallet(
	ctx context.Context, walletID string,
) error {
	if err := r.db.Store.Delete(walletID, domain.Wallet{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrWalletNotFound
		}
		return err
	}
	return nil
}
