package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type txProposalRepositoryImpl struct {
	db *DbManager
}

func NewTxProposalRepositoryImpl(db *DbManager) domain.TxProposalRepository {
	return txProposalRepositoryImpl{
		db: db,
	}
}

func (r txProposalRepositoryImpl) InsertTxProposal(
	ctx context.Context, txp *domain.TxProposal,
) error {
	if err := r.db.Store.Insert(txp.ID, txp); err != nil {
		if err != badgerhold.ErrKeyExists {
			return err
		}
	}
	return nil
}

func (r txProposalRepositoryImpl) GetTxProposal(
	ctx context.Context, walletID, txProposalID string,
) (*domain.TxProposal, error) {
	var txp domain.TxProposal
	if err := r.db.Store.Get(txProposalID, &txp); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTxNotFound
		}
		return nil, err
	}
	if txp.WalletID != walletID {
		return nil, domain.ErrTxNotFound
	}
	return &txp, nil
}

func (r txProposalRepositoryImpl) GetTxProposalsByStatus(
	ctx context.Context, walletID string, statuses []string,
) ([]*domain.TxProposal, error) {
	in := make([]interface{}, 0, len(statuses))
	for _, status := range statuses {
		in = append(in, status)
	}
	query := badgerhold.Where("WalletID").Eq(walletID).
		And("Status").In(in...).
		SortBy("ID")
	return r.findTxProposals(query)
}

func (r txProposalRepositoryImpl) GetRecentTxProposals(
	ctx context.Context, walletID, creatorID string, limit int,
) ([]*domain.TxProposal, error) {
	query := badgerhold.Where("WalletID").Eq(walletID).
		And("CreatorID").Eq(creatorID).
		SortBy("ID").Reverse().Limit(limit)
	return r.findTxProposals(query)
}

// UpdateTxProposal runs the update function inside a badger transaction so
// that concurrent state transitions on the same proposal conflict instead
// of overwriting each other. Conflicting transactions are retried: the
// loser re-reads the proposal and its transition either applies to the new
// state or fails through the entity's own rules.
func (r txProposalRepositoryImpl) UpdateTxProposal(
	ctx context.Context,
	walletID, txProposalID string,
	updateFn func(txp *domain.TxProposal) (*domain.TxProposal, error),
) error {
	return r.db.updateWithRetry(func(tx *badger.Txn) error {
		var txp domain.TxProposal
		if err := r.db.Store.TxGet(tx, txProposalID, &txp); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrTxNotFound
			}
			return err
		}
		if txp.WalletID != walletID {
			return domain.ErrTxNotFound
		}
		updated, err := updateFn(&txp)
		if err != nil {
			return err
		}
		return r.db.Store.TxUpdate(tx, txProposalID, *updated)
	})
}

func (r txProposalRepositoryImpl) RemoveTxProposal(
	ctx context.Context, walletID, txProposalID string,
) error {
	if _, err := r.GetTxProposal(ctx, walletID, txProposalID); err != nil {
		return err
	}
	return r.db.Store.Delete(txProposalID, domain.TxProposal{})
}

func (r txProposalRepositoryImpl) DeleteTxProposals(
	ctx context.Context, walletID string,
) error {
	query := badgerhold.Where("WalletID").Eq(walletID)
	return r.db.Store.DeleteMatching(domain.TxProposal{}, query)
}

func (r txProposalRepositoryImpl) findTxProposals(
	query *badgerhold.Query,
) ([]*domain.TxProposal, error) {
	var txps []domain.TxProposal
	if err := r.db.Store.Find(&txps, query); err != nil {
		return nil, err
	}
	list := make([]*domain.TxProposal, 0, len(txps))
	for i := range txps {
		list = append(list, &txps[i])
	}
	return list, nil
}
