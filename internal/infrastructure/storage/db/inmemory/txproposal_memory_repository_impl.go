package inmemory

import (
	"context"
	"sort"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type txProposalRepositoryImpl struct {
	store *txProposalInmemoryStore
}

// NewTxProposalRepositoryImpl returns a new inmemory TxProposalRepository
// implementation.
func NewTxProposalRepositoryImpl(
	store *txProposalInmemoryStore,
) domain.TxProposalRepository {
	return &txProposalRepositoryImpl{store}
}

func (r txProposalRepositoryImpl) InsertTxProposal(
	_ context.Context, txp *domain.TxProposal,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.txProposals[txp.ID]; ok {
		return nil
	}
	r.store.txProposals[txp.ID] = txp
	return nil
}

func (r txProposalRepositoryImpl) GetTxProposal(
	_ context.Context, walletID, txProposalID string,
) (*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getTxProposal(walletID, txProposalID)
}

func (r txProposalRepositoryImpl) GetTxProposalsByStatus(
	_ context.Context, walletID string, statuses []string,
) ([]*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	wanted := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	list := make([]*domain.TxProposal, 0)
	for _, txp := range r.store.txProposals {
		if txp.WalletID == walletID && wanted[txp.Status] {
			list = append(list, txp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r txProposalRepositoryImpl) GetRecentTxProposals(
	_ context.Context, walletID, creatorID string, limit int,
) ([]*domain.TxProposal, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	list := make([]*domain.TxProposal, 0)
	for _, txp := range r.store.txProposals {
		if txp.WalletID == walletID && txp.CreatorID == creatorID {
			list = append(list, txp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r txProposalRepositoryImpl) UpdateTxProposal(
	_ context.Context,
	walletID, txProposalID string,
	updateFn func(txp *domain.TxProposal) (*domain.TxProposal, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	txp, err := r.getTxProposal(walletID, txProposalID)
	if err != nil {
		return err
	}
	updated, err := updateFn(txp)
	if err != nil {
		return err
	}
	r.store.txProposals[txProposalID] = updated
	return nil
}

func (r txProposalRepositoryImpl) RemoveTxProposal(
	_ context.Context, walletID, txProposalID string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, err := r.getTxProposal(walletID, txProposalID); err != nil {
		return err
	}
	delete(r.store.txProposals, txProposalID)
	return nil
}

func (r txProposalRepositoryImpl) DeleteTxProposals(
	_ context.Context, walletID string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for key, txp := range r.store.txProposals {
		if txp.WalletID == walletID {
			delete(r.store.txProposals, key)
		}
	}
	return nil
}

func (r txProposalRepositoryImpl) getTxProposal(
	walletID, txProposalID string,
) (*domain.TxProposal, error) {
	txp, ok := r.store.txProposals[txProposalID]
	if !ok || txp.WalletID != walletID {
		return nil, domain.ErrTxNotFound
	}
	return txp, nil
}
