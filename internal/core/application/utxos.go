package application

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/explorer"
)

// utxoLockingStatuses are the proposal statuses whose inputs count as
// locked. Temporary proposals hold only a tentative reservation.
var utxoLockingStatuses = []string{
	domain.TxProposalStatusPending,
	domain.TxProposalStatusAccepted,
}

type utxoProvider struct {
	explorerSvc    explorer.Service
	addressRepo    domain.AddressRepository
	txProposalRepo domain.TxProposalRepository
	cfg            Config
}

// getWalletUtxos returns the wallet's unspent outputs enriched with their
// derivation info, the locked flag computed against the currently open
// proposals and the ancestor-safety classification. Locked is never stored:
// it is recomputed from the open proposals on every call.
func (p *utxoProvider) getWalletUtxos(
	ctx context.Context, wallet *domain.Wallet,
) ([]*Utxo, error) {
	addresses, err := p.addressRepo.GetAddresses(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	return p.getUtxosForAddresses(ctx, wallet, addresses)
}

// getUtxosForAddresses is the subset variant used by the two-step balance
// flow.
func (p *utxoProvider) getUtxosForAddresses(
	ctx context.Context, wallet *domain.Wallet, addresses []*domain.Address,
) ([]*Utxo, error) {
	if len(addresses) <= 0 {
		return []*Utxo{}, nil
	}

	addressByValue := make(map[string]*domain.Address, len(addresses))
	addressList := make([]string, 0, len(addresses))
	for _, a := range addresses {
		addressByValue[a.Address] = a
		addressList = append(addressList, a.Address)
	}

	rawUtxos, err := p.explorerSvc.GetUtxos(ctx, addressList)
	if err != nil {
		return nil, err
	}

	lockedKeys, err := p.lockedUtxoKeys(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	walletTxIDs, err := p.walletOwnedTxIDs(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	utxos := make([]*Utxo, 0, len(rawUtxos))
	for _, raw := range rawUtxos {
		addr, ok := addressByValue[raw.Address]
		if !ok {
			continue
		}
		u := &Utxo{
			TxID:          raw.TxID,
			Vout:          raw.Vout,
			Address:       raw.Address,
			ScriptPubKey:  raw.ScriptPubKey,
			Satoshis:      raw.Satoshis,
			Confirmations: raw.Confirmations,
			Path:          addr.Path,
			PublicKeys:    addr.PublicKeys,
			IsChange:      addr.IsChange,
		}
		u.Locked = lockedKeys[u.Key()]
		u.Safe = p.isSafe(ctx, u, walletTxIDs)
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// lockedUtxoKeys joins the input sets of every open proposal of the wallet.
func (p *utxoProvider) lockedUtxoKeys(
	ctx context.Context, walletID string,
) (map[string]bool, error) {
	open, err := p.txProposalRepo.GetTxProposalsByStatus(
		ctx, walletID, utxoLockingStatuses,
	)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool)
	for _, txp := range open {
		for _, in := range txp.Inputs {
			keys[in.Key()] = true
		}
	}
	return keys, nil
}

func (p *utxoProvider) walletOwnedTxIDs(
	ctx context.Context, walletID string,
) (map[string]bool, error) {
	broadcasted, err := p.txProposalRepo.GetTxProposalsByStatus(
		ctx, walletID, []string{domain.TxProposalStatusBroadcasted},
	)
	if err != nil {
		return nil, err
	}
	txids := make(map[string]bool, len(broadcasted))
	for _, txp := range broadcasted {
		if len(txp.TxID) > 0 {
			txids[txp.TxID] = true
		}
	}
	return txids, nil
}

// isSafe classifies a utxo by walking its ancestor chain: confirmed utxos
// are safe, unconfirmed ones are safe only if every unconfirmed ancestor up
// to the depth cap is owned by the wallet itself or confirmed meanwhile.
// Explorer errors mid-walk classify the utxo as unsafe rather than failing
// the whole read.
func (p *utxoProvider) isSafe(
	ctx context.Context, u *Utxo, walletTxIDs map[string]bool,
) bool {
	if u.Confirmations > 0 {
		return true
	}
	return p.ancestorsSafe(ctx, u.TxID, walletTxIDs, p.cfg.UnsafeAncestorDepth)
}

func (p *utxoProvider) ancestorsSafe(
	ctx context.Context, txid string, walletTxIDs map[string]bool, depth int,
) bool {
	if walletTxIDs[txid] {
		return true
	}
	if depth <= 0 {
		return false
	}

	tx, err := p.explorerSvc.GetTransaction(ctx, txid)
	if err != nil {
		log.WithError(err).Debugf("ancestor lookup failed for tx %s", txid)
		return false
	}
	if tx == nil {
		return false
	}
	if tx.Confirmations > 0 {
		return true
	}

	for _, parent := range tx.InputTxIDs {
		if !p.ancestorsSafe(ctx, parent, walletTxIDs, depth-1) {
			return false
		}
	}
	return true
}

// balanceFromUtxos folds a utxo set into the tiered wallet balance.
func balanceFromUtxos(utxos []*Utxo) *Balance {
	balance := &Balance{}
	add := func(tier *BalanceTier, u *Utxo) {
		tier.Total += u.Satoshis
		if u.Safe {
			tier.Safe += u.Satoshis
		}
	}
	for _, u := range utxos {
		add(&balance.Total, u)
		if u.IsConfirmed() {
			add(&balance.Confirmed, u)
		}
		if u.Locked {
			add(&balance.Locked, u)
		} else {
			add(&balance.Available, u)
		}
	}
	return balance
}
