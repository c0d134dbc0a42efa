package application

import (
	"context"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

// addressDeriver reserves derivation paths and persists the resulting
// addresses. Path reservation runs inside the wallet repository's update
// transaction so that two concurrent derivations never receive the same
// index, across service instances too.
type addressDeriver struct {
	walletRepo  domain.WalletRepository
	addressRepo domain.AddressRepository
}

func (d *addressDeriver) deriveNewAddress(
	ctx context.Context, w *domain.Wallet, isChange bool,
) (*domain.Address, error) {
	if !w.IsComplete() {
		return nil, domain.ErrWalletNotComplete
	}

	var path string
	if err := d.walletRepo.UpdateWallet(
		ctx, w.ID, func(current *domain.Wallet) (*domain.Wallet, error) {
			path = current.AddressManager.GetNewAddressPath(isChange)
			// keep the in-memory copy aligned with the persisted counters
			w.AddressManager = current.AddressManager
			return current, nil
		},
	); err != nil {
		return nil, err
	}

	address, err := d.deriveAt(w, path, isChange)
	if err != nil {
		return nil, err
	}
	if err := d.addressRepo.InsertAddresses(
		ctx, []*domain.Address{address},
	); err != nil {
		return nil, err
	}
	return address, nil
}

// deriveAt derives the wallet address at the given path without touching
// the counters or the store.
func (d *addressDeriver) deriveAt(
	w *domain.Wallet, path string, isChange bool,
) (*domain.Address, error) {
	derived, err := wallet.DeriveAddress(wallet.DeriveAddressOpts{
		PubKeyRing:         w.PubKeyRing,
		Path:               path,
		RequiredSignatures: w.M,
		Network:            w.Network,
		ScriptType:         w.AddressType,
	})
	if err != nil {
		return nil, err
	}
	return domain.NewAddress(
		w.ID, derived.Address, derived.Path, derived.PublicKeys,
		isChange, w.AddressType, w.Network,
	), nil
}
