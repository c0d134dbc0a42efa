package domain

import "context"

// AddressRepository is the storage port for derived addresses. Inserts are
// idempotent on the address string.
type AddressRepository interface {
	InsertAddresses(ctx context.Context, addresses []*Address) error
	GetAddresses(ctx context.Context, walletID string) ([]*Address, error)
	GetAddressesByChain(
		ctx context.Context, walletID string, isChange bool,
	) ([]*Address, error)
	GetAddress(
		ctx context.Context, walletID, address string,
	) (*Address, error)
	MarkAddressesActive(
		ctx context.Context, walletID string, addresses []string, at int64,
	) error
	DeleteAddresses(ctx context.Context, walletID string) error
}
