package domain

import "context"

// WalletRepository is the storage port for wallets and their copayers.
// UpdateWallet runs the update function inside a storage transaction so that
// concurrent updates of the same wallet (copayer joins, address counter
// increments) are serialized.
type WalletRepository interface {
	InsertWallet(ctx context.Context, wallet *Wallet) error
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	UpdateWallet(
		ctx context.Context,
		walletID string,
		updateFn func(w *Wallet) (*Wallet, error),
	) error
	// GetWalletIDForCopayer resolves the wallet a copayer belongs to, or
	// ErrNotAuthorized when the copayer is unknown.
	GetWalletIDForCopayer(ctx context.Context, copayerID string) (string, error)
	DeleteWallet(ctx context.Context, walletID string) error
}
