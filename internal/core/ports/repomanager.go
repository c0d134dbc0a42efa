package ports

import "github.com/bitpay/bws-daemon/internal/core/domain"

// RepoManager gives access to every repository of the storage layer and
// owns the lifecycle of the underlying store.
type RepoManager interface {
	WalletRepository() domain.WalletRepository
	AddressRepository() domain.AddressRepository
	TxProposalRepository() domain.TxProposalRepository
	NotificationRepository() domain.NotificationRepository
	PreferencesRepository() domain.PreferencesRepository
	Close()
}
