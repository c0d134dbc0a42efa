package inmemory

import (
	"sync"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
)

type walletInmemoryStore struct {
	wallets map[string]*domain.Wallet
	locker  *sync.Mutex
}

type addressInmemoryStore struct {
	addresses map[string]*domain.Address
	locker    *sync.Mutex
}

type txProposalInmemoryStore struct {
	txProposals map[string]*domain.TxProposal
	locker      *sync.Mutex
}

type notificationInmemoryStore struct {
	notifications map[string]*domain.Notification
	preferences   map[string]*domain.Preferences
	locker        *sync.Mutex
}

// RepoManager is the in-memory implementation of the storage layer, meant
// for tests and throwaway deployments.
type RepoManager struct {
	walletRepository       domain.WalletRepository
	addressRepository      domain.AddressRepository
	txProposalRepository   domain.TxProposalRepository
	notificationRepository domain.NotificationRepository
	preferencesRepository  domain.PreferencesRepository
}

func NewRepoManager() ports.RepoManager {
	walletStore := &walletInmemoryStore{
		wallets: make(map[string]*domain.Wallet),
		locker:  &sync.Mutex{},
	}
	addressStore := &addressInmemoryStore{
		addresses: make(map[string]*domain.Address),
		locker:    &sync.Mutex{},
	}
	txProposalStore := &txProposalInmemoryStore{
		txProposals: make(map[string]*domain.TxProposal),
		locker:      &sync.Mutex{},
	}
	notificationStore := &notificationInmemoryStore{
		notifications: make(map[string]*domain.Notification),
		preferences:   make(map[string]*domain.Preferences),
		locker:        &sync.Mutex{},
	}

	return &RepoManager{
		walletRepository:       NewWalletRepositoryImpl(walletStore),
		addressRepository:      NewAddressRepositoryImpl(addressStore),
		txProposalRepository:   NewTxProposalRepositoryImpl(txProposalStore),
		notificationRepository: NewNotificationRepositoryImpl(notificationStore),
		preferencesRepository:  NewPreferencesRepositoryImpl(notificationStore),
	}
}

func (d *RepoManager) WalletRepository() domain.WalletRepository {
	return d.walletRepository
}

func (d *RepoManager) AddressRepository() domain.AddressRepository {
	return d.addressRepository
}

func (d *RepoManager) TxProposalRepository() domain.TxProposalRepository {
	return d.txProposalRepository
}

func (d *RepoManager) NotificationRepository() domain.NotificationRepository {
	return d.notificationRepository
}

func (d *RepoManager) PreferencesRepository() domain.PreferencesRepository {
	return d.preferencesRepository
}

func (d *RepoManager) Close() {}
