package inmemory

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type addressRepositoryImpl struct {
	store *addressInmemoryStore
}

// NewAddressRepositoryImpl returns a new inmemory AddressRepository
// implementation.
func NewAddressRepositoryImpl(store *addressInmemoryStore) domain.AddressRepository {
	return &addressRepositoryImpl{store}
}

func (r addressRepositoryImpl) InsertAddresses(
	_ context.Context, addresses []*domain.Address,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, address := range addresses {
		if _, ok := r.store.addresses[address.Address]; ok {
			continue
		}
		r.store.addresses[address.Address] = address
	}
	return nil
}

func (r addressRepositoryImpl) GetAddresses(
	_ context.Context, walletID string,
) ([]*domain.Address, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findAddresses(func(a *domain.Address) bool {
		return a.WalletID == walletID
	}), nil
}

func (r addressRepositoryImpl) GetAddressesByChain(
	_ context.Context, walletID string, isChange bool,
) ([]*domain.Address, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findAddresses(func(a *domain.Address) bool {
		return a.WalletID == walletID && a.IsChange == isChange
	}), nil
}

func (r addressRepositoryImpl) GetAddress(
	_ context.Context, walletID, address string,
) (*domain.Address, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	addr, ok := r.store.addresses[address]
	if !ok || addr.WalletID != walletID {
		return nil, domain.ErrWalletNotFound
	}
	return addr, nil
}

func (r addressRepositoryImpl) MarkAddressesActive(
	_ context.Context, walletID string, addresses []string, at int64,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, address := range addresses {
		addr, ok := r.store.addresses[address]
		if !ok || addr.WalletID != walletID {
			continue
		}
		addr.MarkActive(at)
	}
	return nil
}

func (r addressRepositoryImpl) DeleteAddresses(
	_ context.Context, walletID string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for key, addr := range r.store.addresses {
		if addr.WalletID == walletID {
			delete(r.store.addresses, key)
		}
	}
	return nil
}

func (r addressRepositoryImpl) findAddresses(
	match func(a *domain.Address) bool,
) []*domain.Address {
	list := make([]*domain.Address, 0)
	for _, addr := range r.store.addresses {
		if match(addr) {
			list = append(list, addr)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return pathIndex(list[i].Path) < pathIndex(list[j].Path)
	})
	return list
}

func pathIndex(path string) int {
	steps := strings.Split(path, "/")
	if len(steps) <= 0 {
		return 0
	}
	index, _ := strconv.Atoi(steps[len(steps)-1])
	return index
}
