package dbbadger

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type addressRepositoryImpl struct {
	db *DbManager
}

func NewAddressRepositoryImpl(db *DbManager) domain.AddressRepository {
	return addressRepositoryImpl{
		db: db,
	}
}

func (r addressRepositoryImpl) InsertAddresses(
	ctx context.Context, addresses []*domain.Address,
) error {
	for _, address := range addresses {
		if err := r.db.Store.Insert(address.Address, address); err != nil {
			if err != badgerhold.ErrKeyExists {
				return err
			}
		}
	}
	return nil
}

func (r addressRepositoryImpl) GetAddresses(
	ctx context.Context, walletID string,
) ([]*domain.Address, error) {
	query := badgerhold.Where("WalletID").Eq(walletID)
	return r.findAddresses(query)
}

func (r addressRepositoryImpl) GetAddressesByChain(
	ctx context.Context, walletID string, isChange bool,
) ([]*domain.Address, error) {
	query := badgerhold.Where("WalletID").Eq(walletID).
		And("IsChange").Eq(isChange)
	return r.findAddresses(query)
}

func (r addressRepositoryImpl) GetAddress(
	ctx context.Context, walletID, address string,
) (*domain.Address, error) {
	var addr domain.Address
	if err := r.db.Store.Get(address, &addr); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	if addr.WalletID != walletID {
		return nil, domain.ErrNotAuthorized
	}
	return &addr, nil
}

func (r addressRepositoryImpl) MarkAddressesActive(
	ctx context.Context, walletID string, addresses []string, at int64,
) error {
	for _, address := range addresses {
		var addr domain.Address
		if err := r.db.Store.Get(address, &addr); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return err
		}
		if addr.WalletID != walletID {
			continue
		}
		addr.MarkActive(at)
		if err := r.db.Store.Update(address, addr); err != nil {
			return err
		}
	}
	return nil
}

func (r addressRepositoryImpl) DeleteAddresses(
	ctx context.Context, walletID string,
) error {
	query := badgerhold.Where("WalletID").Eq(walletID)
	return r.db.Store.DeleteMatching(domain.Address{}, query)
}

// findAddresses returns the matching addresses sorted by derivation index
// so that gap counting walks the chain in order.
func (r addressRepositoryImpl) findAddresses(
	query *badgerhold.Query,
) ([]*domain.Address, error) {
	var addresses []domain.Address
	if err := r.db.Store.Find(&addresses, query); err != nil {
		return nil, err
	}

	sort.Slice(addresses, func(i, j int) bool {
		return pathIndex(addresses[i].Path) < pathIndex(addresses[j].Path)
	})

	list := make([]*domain.Address, 0, len(addresses))
	for i := range addresses {
		list = append(list, &addresses[i])
	}
	return list, nil
}

func pathIndex(path string) int {
	steps := strings.Split(path, "/")
	if len(steps) <= 0 {
		return 0
	}
	index, _ := strconv.Atoi(steps[len(steps)-1])
	return index
}
