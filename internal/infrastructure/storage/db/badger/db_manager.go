package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
)

// DbManager holds all the badgerhold stores in a single data structure.
// Notifications live in a dedicated store so their write volume does not
// pollute the value log of the wallet data.
type DbManager struct {
	Store             *badgerhold.Store
	NotificationStore *badgerhold.Store

	walletRepository       domain.WalletRepository
	addressRepository      domain.AddressRepository
	txProposalRepository   domain.TxProposalRepository
	notificationRepository domain.NotificationRepository
	preferencesRepository  domain.PreferencesRepository
}

// NewRepoManager opens (or creates if not exists) the badger stores on disk
// under the given base data dir.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	mainDb, err := createDb(baseDbDir+"/main", logger)
	if err != nil {
		return nil, fmt.Errorf("opening main db: %w", err)
	}

	notificationDb, err := createDb(baseDbDir+"/notification", logger)
	if err != nil {
		return nil, fmt.Errorf("opening notification db: %w", err)
	}

	db := &DbManager{
		Store:             mainDb,
		NotificationStore: notificationDb,
	}
	db.walletRepository = NewWalletRepositoryImpl(db)
	db.addressRepository = NewAddressRepositoryImpl(db)
	db.txProposalRepository = NewTxProposalRepositoryImpl(db)
	db.notificationRepository = NewNotificationRepositoryImpl(db)
	db.preferencesRepository = NewPreferencesRepositoryImpl(db)
	return db, nil
}

func (d *DbManager) WalletRepository() domain.WalletRepository {
	return d.walletRepository
}

func (d *DbManager) AddressRepository() domain.AddressRepository {
	return d.addressRepository
}

func (d *DbManager) TxProposalRepository() domain.TxProposalRepository {
	return d.txProposalRepository
}

func (d *DbManager) NotificationRepository() domain.NotificationRepository {
	return d.notificationRepository
}

func (d *DbManager) PreferencesRepository() domain.PreferencesRepository {
	return d.preferencesRepository
}

func (d *DbManager) Close() {
	d.Store.Close()
	d.NotificationStore.Close()
}

// badger transactions are optimistic: concurrent writers touching the same
// key fail at commit instead of blocking.
const maxTxnRetries = 32

// updateWithRetry runs the function in a read-write transaction on the main
// store, retrying on commit conflicts so concurrent writers serialize
// instead of surfacing badger.ErrConflict to the caller.
func (d *DbManager) updateWithRetry(fn func(tx *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = d.Store.Badger().Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return err
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}
