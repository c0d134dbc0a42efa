package dbbadger

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type notificationRepositoryImpl struct {
	db *DbManager
}

func NewNotificationRepositoryImpl(db *DbManager) domain.NotificationRepository {
	return notificationRepositoryImpl{
		db: db,
	}
}

func (r notificationRepositoryImpl) InsertNotification(
	ctx context.Context, notification *domain.Notification,
) error {
	if err := r.db.NotificationStore.Insert(
		notification.ID, notification,
	); err != nil {
		if err != badgerhold.ErrKeyExists {
			return err
		}
	}
	return nil
}

func (r notificationRepositoryImpl) GetNotifications(
	ctx context.Context, walletID string, minTimestamp int64,
) ([]*domain.Notification, error) {
	query := badgerhold.Where("WalletID").Eq(walletID).
		And("CreatedOn").Ge(minTimestamp).
		SortBy("ID")

	var notifications []domain.Notification
	if err := r.db.NotificationStore.Find(&notifications, query); err != nil {
		return nil, err
	}
	list := make([]*domain.Notification, 0, len(notifications))
	for i := range notifications {
		list = append(list, &notifications[i])
	}
	return list, nil
}

func (r notificationRepositoryImpl) DeleteNotifications(
	ctx context.Context, walletID string,
) error {
	query := badgerhold.Where("WalletID").Eq(walletID)
	return r.db.NotificationStore.DeleteMatching(domain.Notification{}, query)
}

type preferencesRepositoryImpl struct {
	db *DbManager
}

func NewPreferencesRepositoryImpl(db *DbManager) domain.PreferencesRepository {
	return preferencesRepositoryImpl{
		db: db,
	}
}

func (r preferencesRepositoryImpl) UpsertPreferences(
	ctx context.Context, preferences *domain.Preferences,
) error {
	key := preferencesKey(preferences.WalletID, preferences.CopayerID)
	return r.db.Store.Upsert(key, preferences)
}

func (r preferencesRepositoryImpl) GetPreferences(
	ctx context.Context, walletID, copayerID string,
) (*domain.Preferences, error) {
	var preferences domain.Preferences
	key := preferencesKey(walletID, copayerID)
	if err := r.db.Store.Get(key, &preferences); err != nil {
		if err == badgerhold.ErrNotFound {
			return &domain.Preferences{
				WalletID:  walletID,
				CopayerID: copayerID,
			}, nil
		}
		return nil, err
	}
	return &preferences, nil
}

func preferencesKey(walletID, copayerID string) string {
	return fmt.Sprintf("%s:%s", walletID, copayerID)
}
