package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

type notificationRepositoryImpl struct {
	store *notificationInmemoryStore
}

// NewNotificationRepositoryImpl returns a new inmemory
// NotificationRepository implementation.
func NewNotificationRepositoryImpl(
	store *notificationInmemoryStore,
) domain.NotificationRepository {
	return &notificationRepositoryImpl{store}
}

func (r notificationRepositoryImpl) InsertNotification(
	_ context.Context, notification *domain.Notification,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.notifications[notification.ID]; ok {
		return nil
	}
	r.store.notifications[notification.ID] = notification
	return nil
}

func (r notificationRepositoryImpl) GetNotifications(
	_ context.Context, walletID string, minTimestamp int64,
) ([]*domain.Notification, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	list := make([]*domain.Notification, 0)
	for _, n := range r.store.notifications {
		if n.WalletID == walletID && n.CreatedOn >= minTimestamp {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r notificationRepositoryImpl) DeleteNotifications(
	_ context.Context, walletID string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for key, n := range r.store.notifications {
		if n.WalletID == walletID {
			delete(r.store.notifications, key)
		}
	}
	return nil
}

type preferencesRepositoryImpl struct {
	store *notificationInmemoryStore
}

// NewPreferencesRepositoryImpl returns a new inmemory PreferencesRepository
// implementation.
func NewPreferencesRepositoryImpl(
	store *notificationInmemoryStore,
) domain.PreferencesRepository {
	return &preferencesRepositoryImpl{store}
}

func (r preferencesRepositoryImpl) UpsertPreferences(
	_ context.Context, preferences *domain.Preferences,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	key := preferencesKey(preferences.WalletID, preferences.CopayerID)
	r.store.preferences[key] = preferences
	return nil
}

func (r preferencesRepositoryImpl) GetPreferences(
	_ context.Context, walletID, copayerID string,
) (*domain.Preferences, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	key := preferencesKey(walletID, copayerID)
	if prefs, ok := r.store.preferences[key]; ok {
		return prefs, nil
	}
	return &domain.Preferences{
		WalletID:  walletID,
		CopayerID: copayerID,
	}, nil
}

func preferencesKey(walletID, copayerID string) string {
	return fmt.Sprintf("%s:%s", walletID, copayerID)
}
