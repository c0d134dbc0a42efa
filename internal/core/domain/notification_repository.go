package domain

import "context"

// NotificationRepository is the storage port for notifications. Inserts are
// idempotent on the notification id for safe replay.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, notification *Notification) error
	GetNotifications(
		ctx context.Context, walletID string, minTimestamp int64,
	) ([]*Notification, error)
	DeleteNotifications(ctx context.Context, walletID string) error
}

// PreferencesRepository is the storage port for per-copayer preferences.
type PreferencesRepository interface {
	UpsertPreferences(ctx context.Context, preferences *Preferences) error
	GetPreferences(
		ctx context.Context, walletID, copayerID string,
	) (*Preferences, error)
}
