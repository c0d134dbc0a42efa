package domain

import (
	"fmt"
	"time"

	"github.com/thanhpk/randstr"
)

// Notification is a typed event produced by the wallet service. Consumers
// filter by wallet id and a minimum creation time.
type Notification struct {
	ID        string
	WalletID  string
	CreatorID string
	Type      string
	Data      map[string]interface{}
	CreatedOn int64
}

// NewNotification returns a notification with a time-prefixed id so that
// notifications sort chronologically.
func NewNotification(
	notificationType, walletID, creatorID string,
	data map[string]interface{},
) *Notification {
	now := time.Now()
	return &Notification{
		ID:        fmt.Sprintf("%014d%s", now.UnixMilli(), randstr.Hex(4)),
		WalletID:  walletID,
		CreatorID: creatorID,
		Type:      notificationType,
		Data:      data,
		CreatedOn: now.Unix(),
	}
}

// Preferences holds the per-copayer delivery settings.
type Preferences struct {
	WalletID  string
	CopayerID string
	Email     string
	Language  string
	Unit      string
	UpdatedOn int64
}
