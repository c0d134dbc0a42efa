package application

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
)

// notifier persists and publishes the typed events produced by the wallet
// service. Notification failures are logged, never surfaced: they must not
// fail the operation that produced them.
type notifier struct {
	notificationRepo domain.NotificationRepository
	broker           ports.SecurePubSub
}

func (n *notifier) notify(ctx context.Context, notification *domain.Notification) {
	if err := n.notificationRepo.InsertNotification(ctx, notification); err != nil {
		log.WithError(err).Warnf(
			"failed to store %s notification for wallet %s",
			notification.Type, notification.WalletID,
		)
		return
	}
	if n.broker != nil {
		n.broker.Publish(notification)
	}
}
