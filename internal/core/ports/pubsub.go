package ports

import "github.com/bitpay/bws-daemon/internal/core/domain"

// AnyWallet subscribes a listener to the notifications of every wallet.
const AnyWallet = "*"

// SecurePubSub defines the methods of the notification broker the wallet
// service publishes its typed events to. The wire encoding used to reach
// external consumers is up to the implementation.
type SecurePubSub interface {
	// Subscribe registers a listener for the given wallet id and returns a
	// receive channel together with the subscription id.
	Subscribe(walletID string) (string, <-chan *domain.Notification)
	// Unsubscribe removes a listener by its subscription id.
	Unsubscribe(id string)
	// Publish delivers the notification to every listener of its wallet.
	Publish(notification *domain.Notification)
	// Close shuts the broker down, closing every listener channel.
	Close()
}
