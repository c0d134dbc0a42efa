package pubsub

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
)

const subscriptionBuffer = 32

type subscription struct {
	walletID string
	ch       chan *domain.Notification
}

type broker struct {
	lock          *sync.RWMutex
	subscriptions map[string]*subscription
	closed        bool
}

// NewBroker returns an in-process SecurePubSub implementation fanning
// notifications out to channel subscribers. A subscriber that stops
// draining its channel misses notifications instead of blocking the
// publisher.
func NewBroker() ports.SecurePubSub {
	return &broker{
		lock:          &sync.RWMutex{},
		subscriptions: make(map[string]*subscription),
	}
}

func (b *broker) Subscribe(walletID string) (string, <-chan *domain.Notification) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		walletID: walletID,
		ch:       make(chan *domain.Notification, subscriptionBuffer),
	}
	b.subscriptions[id] = sub
	return id, sub.ch
}

func (b *broker) Unsubscribe(id string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	sub, ok := b.subscriptions[id]
	if !ok {
		return
	}
	delete(b.subscriptions, id)
	close(sub.ch)
}

func (b *broker) Publish(notification *domain.Notification) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.closed {
		return
	}
	for id, sub := range b.subscriptions {
		if sub.walletID != ports.AnyWallet && sub.walletID != notification.WalletID {
			continue
		}
		select {
		case sub.ch <- notification:
		default:
			log.Debugf("subscriber %s is not draining, notification dropped", id)
		}
	}
}

func (b *broker) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscriptions {
		delete(b.subscriptions, id)
		close(sub.ch)
	}
}
