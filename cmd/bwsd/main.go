package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/internal/config"
	"github.com/bitpay/bws-daemon/internal/core/application"
	"github.com/bitpay/bws-daemon/internal/core/ports"
	"github.com/bitpay/bws-daemon/internal/infrastructure/pubsub"
	dbbadger "github.com/bitpay/bws-daemon/internal/infrastructure/storage/db/badger"
	"github.com/bitpay/bws-daemon/pkg/explorer/insight"
)

type services struct {
	wallet     application.WalletService
	txProposal application.TxProposalService
}

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	repoManager, err := dbbadger.NewRepoManager(dbDir, nil)
	if err != nil {
		log.WithError(err).Fatal("error opening db")
	}
	defer repoManager.Close()

	explorerSvc := insight.NewService(
		config.GetString(config.ExplorerEndpointKey),
		time.Duration(config.GetInt(config.ExplorerRequestTimeoutKey))*time.Second,
	)
	broker := pubsub.NewBroker()
	defer broker.Close()

	cfg := config.GetServiceConfig()
	svc := services{
		wallet: application.NewWalletService(
			repoManager.WalletRepository(),
			repoManager.AddressRepository(),
			repoManager.TxProposalRepository(),
			repoManager.NotificationRepository(),
			repoManager.PreferencesRepository(),
			explorerSvc,
			broker,
			cfg,
		),
		txProposal: application.NewTxProposalService(
			repoManager.WalletRepository(),
			repoManager.AddressRepository(),
			repoManager.TxProposalRepository(),
			repoManager.NotificationRepository(),
			explorerSvc,
			broker,
			cfg,
		),
	}

	log.Debug("starting daemon")

	for name, level := range svc.wallet.GetFeeLevels(context.Background()) {
		log.Debugf("fee level %s: %d sat/kb", name, level.FeePerKb)
	}

	stop := make(chan struct{})
	go logNotifications(broker, stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	close(stop)

	log.Debug("exiting")
}

func logNotifications(broker ports.SecurePubSub, stop <-chan struct{}) {
	id, ch := broker.Subscribe(ports.AnyWallet)
	defer broker.Unsubscribe(id)

	for {
		select {
		case notification, ok := <-ch:
			if !ok {
				return
			}
			log.WithFields(log.Fields{
				"wallet": notification.WalletID,
				"type":   notification.Type,
			}).Info("notification")
		case <-stop:
			return
		}
	}
}
