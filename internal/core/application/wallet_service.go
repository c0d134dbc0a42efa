package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
	"github.com/bitpay/bws-daemon/pkg/explorer"
)

// Credentials identifies the calling copayer and carries the signature over
// the canonical request message, verified against any of the copayer's
// registered request keys.
type Credentials struct {
	CopayerID string
	Message   string
	Signature string
}

// WalletService handles wallet lifecycle, address derivation, balances and
// scanning.
type WalletService interface {
	CreateWallet(ctx context.Context, opts domain.NewWalletOpts) (*domain.Wallet, error)
	JoinWallet(ctx context.Context, opts JoinWalletOpts) (*domain.Wallet, error)
	AddAccess(ctx context.Context, creds Credentials, newRequestPubKey string) error
	CreateAddress(ctx context.Context, creds Credentials) (*domain.Address, error)
	GetMainAddresses(ctx context.Context, creds Credentials) ([]*domain.Address, error)
	GetBalance(ctx context.Context, creds Credentials, twoStep bool) (*Balance, error)
	GetFeeLevels(ctx context.Context) map[string]FeeLevelInfo
	StartScan(ctx context.Context, creds Credentials, full bool) (*ScanResult, error)
	GetNotifications(
		ctx context.Context, creds Credentials, minTimestamp int64,
	) ([]*domain.Notification, error)
	SavePreferences(ctx context.Context, creds Credentials, prefs domain.Preferences) error
	GetPreferences(ctx context.Context, creds Credentials) (*domain.Preferences, error)
	RemoveWallet(ctx context.Context, creds Credentials) error
}

type walletService struct {
	*authorizer

	walletRepo      domain.WalletRepository
	addressRepo     domain.AddressRepository
	txProposalRepo  domain.TxProposalRepository
	preferencesRepo domain.PreferencesRepository
	explorerSvc     explorer.Service
	feeEstimator    *FeeEstimator
	deriver         *addressDeriver
	utxos           *utxoProvider
	notifier        *notifier
	cfg             Config

	balanceMtx     sync.Mutex
	lastKnownTotal map[string]uint64
	scanning       sync.Map
}

// NewWalletService ...
func NewWalletService(
	walletRepo domain.WalletRepository,
	addressRepo domain.AddressRepository,
	txProposalRepo domain.TxProposalRepository,
	notificationRepo domain.NotificationRepository,
	preferencesRepo domain.PreferencesRepository,
	explorerSvc explorer.Service,
	broker ports.SecurePubSub,
	cfg Config,
) WalletService {
	return &walletService{
		authorizer:      &authorizer{walletRepo},
		walletRepo:      walletRepo,
		addressRepo:     addressRepo,
		txProposalRepo:  txProposalRepo,
		preferencesRepo: preferencesRepo,
		explorerSvc:     explorerSvc,
		feeEstimator:    NewFeeEstimator(explorerSvc, cfg),
		deriver: &addressDeriver{
			walletRepo:  walletRepo,
			addressRepo: addressRepo,
		},
		utxos: &utxoProvider{
			explorerSvc:    explorerSvc,
			addressRepo:    addressRepo,
			txProposalRepo: txProposalRepo,
			cfg:            cfg,
		},
		notifier: &notifier{
			notificationRepo: notificationRepo,
			broker:           broker,
		},
		cfg:            cfg,
		lastKnownTotal: make(map[string]uint64),
	}
}

func (s *walletService) CreateWallet(
	ctx context.Context, opts domain.NewWalletOpts,
) (*domain.Wallet, error) {
	w, err := domain.NewWallet(opts)
	if err != nil {
		return nil, err
	}
	if err := s.walletRepo.InsertWallet(ctx, w); err != nil {
		return nil, err
	}
	log.Debugf("created wallet %s (%d-of-%d, %s)", w.ID, w.M, w.N, w.Network)
	return w, nil
}

// JoinWalletOpts is the struct given to the JoinWallet method.
type JoinWalletOpts struct {
	WalletID      string
	CopayerName   string
	XPubKey       string
	RequestPubKey string
}

func (s *walletService) JoinWallet(
	ctx context.Context, opts JoinWalletOpts,
) (*domain.Wallet, error) {
	copayerID := domain.CopayerIDFromXPub(opts.XPubKey)
	if walletID, err := s.walletRepo.GetWalletIDForCopayer(
		ctx, copayerID,
	); err == nil {
		if walletID == opts.WalletID {
			return nil, domain.ErrCopayerInWallet
		}
		return nil, domain.ErrCopayerRegistered
	}

	var joined *domain.Wallet
	if err := s.walletRepo.UpdateWallet(
		ctx, opts.WalletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			copayer := domain.NewCopayer(
				opts.CopayerName, opts.XPubKey, opts.RequestPubKey,
			)
			if err := w.AddCopayer(copayer); err != nil {
				return nil, err
			}
			joined = w
			return w, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.notify(ctx, domain.NewNotification(
		domain.NotificationNewCopayer, joined.ID, copayerID,
		map[string]interface{}{"copayerName": opts.CopayerName},
	))
	if joined.IsComplete() {
		s.notifier.notify(ctx, domain.NewNotification(
			domain.NotificationWalletComplete, joined.ID, "", nil,
		))
	}
	return joined, nil
}

func (s *walletService) AddAccess(
	ctx context.Context, creds Credentials, newRequestPubKey string,
) error {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return err
	}
	return s.walletRepo.UpdateWallet(
		ctx, w.ID, func(current *domain.Wallet) (*domain.Wallet, error) {
			c := current.GetCopayer(copayer.ID)
			if c == nil {
				return nil, domain.ErrNotAuthorized
			}
			c.AddRequestPubKey(newRequestPubKey)
			return current, nil
		},
	)
}

func (s *walletService) CreateAddress(
	ctx context.Context, creds Credentials,
) (*domain.Address, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !w.IsComplete() {
		return nil, domain.ErrWalletNotComplete
	}

	mainAddresses, err := s.addressRepo.GetAddressesByChain(ctx, w.ID, false)
	if err != nil {
		return nil, err
	}
	if w.SingleAddress && len(mainAddresses) > 0 {
		return mainAddresses[0], nil
	}
	if trailingInactive(mainAddresses) >= s.cfg.MaxMainAddressGap {
		return nil, domain.ErrMainAddressGapReached
	}

	address, err := s.deriver.deriveNewAddress(ctx, w, false)
	if err != nil {
		return nil, err
	}
	s.notifier.notify(ctx, domain.NewNotification(
		domain.NotificationNewAddress, w.ID, creds.CopayerID,
		map[string]interface{}{"address": address.Address, "path": address.Path},
	))
	return address, nil
}

func (s *walletService) GetMainAddresses(
	ctx context.Context, creds Credentials,
) ([]*domain.Address, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.addressRepo.GetAddressesByChain(ctx, w.ID, false)
}

func (s *walletService) GetBalance(
	ctx context.Context, creds Credentials, twoStep bool,
) (*Balance, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !w.IsComplete() {
		return nil, domain.ErrWalletNotComplete
	}

	addresses, err := s.addressRepo.GetAddresses(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	if !twoStep {
		utxos, err := s.utxos.getUtxosForAddresses(ctx, w, addresses)
		if err != nil {
			return nil, err
		}
		balance := balanceFromUtxos(utxos)
		s.storeLastKnownTotal(w.ID, balance.Total.Total)
		return balance, nil
	}

	fresh, stale := partitionByRecency(addresses, s.cfg.TwoStepBalanceThreshold)
	utxos, err := s.utxos.getUtxosForAddresses(ctx, w, fresh)
	if err != nil {
		return nil, err
	}
	balance := balanceFromUtxos(utxos)

	if len(stale) > 0 {
		go s.refreshBalance(w, creds.CopayerID)
	}
	return balance, nil
}

// refreshBalance recomputes the full balance in the background and emits a
// BalanceUpdated notification only when the total differs from the last
// known value, so that wallets whose stale addresses never held funds do
// not spam their clients.
func (s *walletService) refreshBalance(w *domain.Wallet, copayerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	utxos, err := s.utxos.getWalletUtxos(ctx, w)
	if err != nil {
		log.WithError(err).Warnf("balance refresh failed for wallet %s", w.ID)
		return
	}
	balance := balanceFromUtxos(utxos)

	s.balanceMtx.Lock()
	last, seen := s.lastKnownTotal[w.ID]
	s.lastKnownTotal[w.ID] = balance.Total.Total
	s.balanceMtx.Unlock()

	if seen && last == balance.Total.Total {
		return
	}
	s.notifier.notify(ctx, domain.NewNotification(
		domain.NotificationBalanceUpdated, w.ID, copayerID,
		map[string]interface{}{"totalAmount": balance.Total.Total},
	))
}

func (s *walletService) storeLastKnownTotal(walletID string, total uint64) {
	s.balanceMtx.Lock()
	s.lastKnownTotal[walletID] = total
	s.balanceMtx.Unlock()
}

func (s *walletService) GetFeeLevels(ctx context.Context) map[string]FeeLevelInfo {
	return s.feeEstimator.GetFeeLevels(ctx)
}

func (s *walletService) StartScan(
	ctx context.Context, creds Credentials, full bool,
) (*ScanResult, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !w.IsComplete() {
		return nil, domain.ErrWalletNotComplete
	}
	if _, running := s.scanning.LoadOrStore(w.ID, true); running {
		return nil, ErrScanInProgress
	}
	defer s.scanning.Delete(w.ID)

	gap := s.cfg.MaxMainAddressGap
	if full {
		gap = s.cfg.ScanAddressGap
	}

	result := &ScanResult{Status: domain.ScanStatusRunning}
	var scanErr error
	for _, isChange := range []bool{false, true} {
		count, hadActivity, err := s.scanChain(ctx, w, isChange, gap)
		if isChange {
			result.NewChangeAddresses += count
		} else {
			result.NewMainAddresses = count
		}
		if err != nil {
			scanErr = err
			break
		}
		// an active main chain means the wallet is in use: seed the next
		// branch with its first address so both chains exist afterwards
		if !isChange && hadActivity {
			seeded, err := s.seedBranchHead(ctx, w, true)
			if err != nil {
				scanErr = err
				break
			}
			if seeded {
				result.NewChangeAddresses++
			}
		}
	}

	result.Status = domain.ScanStatusSuccess
	if scanErr != nil {
		result.Status = domain.ScanStatusError
	}
	if err := s.walletRepo.UpdateWallet(
		ctx, w.ID, func(current *domain.Wallet) (*domain.Wallet, error) {
			current.ScanStatus = result.Status
			return current, nil
		},
	); err != nil {
		log.WithError(err).Warnf("failed to store scan status for wallet %s", w.ID)
	}

	s.notifier.notify(ctx, domain.NewNotification(
		domain.NotificationScanFinished, w.ID, creds.CopayerID,
		map[string]interface{}{"result": result.Status},
	))
	if scanErr != nil {
		return result, scanErr
	}
	return result, nil
}

// scanChain extends one derivation chain until gap consecutive addresses
// show no history. Activity-confirmed addresses are persisted as the scan
// progresses: an explorer error mid-scan aborts without rewinding committed
// progress.
func (s *walletService) scanChain(
	ctx context.Context, w *domain.Wallet, isChange bool, gap int,
) (int, bool, error) {
	existing, err := s.addressRepo.GetAddressesByChain(ctx, w.ID, isChange)
	if err != nil {
		return 0, false, err
	}
	byPath := make(map[string]*domain.Address, len(existing))
	for _, a := range existing {
		byPath[a.Path] = a
	}

	am := domain.NewAddressManager(
		w.DerivationStrategy, w.AddressManager.CopayerIndex,
	)

	newAddresses := 0
	inactiveStreak := 0
	lastActiveIndex := -1
	index := -1
	for inactiveStreak < gap {
		index++
		path := am.GetNewAddressPath(isChange)

		addr, known := byPath[path]
		if !known {
			derived, err := s.deriver.deriveAt(w, path, isChange)
			if err != nil {
				return newAddresses, lastActiveIndex >= 0, err
			}
			addr = derived
		}

		active, err := s.explorerSvc.GetAddressActivity(
			ctx, []string{addr.Address},
		)
		if err != nil {
			return newAddresses, lastActiveIndex >= 0, err
		}
		if !active {
			inactiveStreak++
			continue
		}

		inactiveStreak = 0
		lastActiveIndex = index
		if !known {
			if err := s.addressRepo.InsertAddresses(
				ctx, []*domain.Address{addr},
			); err != nil {
				return newAddresses, true, err
			}
			byPath[path] = addr
			newAddresses++
		}
		if err := s.addressRepo.MarkAddressesActive(
			ctx, w.ID, []string{addr.Address}, time.Now().Unix(),
		); err != nil {
			return newAddresses, true, err
		}
	}

	// persist the inactive addresses below the last active index so the
	// chain has no holes, and advance the wallet counter past it
	if lastActiveIndex >= 0 {
		if err := s.fillChainHoles(
			ctx, w, isChange, lastActiveIndex, byPath, &newAddresses,
		); err != nil {
			return newAddresses, true, err
		}
		if err := s.advanceCounter(
			ctx, w.ID, isChange, uint32(lastActiveIndex+1),
		); err != nil {
			return newAddresses, true, err
		}
	}
	return newAddresses, lastActiveIndex >= 0, nil
}

// seedBranchHead persists index 0 of the given chain when the chain holds no
// addresses yet.
func (s *walletService) seedBranchHead(
	ctx context.Context, w *domain.Wallet, isChange bool,
) (bool, error) {
	existing, err := s.addressRepo.GetAddressesByChain(ctx, w.ID, isChange)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	am := domain.NewAddressManager(
		w.DerivationStrategy, w.AddressManager.CopayerIndex,
	)
	addr, err := s.deriver.deriveAt(w, am.GetNewAddressPath(isChange), isChange)
	if err != nil {
		return false, err
	}
	if err := s.addressRepo.InsertAddresses(
		ctx, []*domain.Address{addr},
	); err != nil {
		return false, err
	}
	return true, nil
}

func (s *walletService) fillChainHoles(
	ctx context.Context,
	w *domain.Wallet,
	isChange bool,
	lastActiveIndex int,
	byPath map[string]*domain.Address,
	newAddresses *int,
) error {
	am := domain.NewAddressManager(
		w.DerivationStrategy, w.AddressManager.CopayerIndex,
	)
	g, gctx := errgroup.WithContext(ctx)
	var mtx sync.Mutex
	for i := 0; i <= lastActiveIndex; i++ {
		path := am.GetNewAddressPath(isChange)
		if _, known := byPath[path]; known {
			continue
		}
		p := path
		g.Go(func() error {
			derived, err := s.deriver.deriveAt(w, p, isChange)
			if err != nil {
				return err
			}
			if err := s.addressRepo.InsertAddresses(
				gctx, []*domain.Address{derived},
			); err != nil {
				return err
			}
			mtx.Lock()
			*newAddresses++
			mtx.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (s *walletService) advanceCounter(
	ctx context.Context, walletID string, isChange bool, next uint32,
) error {
	return s.walletRepo.UpdateWallet(
		ctx, walletID, func(current *domain.Wallet) (*domain.Wallet, error) {
			am := current.AddressManager
			if isChange {
				if am.ChangeAddressIndex < next {
					am.ChangeAddressIndex = next
				}
			} else if am.ReceiveAddressIndex < next {
				am.ReceiveAddressIndex = next
			}
			return current, nil
		},
	)
}

func (s *walletService) GetNotifications(
	ctx context.Context, creds Credentials, minTimestamp int64,
) ([]*domain.Notification, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	oldest := time.Now().Add(-s.cfg.MaxNotificationAge).Unix()
	if minTimestamp < oldest {
		return nil, domain.ErrHistoryLimitExceeded
	}
	return s.notifier.notificationRepo.GetNotifications(ctx, w.ID, minTimestamp)
}

func (s *walletService) SavePreferences(
	ctx context.Context, creds Credentials, prefs domain.Preferences,
) error {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return err
	}
	prefs.WalletID = w.ID
	prefs.CopayerID = copayer.ID
	prefs.UpdatedOn = time.Now().Unix()
	return s.preferencesRepo.UpsertPreferences(ctx, &prefs)
}

func (s *walletService) GetPreferences(
	ctx context.Context, creds Credentials,
) (*domain.Preferences, error) {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.preferencesRepo.GetPreferences(ctx, w.ID, copayer.ID)
}

// RemoveWallet deletes the wallet and everything it owns. Each collection
// delete is idempotent so a partial failure is safely retryable.
func (s *walletService) RemoveWallet(ctx context.Context, creds Credentials) error {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return err
	}
	if err := s.txProposalRepo.DeleteTxProposals(ctx, w.ID); err != nil {
		return err
	}
	if err := s.addressRepo.DeleteAddresses(ctx, w.ID); err != nil {
		return err
	}
	if err := s.notifier.notificationRepo.DeleteNotifications(ctx, w.ID); err != nil {
		return err
	}
	return s.walletRepo.DeleteWallet(ctx, w.ID)
}

// trailingInactive counts the consecutive addresses without activity at the
// tail of the chain.
func trailingInactive(addresses []*domain.Address) int {
	count := 0
	for i := len(addresses) - 1; i >= 0; i-- {
		if addresses[i].HasActivity {
			break
		}
		count++
	}
	return count
}

func partitionByRecency(
	addresses []*domain.Address, threshold time.Duration,
) (fresh, stale []*domain.Address) {
	cutoff := time.Now().Add(-threshold).Unix()
	for _, a := range addresses {
		if a.CreatedOn >= cutoff || a.LastUsedOn >= cutoff {
			fresh = append(fresh, a)
			continue
		}
		stale = append(stale, a)
	}
	return fresh, stale
}
