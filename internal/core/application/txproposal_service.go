package application

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
	"github.com/bitpay/bws-daemon/pkg/explorer"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

// TxProposalService handles the spend workflow: proposal creation and
// publication, the signature quorum and the final broadcast.
type TxProposalService interface {
	CreateTx(ctx context.Context, creds Credentials, opts CreateTxOpts) (*domain.TxProposal, error)
	PublishTx(
		ctx context.Context, creds Credentials, txProposalID, proposalSignature string,
	) (*domain.TxProposal, error)
	SignTx(
		ctx context.Context, creds Credentials, txProposalID string, signatures []string,
	) (*domain.TxProposal, error)
	RejectTx(
		ctx context.Context, creds Credentials, txProposalID, comment string,
	) (*domain.TxProposal, error)
	BroadcastTx(
		ctx context.Context, creds Credentials, txProposalID string,
	) (*domain.TxProposal, error)
	RemoveTx(ctx context.Context, creds Credentials, txProposalID string) error
	GetTx(ctx context.Context, creds Credentials, txProposalID string) (*domain.TxProposal, error)
	GetPendingTxs(ctx context.Context, creds Credentials) ([]*domain.TxProposal, error)
}

type txProposalService struct {
	*authorizer

	walletRepo     domain.WalletRepository
	txProposalRepo domain.TxProposalRepository
	explorerSvc    explorer.Service
	feeEstimator   *FeeEstimator
	coinSelector   *CoinSelector
	deriver        *addressDeriver
	utxos          *utxoProvider
	notifier       *notifier
	cfg            Config
}

// NewTxProposalService ...
func NewTxProposalService(
	walletRepo domain.WalletRepository,
	addressRepo domain.AddressRepository,
	txProposalRepo domain.TxProposalRepository,
	notificationRepo domain.NotificationRepository,
	explorerSvc explorer.Service,
	broker ports.SecurePubSub,
	cfg Config,
) TxProposalService {
	return &txProposalService{
		authorizer:     &authorizer{walletRepo},
		walletRepo:     walletRepo,
		txProposalRepo: txProposalRepo,
		explorerSvc:    explorerSvc,
		feeEstimator:   NewFeeEstimator(explorerSvc, cfg),
		coinSelector:   NewCoinSelector(cfg),
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
		cfg: cfg,
	}
}

// CreateTxOpts is the struct given to the CreateTx method. Fee and FeePerKb
// are mutually exclusive; when neither is set the rate is resolved from
// FeeLevel, defaulting to normal. DryRun leaves the proposal in temporary
// status so the creator can inspect inputs and fee before publishing.
type CreateTxOpts struct {
	Type               string
	Outputs            []domain.TxProposalOutput
	Fee                uint64
	FeePerKb           uint64
	FeeLevel           string
	Message            string
	ProposalSignature  string
	ExcludeUnconfirmed bool
	ExcludedUtxos      []string
	DryRun             bool
}

func (s *txProposalService) CreateTx(
	ctx context.Context, creds Credentials, opts CreateTxOpts,
) (*domain.TxProposal, error) {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !w.IsComplete() {
		return nil, domain.ErrWalletNotComplete
	}

	for _, out := range opts.Outputs {
		if len(out.ToAddress) > 0 {
			if err := wallet.ValidateAddress(out.ToAddress, w.Network); err != nil {
				return nil, domain.ErrIncorrectAddressNetwork
			}
		}
		if out.Amount < s.cfg.DustThreshold {
			return nil, domain.ErrDustAmount
		}
	}

	if err := s.checkCreationBackoff(ctx, w.ID, copayer.ID); err != nil {
		return nil, err
	}

	feePerKb, err := s.resolveFeeRate(ctx, opts)
	if err != nil {
		return nil, err
	}

	txp, err := domain.NewTxProposal(domain.NewTxProposalOpts{
		Wallet:            w,
		CreatorID:         copayer.ID,
		Type:              opts.Type,
		Outputs:           opts.Outputs,
		FeePerKb:          feePerKb,
		Message:           opts.Message,
		ProposalSignature: opts.ProposalSignature,
		Temporary:         opts.DryRun,
	})
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		// a proposal published in one step carries the creator's signature
		// over the outputs and message. The raw tx cannot be signed yet: it
		// depends on the inputs selected below
		if !wallet.VerifyMessageAgainstKeys(
			txp.SignaturePayload(), opts.ProposalSignature, copayer.RequestPubKeys,
		) {
			return nil, domain.ErrNotAuthorized
		}
	}

	selection, err := s.selectInputs(ctx, w, txp, opts)
	if err != nil {
		return nil, err
	}
	txp.Inputs = inputSnapshots(selection.Inputs)
	txp.Fee = selection.Fee

	if selection.ChangeAmount > 0 {
		changeAddr, err := s.changeAddress(ctx, w)
		if err != nil {
			return nil, err
		}
		txp.ChangeAddress = changeAddr
	}

	if err := s.txProposalRepo.InsertTxProposal(ctx, txp); err != nil {
		return nil, err
	}
	if txp.IsPending() {
		s.notifier.notify(ctx, newNotification(
			domain.NotificationNewTxProposal, txp, nil,
		))
	}
	return txp, nil
}

func (s *txProposalService) PublishTx(
	ctx context.Context, creds Credentials, txProposalID, proposalSignature string,
) (*domain.TxProposal, error) {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}

	txp, err := s.txProposalRepo.GetTxProposal(ctx, w.ID, txProposalID)
	if err != nil {
		return nil, err
	}

	rawTx, err := s.rawUnsignedTx(txp)
	if err != nil {
		return nil, err
	}
	if !wallet.VerifyMessageAgainstKeys(
		rawTx, proposalSignature, copayer.RequestPubKeys,
	) {
		return nil, domain.ErrNotAuthorized
	}

	// the inputs were selected at creation time: re-check they are still
	// unspent and not claimed by another proposal published meanwhile
	if err := s.checkInputsAvailable(ctx, w, txp); err != nil {
		return nil, err
	}

	var published *domain.TxProposal
	if err := s.txProposalRepo.UpdateTxProposal(
		ctx, w.ID, txProposalID,
		func(current *domain.TxProposal) (*domain.TxProposal, error) {
			if err := current.Publish(); err != nil {
				return nil, err
			}
			current.ProposalSignature = proposalSignature
			published = current
			return current, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.notify(ctx, newNotification(
		domain.NotificationNewTxProposal, published, nil,
	))
	return published, nil
}

func (s *txProposalService) SignTx(
	ctx context.Context, creds Credentials, txProposalID string, signatures []string,
) (*domain.TxProposal, error) {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}

	txp, err := s.txProposalRepo.GetTxProposal(ctx, w.ID, txProposalID)
	if err != nil {
		return nil, err
	}
	if !txp.IsPending() {
		return nil, domain.ErrTxNotPending
	}

	tx, err := s.unsignedTx(txp)
	if err != nil {
		return nil, err
	}
	signingPubKeys, err := inputPubKeysFor(copayer.XPubKey, txp)
	if err != nil {
		return nil, err
	}
	prevScripts, err := prevScriptsFor(txp)
	if err != nil {
		return nil, err
	}

	ok, err := wallet.VerifyTxSignatures(wallet.VerifyTxSignaturesOpts{
		Tx:             tx,
		Signatures:     signatures,
		SigningPubKeys: signingPubKeys,
		PrevScripts:    prevScripts,
	})
	if err != nil || !ok {
		return nil, domain.ErrBadSignatures
	}

	var signed *domain.TxProposal
	if err := s.txProposalRepo.UpdateTxProposal(
		ctx, w.ID, txProposalID,
		func(current *domain.TxProposal) (*domain.TxProposal, error) {
			if err := current.Sign(copayer.ID, signatures); err != nil {
				return nil, err
			}
			if current.IsAccepted() {
				if err := s.finalizeTx(w, current); err != nil {
					return nil, err
				}
			}
			signed = current
			return current, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.notify(ctx, newNotification(
		domain.NotificationTxProposalAcceptedBy, signed,
		map[string]interface{}{"copayerId": copayer.ID},
	))
	if signed.IsAccepted() {
		s.notifier.notify(ctx, newNotification(
			domain.NotificationTxProposalFinallyAccepted, signed, nil,
		))
	}
	return signed, nil
}

func (s *txProposalService) RejectTx(
	ctx context.Context, creds Credentials, txProposalID, comment string,
) (*domain.TxProposal, error) {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}

	var rejected *domain.TxProposal
	if err := s.txProposalRepo.UpdateTxProposal(
		ctx, w.ID, txProposalID,
		func(current *domain.TxProposal) (*domain.TxProposal, error) {
			if err := current.Reject(copayer.ID, comment); err != nil {
				return nil, err
			}
			rejected = current
			return current, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.notify(ctx, newNotification(
		domain.NotificationTxProposalRejectedBy, rejected,
		map[string]interface{}{"copayerId": copayer.ID},
	))
	if rejected.IsRejected() {
		s.notifier.notify(ctx, newNotification(
			domain.NotificationTxProposalFinallyRejected, rejected, nil,
		))
	}
	return rejected, nil
}

func (s *txProposalService) BroadcastTx(
	ctx context.Context, creds Credentials, txProposalID string,
) (*domain.TxProposal, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}

	txp, err := s.txProposalRepo.GetTxProposal(ctx, w.ID, txProposalID)
	if err != nil {
		return nil, err
	}
	if txp.IsBroadcasted() {
		return nil, domain.ErrTxAlreadyBroadcasted
	}
	if !txp.IsAccepted() {
		return nil, domain.ErrTxNotAccepted
	}

	txid, broadcastErr := s.explorerSvc.Broadcast(ctx, txp.RawTx)
	notificationType := domain.NotificationNewOutgoingTx
	if broadcastErr != nil {
		// the tx may have been relayed out of band by one of the clients:
		// only then is the failure benign
		known, err := s.explorerSvc.GetTransaction(ctx, txp.TxID)
		if err != nil || known == nil {
			log.WithError(broadcastErr).Warnf(
				"failed to broadcast tx proposal %s", txp.ID,
			)
			return nil, broadcastErr
		}
		txid = txp.TxID
		notificationType = domain.NotificationNewOutgoingTxThirdParty
	}

	var broadcasted *domain.TxProposal
	if err := s.txProposalRepo.UpdateTxProposal(
		ctx, w.ID, txProposalID,
		func(current *domain.TxProposal) (*domain.TxProposal, error) {
			if err := current.SetBroadcasted(txid); err != nil {
				return nil, err
			}
			broadcasted = current
			return current, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.notify(ctx, newNotification(
		notificationType, broadcasted,
		map[string]interface{}{"txid": txid},
	))
	return broadcasted, nil
}

func (s *txProposalService) RemoveTx(
	ctx context.Context, creds Credentials, txProposalID string,
) error {
	w, copayer, err := s.authorize(ctx, creds)
	if err != nil {
		return err
	}

	txp, err := s.txProposalRepo.GetTxProposal(ctx, w.ID, txProposalID)
	if err != nil {
		return err
	}
	if !txp.IsDeletableBy(copayer.ID, time.Now().Unix(), s.cfg.DeleteLockTime) {
		return domain.ErrTxCannotRemove
	}
	if err := s.txProposalRepo.RemoveTxProposal(ctx, w.ID, txProposalID); err != nil {
		return err
	}

	s.notifier.notify(ctx, newNotification(
		domain.NotificationTxProposalRemoved, txp, nil,
	))
	return nil
}

func (s *txProposalService) GetTx(
	ctx context.Context, creds Credentials, txProposalID string,
) (*domain.TxProposal, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.txProposalRepo.GetTxProposal(ctx, w.ID, txProposalID)
}

func (s *txProposalService) GetPendingTxs(
	ctx context.Context, creds Credentials,
) ([]*domain.TxProposal, error) {
	w, _, err := s.authorize(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.txProposalRepo.GetTxProposalsByStatus(
		ctx, w.ID, []string{
			domain.TxProposalStatusPending,
			domain.TxProposalStatusAccepted,
		},
	)
}

// changeAddress picks where the leftover of a proposal goes: a fresh change
// chain address, except for single-address wallets which route everything
// back to their one main address.
func (s *txProposalService) changeAddress(
	ctx context.Context, w *domain.Wallet,
) (*domain.Address, error) {
	if w.SingleAddress {
		mainAddresses, err := s.deriver.addressRepo.GetAddressesByChain(
			ctx, w.ID, false,
		)
		if err != nil {
			return nil, err
		}
		if len(mainAddresses) > 0 {
			return mainAddresses[0], nil
		}
		return s.deriver.deriveNewAddress(ctx, w, false)
	}
	return s.deriver.deriveNewAddress(ctx, w, true)
}

// checkCreationBackoff throttles proposal creation after a run of rejected
// proposals so that a compromised copayer cannot drain the wallet's
// cosigners with spam. Only the creator's own history counts: one spammer
// must not lock the other copayers out.
func (s *txProposalService) checkCreationBackoff(
	ctx context.Context, walletID, creatorID string,
) error {
	recent, err := s.txProposalRepo.GetRecentTxProposals(
		ctx, walletID, creatorID, s.cfg.BackoffOffset,
	)
	if err != nil {
		return err
	}
	if len(recent) < s.cfg.BackoffOffset {
		return nil
	}
	for _, txp := range recent {
		if !txp.IsRejected() {
			return nil
		}
	}
	if time.Now().Unix() < recent[0].CreatedOn+s.cfg.BackoffTime {
		return domain.ErrTxCannotCreate
	}
	return nil
}

func (s *txProposalService) resolveFeeRate(
	ctx context.Context, opts CreateTxOpts,
) (uint64, error) {
	if opts.Fee > 0 && (opts.FeePerKb > 0 || len(opts.FeeLevel) > 0) {
		return 0, ErrFeeAndFeePerKb
	}
	if opts.Fee > 0 {
		return 0, nil
	}
	if opts.FeePerKb > 0 {
		return opts.FeePerKb, nil
	}
	level := opts.FeeLevel
	if len(level) <= 0 {
		level = "normal"
	}
	return s.feeEstimator.GetFeePerKb(ctx, level)
}

func (s *txProposalService) selectInputs(
	ctx context.Context,
	w *domain.Wallet,
	txp *domain.TxProposal,
	opts CreateTxOpts,
) (*SelectionResult, error) {
	allUtxos, err := s.utxos.getWalletUtxos(ctx, w)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.ExcludedUtxos))
	for _, key := range opts.ExcludedUtxos {
		excluded[key] = true
	}

	available := make([]*Utxo, 0, len(allUtxos))
	var totalSpendable uint64
	for _, u := range allUtxos {
		if excluded[u.Key()] {
			continue
		}
		totalSpendable += u.Satoshis
		if u.Locked || !u.Safe {
			continue
		}
		available = append(available, u)
	}

	result, err := s.coinSelector.SelectInputs(SelectInputsOpts{
		Utxos:              available,
		Amount:             txp.Amount(),
		FeePerKb:           txp.FeePerKb,
		FixedFee:           opts.Fee,
		ScriptType:         w.AddressType,
		M:                  w.M,
		N:                  w.N,
		NbOutputs:          len(txp.Outputs) + 1,
		ExcludeUnconfirmed: opts.ExcludeUnconfirmed,
	})
	if err == domain.ErrInsufficientFunds && totalSpendable >= txp.Amount() {
		return nil, domain.ErrLockedFunds
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkInputsAvailable verifies every input of the proposal is still an
// unspent, unlocked output of the wallet.
func (s *txProposalService) checkInputsAvailable(
	ctx context.Context, w *domain.Wallet, txp *domain.TxProposal,
) error {
	utxos, err := s.utxos.getWalletUtxos(ctx, w)
	if err != nil {
		return err
	}
	byKey := make(map[string]*Utxo, len(utxos))
	for _, u := range utxos {
		byKey[u.Key()] = u
	}
	for _, in := range txp.Inputs {
		u, found := byKey[in.Key()]
		if !found || u.Locked {
			return domain.ErrUnavailableUtxos
		}
	}
	return nil
}

// finalizeTx assembles the fully signed raw tx from the collected accept
// votes and freezes it on the proposal together with its txid.
func (s *txProposalService) finalizeTx(
	w *domain.Wallet, txp *domain.TxProposal,
) error {
	tx, err := s.unsignedTx(txp)
	if err != nil {
		return err
	}
	prevScripts, err := prevScriptsFor(txp)
	if err != nil {
		return err
	}

	signers := make([]wallet.TxSigner, 0, len(txp.Actions))
	for _, action := range txp.Actions {
		if action.Type != domain.ActionTypeAccept {
			continue
		}
		copayer := w.GetCopayer(action.CopayerID)
		if copayer == nil {
			return domain.ErrNotAuthorized
		}
		pubKeys, err := inputPubKeysFor(copayer.XPubKey, txp)
		if err != nil {
			return err
		}
		signers = append(signers, wallet.TxSigner{
			PubKeys:    pubKeys,
			Signatures: action.Signatures,
		})
	}

	inputPubKeys := make([][]string, 0, len(txp.Inputs))
	for _, in := range txp.Inputs {
		inputPubKeys = append(inputPubKeys, in.PublicKeys)
	}

	rawTx, txid, err := wallet.FinalizeTransaction(wallet.FinalizeTxOpts{
		Tx:           tx,
		ScriptType:   txp.AddressType,
		Signers:      signers,
		PrevScripts:  prevScripts,
		InputPubKeys: inputPubKeys,
	})
	if err != nil {
		return err
	}
	txp.RawTx = rawTx
	txp.TxID = txid
	return nil
}

func (s *txProposalService) unsignedTx(txp *domain.TxProposal) (*wire.MsgTx, error) {
	inputs := make([]wallet.TxInput, 0, len(txp.Inputs))
	for _, in := range txp.Inputs {
		inputs = append(inputs, wallet.TxInput{TxID: in.TxID, Vout: in.Vout})
	}
	outputs := make([]wallet.TxOutput, 0, len(txp.Outputs)+1)
	for _, out := range txp.OrderedOutputs(txp.ChangeAmount()) {
		outputs = append(outputs, wallet.TxOutput{
			Address: out.ToAddress,
			Script:  out.Script,
			Amount:  out.Amount,
		})
	}
	return wallet.NewUnsignedTransaction(wallet.NewTransactionOpts{
		Inputs:  inputs,
		Outputs: outputs,
		Network: txp.Network,
	})
}

func (s *txProposalService) rawUnsignedTx(txp *domain.TxProposal) (string, error) {
	tx, err := s.unsignedTx(txp)
	if err != nil {
		return "", err
	}
	return wallet.SerializeTx(tx)
}

func inputSnapshots(utxos []*Utxo) []domain.TxProposalInput {
	inputs := make([]domain.TxProposalInput, 0, len(utxos))
	for _, u := range utxos {
		inputs = append(inputs, domain.TxProposalInput{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Satoshis:      u.Satoshis,
			ScriptPubKey:  u.ScriptPubKey,
			Address:       u.Address,
			Path:          u.Path,
			PublicKeys:    u.PublicKeys,
			Confirmations: u.Confirmations,
		})
	}
	return inputs
}

// inputPubKeysFor derives the public key of one cosigner at the derivation
// path of every proposal input.
func inputPubKeysFor(xPubKey string, txp *domain.TxProposal) ([]string, error) {
	pubKeys := make([]string, 0, len(txp.Inputs))
	for _, in := range txp.Inputs {
		pk, err := wallet.DerivePublicKey(xPubKey, in.Path)
		if err != nil {
			return nil, err
		}
		pubKeys = append(pubKeys, pk)
	}
	return pubKeys, nil
}

// prevScriptsFor returns the script each input signature digest commits to:
// the redeem script for P2SH inputs, the previous output script for P2PKH.
func prevScriptsFor(txp *domain.TxProposal) ([][]byte, error) {
	scripts := make([][]byte, 0, len(txp.Inputs))
	for _, in := range txp.Inputs {
		if txp.AddressType == wallet.ScriptTypeP2SH {
			script, err := wallet.MultiSigScript(
				in.PublicKeys, txp.RequiredSignatures, txp.Network,
			)
			if err != nil {
				return nil, err
			}
			scripts = append(scripts, script)
			continue
		}
		script, err := hex.DecodeString(in.ScriptPubKey)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}
