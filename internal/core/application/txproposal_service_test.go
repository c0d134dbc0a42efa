package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitpay/bws-daemon/internal/core/application"
	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/explorer"
)

const destinationAddress = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"

func defaultCreateOpts(amount uint64) application.CreateTxOpts {
	return application.CreateTxOpts{
		Type: domain.TxProposalTypeSimple,
		Outputs: []domain.TxProposalOutput{
			{ToAddress: destinationAddress, Amount: amount},
		},
		FeePerKb: 10000,
		DryRun:   true,
	}
}

// createAndPublish runs the two-step creation a client performs: a dry run
// to learn inputs and fee, then an explicit publish signing the raw tx.
func createAndPublish(
	t *testing.T, env *testEnv, cosigner *testCosigner, amount uint64,
) *domain.TxProposal {
	t.Helper()
	ctx := context.Background()

	txp, err := env.txpSvc.CreateTx(
		ctx, cosigner.credentials(), defaultCreateOpts(amount),
	)
	require.NoError(t, err)
	require.True(t, txp.IsTemporary())

	published, err := env.txpSvc.PublishTx(
		ctx, cosigner.credentials(), txp.ID, cosigner.signRawTx(t, txp),
	)
	require.NoError(t, err)
	require.True(t, published.IsPending())
	return published
}

func TestCreateTxDryRun(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)

	txp, err := env.txpSvc.CreateTx(
		context.Background(),
		env.cosigners[0].credentials(),
		defaultCreateOpts(50000),
	)
	require.NoError(t, err)
	require.True(t, txp.IsTemporary())
	require.Len(t, txp.Inputs, 1)
	require.Equal(t, uint64(100000), txp.Inputs[0].Satoshis)

	// one 2-of-3 input and two outputs at 10 sat/byte
	require.Equal(t, uint64(3740), txp.Fee)
	require.NotNil(t, txp.ChangeAddress)
	require.True(t, txp.ChangeAddress.IsChange)
	require.Equal(t, uint64(100000-50000-3740), txp.ChangeAmount())
}

func TestCreateTxOneStep(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()
	cosigner := env.cosigners[0]

	// without a dry run the creator signs the outputs and message up front:
	// the raw tx does not exist yet at request time
	opts := defaultCreateOpts(50000)
	opts.DryRun = false
	opts.ProposalSignature = cosigner.signMessage(
		fmt.Sprintf("%s|%d|", destinationAddress, 50000),
	)

	txp, err := env.txpSvc.CreateTx(ctx, cosigner.credentials(), opts)
	require.NoError(t, err)
	require.True(t, txp.IsPending())
	require.Len(t, txp.Inputs, 1)

	pending, err := env.txpSvc.GetPendingTxs(ctx, cosigner.credentials())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// a signature over anything else is refused
	opts = defaultCreateOpts(30000)
	opts.DryRun = false
	opts.ProposalSignature = cosigner.signMessage("some other payload")
	_, err = env.txpSvc.CreateTx(ctx, cosigner.credentials(), opts)
	require.EqualError(t, err, domain.ErrNotAuthorized.Error())
}

func TestCreateTxSingleAddressChange(t *testing.T) {
	env := newSingleAddressTestEnv(t, application.DefaultConfig())
	main := env.fundWallet(t, 100000)

	txp, err := env.txpSvc.CreateTx(
		context.Background(),
		env.cosigners[0].credentials(),
		defaultCreateOpts(50000),
	)
	require.NoError(t, err)
	require.NotNil(t, txp.ChangeAddress)

	// change flows back to the wallet's one main address
	require.Equal(t, main.Address, txp.ChangeAddress.Address)
	require.False(t, txp.ChangeAddress.IsChange)
}

func TestTxProposalQuorumFlow(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()

	txp := createAndPublish(t, env, env.cosigners[0], 50000)

	signed, err := env.txpSvc.SignTx(
		ctx, env.cosigners[0].credentials(), txp.ID,
		env.cosigners[0].signTxInputs(t, txp),
	)
	require.NoError(t, err)
	require.True(t, signed.IsPending())

	accepted, err := env.txpSvc.SignTx(
		ctx, env.cosigners[1].credentials(), txp.ID,
		env.cosigners[1].signTxInputs(t, txp),
	)
	require.NoError(t, err)
	require.True(t, accepted.IsAccepted())
	require.NotEmpty(t, accepted.RawTx)
	require.NotEmpty(t, accepted.TxID)

	pending, err := env.txpSvc.GetPendingTxs(ctx, env.cosigners[2].credentials())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	env.explorerSvc.On("Broadcast", mock.Anything, accepted.RawTx).
		Return(accepted.TxID, nil)

	broadcasted, err := env.txpSvc.BroadcastTx(
		ctx, env.cosigners[0].credentials(), txp.ID,
	)
	require.NoError(t, err)
	require.True(t, broadcasted.IsBroadcasted())
	require.Equal(t, accepted.TxID, broadcasted.TxID)

	// a broadcasted proposal is no longer pending nor broadcastable
	pending, err = env.txpSvc.GetPendingTxs(ctx, env.cosigners[2].credentials())
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = env.txpSvc.BroadcastTx(ctx, env.cosigners[0].credentials(), txp.ID)
	require.EqualError(t, err, domain.ErrTxAlreadyBroadcasted.Error())

	notifications, err := env.walletSvc.GetNotifications(
		ctx, env.cosigners[0].credentials(), time.Now().Add(-time.Hour).Unix(),
	)
	require.NoError(t, err)
	types := make(map[string]int)
	for _, n := range notifications {
		types[n.Type]++
	}
	require.Equal(t, 1, types[domain.NotificationNewTxProposal])
	require.Equal(t, 2, types[domain.NotificationTxProposalAcceptedBy])
	require.Equal(t, 1, types[domain.NotificationTxProposalFinallyAccepted])
	require.Equal(t, 1, types[domain.NotificationNewOutgoingTx])
}

func TestRejectTxFlow(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()

	txp := createAndPublish(t, env, env.cosigners[0], 50000)

	rejected, err := env.txpSvc.RejectTx(
		ctx, env.cosigners[1].credentials(), txp.ID, "not today",
	)
	require.NoError(t, err)
	require.True(t, rejected.IsPending())

	rejected, err = env.txpSvc.RejectTx(
		ctx, env.cosigners[2].credentials(), txp.ID, "",
	)
	require.NoError(t, err)
	require.True(t, rejected.IsRejected())

	// a rejected proposal releases its inputs
	next := createAndPublish(t, env, env.cosigners[0], 50000)
	require.True(t, next.IsPending())
}

func TestSignTxBadSignatures(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)

	txp := createAndPublish(t, env, env.cosigners[0], 50000)

	// signatures produced with another cosigner's keys do not verify
	_, err := env.txpSvc.SignTx(
		context.Background(), env.cosigners[1].credentials(), txp.ID,
		env.cosigners[0].signTxInputs(t, txp),
	)
	require.EqualError(t, err, domain.ErrBadSignatures.Error())
}

func TestCreateTxValidation(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	ctx := context.Background()
	creds := env.cosigners[0].credentials()

	opts := defaultCreateOpts(100)
	_, err := env.txpSvc.CreateTx(ctx, creds, opts)
	require.EqualError(t, err, domain.ErrDustAmount.Error())

	opts = defaultCreateOpts(50000)
	opts.Outputs[0].ToAddress = "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn"
	_, err = env.txpSvc.CreateTx(ctx, creds, opts)
	require.EqualError(t, err, domain.ErrIncorrectAddressNetwork.Error())

	opts = defaultCreateOpts(50000)
	opts.Fee = 1000
	_, err = env.txpSvc.CreateTx(ctx, creds, opts)
	require.EqualError(t, err, application.ErrFeeAndFeePerKb.Error())
}

func TestCreateTxInsufficientFunds(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 2000)

	_, err := env.txpSvc.CreateTx(
		context.Background(),
		env.cosigners[0].credentials(),
		defaultCreateOpts(50000),
	)
	require.EqualError(t, err, domain.ErrInsufficientFunds.Error())
}

func TestCreateTxLockedFunds(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)

	createAndPublish(t, env, env.cosigners[0], 50000)

	// the only utxo is now reserved by the published proposal
	_, err := env.txpSvc.CreateTx(
		context.Background(),
		env.cosigners[1].credentials(),
		defaultCreateOpts(30000),
	)
	require.EqualError(t, err, domain.ErrLockedFunds.Error())
}

func TestPublishTxUnavailableUtxos(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()
	creds := env.cosigners[0].credentials()

	first, err := env.txpSvc.CreateTx(ctx, creds, defaultCreateOpts(50000))
	require.NoError(t, err)
	second, err := env.txpSvc.CreateTx(ctx, creds, defaultCreateOpts(30000))
	require.NoError(t, err)

	_, err = env.txpSvc.PublishTx(
		ctx, creds, first.ID, env.cosigners[0].signRawTx(t, first),
	)
	require.NoError(t, err)

	// both drafts reserved the same utxo, now locked by the first publish
	_, err = env.txpSvc.PublishTx(
		ctx, creds, second.ID, env.cosigners[0].signRawTx(t, second),
	)
	require.EqualError(t, err, domain.ErrUnavailableUtxos.Error())
}

func TestRemoveTx(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()

	txp, err := env.txpSvc.CreateTx(
		ctx, env.cosigners[0].credentials(), defaultCreateOpts(50000),
	)
	require.NoError(t, err)

	// only the creator may remove an unvoted proposal inside the lock window
	err = env.txpSvc.RemoveTx(ctx, env.cosigners[1].credentials(), txp.ID)
	require.EqualError(t, err, domain.ErrTxCannotRemove.Error())

	require.NoError(t, env.txpSvc.RemoveTx(
		ctx, env.cosigners[0].credentials(), txp.ID,
	))

	_, err = env.txpSvc.GetTx(ctx, env.cosigners[0].credentials(), txp.ID)
	require.EqualError(t, err, domain.ErrTxNotFound.Error())
}

func TestCreateTxBackoff(t *testing.T) {
	cfg := application.DefaultConfig()
	cfg.BackoffOffset = 2
	env := newTestEnv(t, cfg, 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		txp := createAndPublish(t, env, env.cosigners[0], 50000)
		for _, cosigner := range env.cosigners[1:] {
			_, err := env.txpSvc.RejectTx(
				ctx, cosigner.credentials(), txp.ID, "spam",
			)
			require.NoError(t, err)
		}
	}

	// after a run of rejected proposals, creation is throttled
	_, err := env.txpSvc.CreateTx(
		ctx, env.cosigners[0].credentials(), defaultCreateOpts(50000),
	)
	require.EqualError(t, err, domain.ErrTxCannotCreate.Error())

	// only the copayer with the rejection history is throttled
	_, err = env.txpSvc.CreateTx(
		ctx, env.cosigners[1].credentials(), defaultCreateOpts(50000),
	)
	require.NoError(t, err)
}

func TestBroadcastTxThirdParty(t *testing.T) {
	env := newTestEnv(t, application.DefaultConfig(), 2, 3)
	env.fundWallet(t, 100000)
	ctx := context.Background()

	txp := createAndPublish(t, env, env.cosigners[0], 50000)
	for _, cosigner := range env.cosigners[:2] {
		var err error
		txp, err = env.txpSvc.SignTx(
			ctx, cosigner.credentials(), txp.ID, cosigner.signTxInputs(t, txp),
		)
		require.NoError(t, err)
	}
	require.True(t, txp.IsAccepted())

	// the network already knows the tx: someone relayed it out of band
	env.explorerSvc.On("Broadcast", mock.Anything, txp.RawTx).
		Return("", errors.New("txn-already-known"))
	env.explorerSvc.On("GetTransaction", mock.Anything, txp.TxID).
		Return(&explorer.Tx{TxID: txp.TxID}, nil)

	broadcasted, err := env.txpSvc.BroadcastTx(
		ctx, env.cosigners[0].credentials(), txp.ID,
	)
	require.NoError(t, err)
	require.True(t, broadcasted.IsBroadcasted())
	require.Equal(t, txp.TxID, broadcasted.TxID)

	notifications, err := env.walletSvc.GetNotifications(
		ctx, env.cosigners[0].credentials(), time.Now().Add(-time.Hour).Unix(),
	)
	require.NoError(t, err)
	found := false
	for _, n := range notifications {
		if n.Type == domain.NotificationNewOutgoingTxThirdParty {
			found = true
		}
	}
	require.True(t, found)
}
