package application_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitpay/bws-daemon/internal/core/application"
	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/internal/core/ports"
	"github.com/bitpay/bws-daemon/internal/infrastructure/pubsub"
	"github.com/bitpay/bws-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/bitpay/bws-daemon/pkg/explorer"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

const requestMessage = "get /v1/wallet"

// testCosigner holds the full key material of one wallet participant: the
// seed-derived extended key pair and a request key for call authentication.
type testCosigner struct {
	name       string
	master     *hdkeychain.ExtendedKey
	xPubKey    string
	requestPrv *btcec.PrivateKey
}

func newTestCosigner(t *testing.T, name string, seed byte) *testCosigner {
	t.Helper()
	master, err := hdkeychain.NewMaster(
		bytes.Repeat([]byte{seed + 1}, 32), &chaincfg.MainNetParams,
	)
	require.NoError(t, err)
	xPub, err := master.Neuter()
	require.NoError(t, err)
	requestPrv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return &testCosigner{
		name:       name,
		master:     master,
		xPubKey:    xPub.String(),
		requestPrv: requestPrv,
	}
}

func (c *testCosigner) copayerID() string {
	return domain.CopayerIDFromXPub(c.xPubKey)
}

func (c *testCosigner) requestPubKey() string {
	return hex.EncodeToString(c.requestPrv.PubKey().SerializeCompressed())
}

func (c *testCosigner) signMessage(message string) string {
	hash := chainhash.DoubleHashB([]byte(message))
	return hex.EncodeToString(ecdsa.Sign(c.requestPrv, hash).Serialize())
}

func (c *testCosigner) credentials() application.Credentials {
	return application.Credentials{
		CopayerID: c.copayerID(),
		Message:   requestMessage,
		Signature: c.signMessage(requestMessage),
	}
}

// privKeyAt derives the cosigner's signing key at a relative non-hardened
// derivation path like m/2147483647/0/0.
func (c *testCosigner) privKeyAt(t *testing.T, path string) *btcec.PrivateKey {
	t.Helper()
	key := c.master
	for _, step := range strings.Split(path, "/") {
		if step == "m" {
			continue
		}
		index, err := strconv.Atoi(step)
		require.NoError(t, err)
		derived, err := key.Derive(uint32(index))
		require.NoError(t, err)
		key = derived
	}
	prv, err := key.ECPrivKey()
	require.NoError(t, err)
	return prv
}

// signTxInputs produces one DER signature per proposal input the way a
// client does: reconstruct the unsigned tx and sign every input digest with
// the key at the input's derivation path.
func (c *testCosigner) signTxInputs(
	t *testing.T, txp *domain.TxProposal,
) []string {
	t.Helper()
	tx := clientUnsignedTx(t, txp)

	signatures := make([]string, 0, len(txp.Inputs))
	for i, in := range txp.Inputs {
		redeemScript, err := wallet.MultiSigScript(
			in.PublicKeys, txp.RequiredSignatures, txp.Network,
		)
		require.NoError(t, err)
		hash, err := txscript.CalcSignatureHash(
			redeemScript, txscript.SigHashAll, tx, i,
		)
		require.NoError(t, err)
		prv := c.privKeyAt(t, in.Path)
		signatures = append(
			signatures, hex.EncodeToString(ecdsa.Sign(prv, hash).Serialize()),
		)
	}
	return signatures
}

// clientUnsignedTx rebuilds the unsigned tx of a proposal from its stored
// inputs, outputs and output order.
func clientUnsignedTx(t *testing.T, txp *domain.TxProposal) *wire.MsgTx {
	t.Helper()
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
	tx, err := wallet.NewUnsignedTransaction(wallet.NewTransactionOpts{
		Inputs:  inputs,
		Outputs: outputs,
		Network: txp.Network,
	})
	require.NoError(t, err)
	return tx
}

func (c *testCosigner) signRawTx(t *testing.T, txp *domain.TxProposal) string {
	t.Helper()
	rawTx, err := wallet.SerializeTx(clientUnsignedTx(t, txp))
	require.NoError(t, err)
	return c.signMessage(rawTx)
}

// testEnv wires both services on the in-memory storage layer with a mocked
// explorer and a live notification broker.
type testEnv struct {
	repoManager ports.RepoManager
	explorerSvc *mockExplorer
	walletSvc   application.WalletService
	txpSvc      application.TxProposalService
	cosigners   []*testCosigner
	wallet      *domain.Wallet
}

func newTestEnv(t *testing.T, cfg application.Config, m, n int) *testEnv {
	return newTestEnvOpts(t, cfg, m, n, false)
}

func newSingleAddressTestEnv(t *testing.T, cfg application.Config) *testEnv {
	return newTestEnvOpts(t, cfg, 1, 1, true)
}

func newTestEnvOpts(
	t *testing.T, cfg application.Config, m, n int, singleAddress bool,
) *testEnv {
	t.Helper()
	repoManager := inmemory.NewRepoManager()
	explorerSvc := &mockExplorer{}
	broker := pubsub.NewBroker()
	t.Cleanup(broker.Close)

	walletSvc := application.NewWalletService(
		repoManager.WalletRepository(),
		repoManager.AddressRepository(),
		repoManager.TxProposalRepository(),
		repoManager.NotificationRepository(),
		repoManager.PreferencesRepository(),
		explorerSvc,
		broker,
		cfg,
	)
	txpSvc := application.NewTxProposalService(
		repoManager.WalletRepository(),
		repoManager.AddressRepository(),
		repoManager.TxProposalRepository(),
		repoManager.NotificationRepository(),
		explorerSvc,
		broker,
		cfg,
	)

	env := &testEnv{
		repoManager: repoManager,
		explorerSvc: explorerSvc,
		walletSvc:   walletSvc,
		txpSvc:      txpSvc,
	}
	env.createCompleteWallet(t, m, n, singleAddress)
	return env
}

func (e *testEnv) createCompleteWallet(t *testing.T, m, n int, singleAddress bool) {
	t.Helper()
	ctx := context.Background()

	w, err := e.walletSvc.CreateWallet(ctx, domain.NewWalletOpts{
		Name:               "family savings",
		M:                  m,
		N:                  n,
		Network:            wallet.NetworkLivenet,
		SingleAddress:      singleAddress,
		DerivationStrategy: domain.DerivationStrategyBIP45,
	})
	require.NoError(t, err)

	e.cosigners = make([]*testCosigner, 0, n)
	for i := 0; i < n; i++ {
		cosigner := newTestCosigner(t, fmt.Sprintf("cosigner-%d", i), byte(i))
		joined, err := e.walletSvc.JoinWallet(ctx, application.JoinWalletOpts{
			WalletID:      w.ID,
			CopayerName:   cosigner.name,
			XPubKey:       cosigner.xPubKey,
			RequestPubKey: cosigner.requestPubKey(),
		})
		require.NoError(t, err)
		e.cosigners = append(e.cosigners, cosigner)
		e.wallet = joined
	}
	require.True(t, e.wallet.IsComplete())
}

// fundWallet derives a receive address and makes the mocked explorer report
// one confirmed utxo of the given value on it.
func (e *testEnv) fundWallet(t *testing.T, satoshis uint64) *domain.Address {
	t.Helper()
	address, err := e.walletSvc.CreateAddress(
		context.Background(), e.cosigners[0].credentials(),
	)
	require.NoError(t, err)

	e.explorerSvc.On("GetUtxos", mock.Anything, mock.Anything).
		Return([]explorer.Utxo{{
			TxID:          strings.Repeat("ab", 32),
			Vout:          0,
			Address:       address.Address,
			Satoshis:      satoshis,
			Confirmations: 6,
		}}, nil)
	return address
}
