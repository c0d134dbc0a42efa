package wallet

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// TxInput references the unspent output consumed by a transaction input.
type TxInput struct {
	TxID string
	Vout uint32
}

// TxOutput is a transaction output, expressed either as an address or as a
// raw script in hex format, never both.
type TxOutput struct {
	Address string
	Script  string
	Amount  uint64
}

// NewTransactionOpts is the struct given to the NewUnsignedTransaction
// method. Outputs must already be in their final order.
type NewTransactionOpts struct {
	Inputs   []TxInput
	Outputs  []TxOutput
	Network  string
	Locktime uint32
}

func (o NewTransactionOpts) validate() error {
	if len(o.Inputs) <= 0 {
		return ErrNullInputs
	}
	if len(o.Outputs) <= 0 {
		return ErrNullOutputs
	}
	if _, err := NetworkParams(o.Network); err != nil {
		return err
	}
	return nil
}

// NewUnsignedTransaction assembles the raw transaction spending the given
// inputs to the given outputs, without any signature material.
func NewUnsignedTransaction(opts NewTransactionOpts) (*wire.MsgTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	net, _ := NetworkParams(opts.Network)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.LockTime = opts.Locktime

	for _, in := range opts.Inputs {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, err
		}
		outpoint := wire.NewOutPoint(hash, in.Vout)
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	}

	for _, out := range opts.Outputs {
		script, err := outputScript(out, net)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(out.Amount), script))
	}

	return tx, nil
}

// SerializeTx returns the raw transaction in hex format.
func SerializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// VerifyTxSignaturesOpts is the struct given to the VerifyTxSignatures
// method. Signatures and SigningPubKeys carry one element per tx input,
// PrevScripts the redeem script (P2SH) or previous output script (P2PKH)
// the input spends.
type VerifyTxSignaturesOpts struct {
	Tx             *wire.MsgTx
	Signatures     []string
	SigningPubKeys []string
	PrevScripts    [][]byte
}

func (o VerifyTxSignaturesOpts) validate() error {
	if o.Tx == nil || len(o.Tx.TxIn) <= 0 {
		return ErrNullInputs
	}
	if len(o.Signatures) != len(o.Tx.TxIn) ||
		len(o.SigningPubKeys) != len(o.Tx.TxIn) ||
		len(o.PrevScripts) != len(o.Tx.TxIn) {
		return ErrSignatureCountMismatch
	}
	return nil
}

// VerifyTxSignatures checks that every provided signature verifies the
// SIGHASH_ALL digest of its input against the corresponding signing key.
func VerifyTxSignatures(opts VerifyTxSignaturesOpts) (bool, error) {
	if err := opts.validate(); err != nil {
		return false, err
	}

	for i := range opts.Tx.TxIn {
		hash, err := txscript.CalcSignatureHash(
			opts.PrevScripts[i], txscript.SigHashAll, opts.Tx, i,
		)
		if err != nil {
			return false, err
		}
		ok, err := verifyHash(hash, opts.Signatures[i], opts.SigningPubKeys[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// TxSigner carries one cosigner's contribution to a transaction: one
// signature per input and the public key each signature verifies against.
type TxSigner struct {
	PubKeys    []string
	Signatures []string
}

// FinalizeTxOpts is the struct given to the FinalizeTransaction method.
// PrevScripts holds the redeem script of every input (P2SH), InputPubKeys
// the input's public keys in redeem script order.
type FinalizeTxOpts struct {
	Tx           *wire.MsgTx
	ScriptType   string
	Signers      []TxSigner
	PrevScripts  [][]byte
	InputPubKeys [][]string
}

func (o FinalizeTxOpts) validate() error {
	if o.Tx == nil || len(o.Tx.TxIn) <= 0 {
		return ErrNullInputs
	}
	if o.ScriptType != ScriptTypeP2SH && o.ScriptType != ScriptTypeP2PKH {
		return ErrInvalidScriptType
	}
	if len(o.Signers) <= 0 {
		return ErrMissingSignatures
	}
	for _, signer := range o.Signers {
		if len(signer.Signatures) != len(o.Tx.TxIn) ||
			len(signer.PubKeys) != len(o.Tx.TxIn) {
			return ErrSignatureCountMismatch
		}
	}
	if len(o.PrevScripts) != len(o.Tx.TxIn) ||
		len(o.InputPubKeys) != len(o.Tx.TxIn) {
		return ErrSignatureCountMismatch
	}
	return nil
}

// FinalizeTransaction assembles the signature script of every input from
// the collected cosigner signatures and returns the signed transaction in
// hex format along with its txid. Signatures are laid out in redeem script
// key order regardless of the order cosigners signed in.
func FinalizeTransaction(opts FinalizeTxOpts) (string, string, error) {
	if err := opts.validate(); err != nil {
		return "", "", err
	}

	for i := range opts.Tx.TxIn {
		builder := txscript.NewScriptBuilder()
		if opts.ScriptType == ScriptTypeP2SH {
			// extra element consumed by OP_CHECKMULTISIG
			builder.AddOp(txscript.OP_FALSE)
			for _, pubKey := range opts.InputPubKeys[i] {
				sig, ok := signatureFor(opts.Signers, i, pubKey)
				if !ok {
					continue
				}
				builder.AddData(append(sig, byte(txscript.SigHashAll)))
			}
			builder.AddData(opts.PrevScripts[i])
		} else {
			sig, ok := signatureFor(opts.Signers, i, opts.InputPubKeys[i][0])
			if !ok {
				return "", "", ErrMissingSignatures
			}
			pubKeyBytes, err := decodeHex(opts.InputPubKeys[i][0])
			if err != nil {
				return "", "", err
			}
			builder.AddData(append(sig, byte(txscript.SigHashAll)))
			builder.AddData(pubKeyBytes)
		}

		script, err := builder.Script()
		if err != nil {
			return "", "", err
		}
		opts.Tx.TxIn[i].SignatureScript = script
	}

	rawTx, err := SerializeTx(opts.Tx)
	if err != nil {
		return "", "", err
	}
	return rawTx, opts.Tx.TxHash().String(), nil
}

func signatureFor(signers []TxSigner, inputIndex int, pubKey string) ([]byte, bool) {
	for _, signer := range signers {
		if signer.PubKeys[inputIndex] != pubKey {
			continue
		}
		sig, err := decodeHex(signer.Signatures[inputIndex])
		if err != nil {
			continue
		}
		return sig, true
	}
	return nil, false
}

func outputScript(out TxOutput, net *chaincfg.Params) ([]byte, error) {
	if len(out.Script) > 0 {
		return hex.DecodeString(out.Script)
	}
	addr, err := btcutil.DecodeAddress(out.Address, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
