package explorer

import "context"

// FeeUnavailable is the sentinel rate returned when the explorer has no fee
// data for the requested confirmation target.
const FeeUnavailable = int64(-1)

// Utxo represents an unspent transaction output as reported by the explorer.
type Utxo struct {
	TxID          string
	Vout          uint32
	Address       string
	ScriptPubKey  string
	Satoshis      uint64
	Confirmations int64
}

// Tx carries the subset of transaction data the wallet service needs to
// track confirmations and walk ancestor chains.
type Tx struct {
	TxID          string
	Confirmations int64
	InputTxIDs    []string
}

// Service is the representation of a blockchain explorer that allows to
// fetch utxos and transactions, estimate fees and broadcast raw
// transactions. Any call may fail transiently; retrying is up to the caller.
type Service interface {
	// GetUtxos fetches the unspent outputs of the given list of addresses.
	GetUtxos(ctx context.Context, addresses []string) ([]Utxo, error)
	// GetTransaction fetches the tx identified by its hash, or nil if the
	// explorer does not know it.
	GetTransaction(ctx context.Context, txid string) (*Tx, error)
	// GetAddressActivity returns whether any of the given addresses appears
	// in the blockchain history.
	GetAddressActivity(ctx context.Context, addresses []string) (bool, error)
	// EstimateFee returns the fee rate in satoshis per kilobyte for having a
	// tx confirmed within nbBlocks blocks, or FeeUnavailable.
	EstimateFee(ctx context.Context, nbBlocks int) (int64, error)
	// Broadcast attempts to add the given raw tx in hex format to the
	// mempool and returns its tx hash.
	Broadcast(ctx context.Context, rawTx string) (string, error)
}
