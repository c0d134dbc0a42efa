package wallet

// Transaction size constants. Input sizes depend on the script type of the
// spent output: a P2SH multisig input carries m signatures and n public keys
// in its redeem script, a P2PKH input carries a single signature and key.
const (
	txOverheadSize    = 10
	txOutputSize      = 34
	p2pkhInputSize    = 147
	p2shSigSize       = 72
	p2shPubKeySize    = 36
	p2shInputOverhead = 44
)

// EstimateInputSize returns the serialized size in bytes of a single input
// spending an output of the given script type for an m-of-n wallet.
func EstimateInputSize(scriptType string, m, n int) int {
	switch scriptType {
	case ScriptTypeP2PKH:
		return p2pkhInputSize
	default:
		return m*p2shSigSize + n*p2shPubKeySize + p2shInputOverhead
	}
}

// EstimateTxSize returns the estimated serialized size in bytes of a
// transaction with nbInputs inputs of the given script type and nbOutputs
// outputs.
func EstimateTxSize(scriptType string, m, n, nbInputs, nbOutputs int) int {
	return txOverheadSize +
		nbInputs*EstimateInputSize(scriptType, m, n) +
		nbOutputs*txOutputSize
}

// FeeForSize converts a size in bytes and a rate in satoshis per kilobyte
// into an absolute fee in satoshis.
func FeeForSize(sizeBytes int, feePerKb uint64) uint64 {
	return uint64(sizeBytes) * feePerKb / 1000
}
