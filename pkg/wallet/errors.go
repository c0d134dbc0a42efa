package wallet

import "errors"

var (
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/'",
	)
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrHardenedDerivationPath ...
	ErrHardenedDerivationPath = errors.New(
		"derivation from an extended public key must not contain hardened steps",
	)
	// ErrEmptyPublicKeyRing ...
	ErrEmptyPublicKeyRing = errors.New("public key ring must not be empty")
	// ErrInvalidRequiredSignatures ...
	ErrInvalidRequiredSignatures = errors.New(
		"required signatures must be in range [1, len(pubKeyRing)]",
	)
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New(
		"address is malformed or belongs to another network",
	)
	// ErrInvalidNetwork ...
	ErrInvalidNetwork = errors.New("network must be either livenet or testnet")
	// ErrInvalidScriptType ...
	ErrInvalidScriptType = errors.New("script type not supported")
	// ErrP2PKHRequiresSingleKey ...
	ErrP2PKHRequiresSingleKey = errors.New(
		"P2PKH addresses can only be derived from a single-key ring",
	)
	// ErrNullOutputs ...
	ErrNullOutputs = errors.New("output list must not be empty")
	// ErrNullInputs ...
	ErrNullInputs = errors.New("input list must not be empty")
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("signature is not valid DER")
	// ErrMissingSignatures ...
	ErrMissingSignatures = errors.New(
		"not enough signatures to finalize the transaction",
	)
	// ErrSignatureCountMismatch ...
	ErrSignatureCountMismatch = errors.New(
		"number of signatures must match the number of tx inputs",
	)
)
