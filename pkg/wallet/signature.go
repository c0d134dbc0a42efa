package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// VerifyMessage checks the given DER encoded signature in hex format against
// the double-SHA256 hash of the message for the provided serialized public
// key. A malformed signature or public key yields an error, a well formed
// signature that does not match yields false.
func VerifyMessage(message, sigHex, pubKeyHex string) (bool, error) {
	hash := chainhash.DoubleHashB([]byte(message))
	return verifyHash(hash, sigHex, pubKeyHex)
}

// VerifyMessageAgainstKeys checks the message signature against each of the
// given public keys and returns whether any of them matches.
func VerifyMessageAgainstKeys(
	message, sigHex string, pubKeys []string,
) bool {
	for _, pk := range pubKeys {
		if ok, err := VerifyMessage(message, sigHex, pk); err == nil && ok {
			return true
		}
	}
	return false
}

func verifyHash(hash []byte, sigHex, pubKeyHex string) (bool, error) {
	sigBytes, err := decodeHex(sigHex)
	if err != nil {
		return false, ErrInvalidSignature
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, ErrInvalidSignature
	}
	pkBytes, err := decodeHex(pubKeyHex)
	if err != nil {
		return false, err
	}
	pubKey, err := btcec.ParsePubKey(pkBytes)
	if err != nil {
		return false, err
	}
	return sig.Verify(hash, pubKey), nil
}
