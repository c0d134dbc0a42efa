package wallet

import (
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// ScriptTypeP2SH identifies pay-to-script-hash multisig addresses.
	ScriptTypeP2SH = "P2SH"
	// ScriptTypeP2PKH identifies pay-to-pubkey-hash single-key addresses.
	ScriptTypeP2PKH = "P2PKH"

	// NetworkLivenet ...
	NetworkLivenet = "livenet"
	// NetworkTestnet ...
	NetworkTestnet = "testnet"
)

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case NetworkLivenet:
		return &chaincfg.MainNetParams, nil
	case NetworkTestnet:
		return &chaincfg.TestNet3Params, nil
	default:
		return nil, ErrInvalidNetwork
	}
}

// ValidateAddress checks that the given address is well formed and encoded
// for the given network.
func ValidateAddress(address, network string) error {
	net, err := NetworkParams(network)
	if err != nil {
		return err
	}
	decoded, err := btcutil.DecodeAddress(address, net)
	if err != nil {
		return ErrInvalidAddress
	}
	if !decoded.IsForNet(net) {
		return ErrInvalidAddress
	}
	return nil
}

// DerivedAddress is the result of deriving a path against a wallet's public
// key ring.
type DerivedAddress struct {
	Address    string
	Path       string
	PublicKeys []string
}

// DeriveAddressOpts is the struct given to the DeriveAddress method.
type DeriveAddressOpts struct {
	PubKeyRing         []string
	Path               string
	RequiredSignatures int
	Network            string
	ScriptType         string
}

func (o DeriveAddressOpts) validate() error {
	if len(o.PubKeyRing) <= 0 {
		return ErrEmptyPublicKeyRing
	}
	if o.RequiredSignatures < 1 || o.RequiredSignatures > len(o.PubKeyRing) {
		return ErrInvalidRequiredSignatures
	}
	path, err := ParseDerivationPath(o.Path)
	if err != nil {
		return err
	}
	if path.IsHardened() {
		return ErrHardenedDerivationPath
	}
	if _, err := NetworkParams(o.Network); err != nil {
		return err
	}
	switch o.ScriptType {
	case ScriptTypeP2SH:
	case ScriptTypeP2PKH:
		if len(o.PubKeyRing) != 1 {
			return ErrP2PKHRequiresSingleKey
		}
	default:
		return ErrInvalidScriptType
	}
	return nil
}

// DeriveAddress is a pure function deriving the address at the given path
// from every extended public key of the ring. The derived public keys are
// sorted so that the resulting script does not depend on the ring order.
func DeriveAddress(opts DeriveAddressOpts) (*DerivedAddress, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	net, _ := NetworkParams(opts.Network)
	path, _ := ParseDerivationPath(opts.Path)

	pubKeys, err := derivePublicKeys(opts.PubKeyRing, path, net)
	if err != nil {
		return nil, err
	}

	var addr btcutil.Address
	switch opts.ScriptType {
	case ScriptTypeP2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(pubKeys[0].ScriptAddress()), net,
		)
		if err != nil {
			return nil, err
		}
	default:
		script, serr := txscript.MultiSigScript(pubKeys, opts.RequiredSignatures)
		if serr != nil {
			return nil, serr
		}
		addr, err = btcutil.NewAddressScriptHash(script, net)
		if err != nil {
			return nil, err
		}
	}

	serialized := make([]string, 0, len(pubKeys))
	for _, pk := range pubKeys {
		serialized = append(serialized, pk.String())
	}

	return &DerivedAddress{
		Address:    addr.EncodeAddress(),
		Path:       path.String(),
		PublicKeys: serialized,
	}, nil
}

// MultiSigScript rebuilds the redeem script for the given set of serialized
// public keys. The keys must be passed in the same order returned by
// DeriveAddress.
func MultiSigScript(
	pubKeys []string, requiredSignatures int, network string,
) ([]byte, error) {
	net, err := NetworkParams(network)
	if err != nil {
		return nil, err
	}
	addrPubKeys := make([]*btcutil.AddressPubKey, 0, len(pubKeys))
	for _, pk := range pubKeys {
		decoded, err := parsePubKey(pk, net)
		if err != nil {
			return nil, err
		}
		addrPubKeys = append(addrPubKeys, decoded)
	}
	return txscript.MultiSigScript(addrPubKeys, requiredSignatures)
}

// DerivePublicKey derives a single extended public key at the given path
// and returns the compressed public key in hex format.
func DerivePublicKey(xpub, rawPath string) (string, error) {
	path, err := ParseDerivationPath(rawPath)
	if err != nil {
		return "", err
	}
	if path.IsHardened() {
		return "", ErrHardenedDerivationPath
	}
	hdNode, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", err
	}
	for _, step := range path {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return "", err
		}
	}
	pubKey, err := hdNode.ECPubKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pubKey.SerializeCompressed()), nil
}

func derivePublicKeys(
	ring []string, path DerivationPath, net *chaincfg.Params,
) ([]*btcutil.AddressPubKey, error) {
	pubKeys := make([]*btcutil.AddressPubKey, 0, len(ring))
	for _, xpub := range ring {
		hdNode, err := hdkeychain.NewKeyFromString(xpub)
		if err != nil {
			return nil, err
		}
		for _, step := range path {
			hdNode, err = hdNode.Derive(step)
			if err != nil {
				return nil, err
			}
		}
		pubKey, err := hdNode.ECPubKey()
		if err != nil {
			return nil, err
		}
		addrPubKey, err := btcutil.NewAddressPubKey(
			pubKey.SerializeCompressed(), net,
		)
		if err != nil {
			return nil, err
		}
		pubKeys = append(pubKeys, addrPubKey)
	}

	sort.Slice(pubKeys, func(i, j int) bool {
		return pubKeys[i].String() < pubKeys[j].String()
	})
	return pubKeys, nil
}

func parsePubKey(pk string, net *chaincfg.Params) (*btcutil.AddressPubKey, error) {
	serialized, err := decodeHex(pk)
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressPubKey(serialized, net)
}
