package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/bitpay/bws-daemon/pkg/wallet"
)

// Copayer is one participant of a shared wallet, identified by the hash of
// its extended public key. Immutable once created except for added request
// keys.
type Copayer struct {
	ID             string
	CreatedOn      int64
	Name           string
	XPubKey        string
	RequestPubKeys []string
}

// CopayerIDFromXPub returns the deterministic copayer identity derived from
// an extended public key.
func CopayerIDFromXPub(xPubKey string) string {
	hash := sha256.Sum256([]byte(xPubKey))
	return hex.EncodeToString(hash[:])
}

// NewCopayer returns a copayer whose id is derived from the given extended
// public key.
func NewCopayer(name, xPubKey, requestPubKey string) *Copayer {
	return &Copayer{
		ID:             CopayerIDFromXPub(xPubKey),
		CreatedOn:      time.Now().Unix(),
		Name:           name,
		XPubKey:        xPubKey,
		RequestPubKeys: []string{requestPubKey},
	}
}

// AddRequestPubKey registers an additional request key for the copayer,
// supporting key rotation without re-joining the wallet.
func (c *Copayer) AddRequestPubKey(requestPubKey string) {
	for _, pk := range c.RequestPubKeys {
		if pk == requestPubKey {
			return
		}
	}
	c.RequestPubKeys = append(c.RequestPubKeys, requestPubKey)
}

// Wallet is the data structure representing an m-of-n shared wallet entity.
// Its public key ring is populated only once all n copayers have joined.
type Wallet struct {
	ID                 string
	CreatedOn          int64
	Name               string
	M                  int
	N                  int
	SingleAddress      bool
	Status             string
	PubKeyRing         []string
	Copayers           []*Copayer
	Network            string
	DerivationStrategy string
	AddressType        string
	AddressManager     *AddressManager
	ScanStatus         string
}

// NewWalletOpts is the struct given to the NewWallet factory.
type NewWalletOpts struct {
	Name               string
	M                  int
	N                  int
	Network            string
	SingleAddress      bool
	DerivationStrategy string
	AddressType        string
}

func (o NewWalletOpts) validate() error {
	if len(o.Name) <= 0 {
		return ErrInvalidArgument
	}
	if !validQuorum(o.M, o.N) {
		return ErrInvalidArgument
	}
	if _, err := wallet.NetworkParams(o.Network); err != nil {
		return ErrInvalidArgument
	}
	switch o.DerivationStrategy {
	case DerivationStrategyBIP44, DerivationStrategyBIP45:
	default:
		return ErrInvalidArgument
	}
	return nil
}

// NewWallet returns a pending wallet with a new id and an empty copayer set.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	addressType := opts.AddressType
	if addressType == "" {
		addressType = defaultAddressType(opts.N)
	}
	return &Wallet{
		ID:                 uuid.New().String(),
		CreatedOn:          time.Now().Unix(),
		Name:               opts.Name,
		M:                  opts.M,
		N:                  opts.N,
		SingleAddress:      opts.SingleAddress,
		Status:             WalletStatusPending,
		PubKeyRing:         nil,
		Copayers:           make([]*Copayer, 0, opts.N),
		Network:            opts.Network,
		DerivationStrategy: opts.DerivationStrategy,
		AddressType:        addressType,
		AddressManager: NewAddressManager(
			opts.DerivationStrategy, SharedCosignerIndex,
		),
	}, nil
}

// IsComplete returns whether all n copayers have joined the wallet.
func (w *Wallet) IsComplete() bool {
	return w.Status == WalletStatusComplete
}

// IsShared returns whether the wallet has more than one copayer.
func (w *Wallet) IsShared() bool {
	return w.N > 1
}

// GetCopayer returns the copayer with the given id, or nil.
func (w *Wallet) GetCopayer(copayerID string) *Copayer {
	for _, c := range w.Copayers {
		if c.ID == copayerID {
			return c
		}
	}
	return nil
}

// AddCopayer joins a copayer to the wallet. When the n-th copayer joins, the
// wallet becomes complete and its public key ring is frozen.
func (w *Wallet) AddCopayer(copayer *Copayer) error {
	if w.IsComplete() || len(w.Copayers) >= w.N {
		return ErrWalletFull
	}
	if w.GetCopayer(copayer.ID) != nil {
		return ErrCopayerInWallet
	}

	w.Copayers = append(w.Copayers, copayer)
	if len(w.Copayers) == w.N {
		w.Status = WalletStatusComplete
		ring := make([]string, 0, w.N)
		for _, c := range w.Copayers {
			ring = append(ring, c.XPubKey)
		}
		w.PubKeyRing = ring
	}
	return nil
}

func validQuorum(m, n int) bool {
	return n >= 1 && n <= 15 && m >= 1 && m <= n
}

func defaultAddressType(n int) string {
	if n == 1 {
		return wallet.ScriptTypeP2PKH
	}
	return wallet.ScriptTypeP2SH
}
