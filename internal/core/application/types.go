package application

import (
	"fmt"

	"github.com/bitpay/bws-daemon/internal/core/domain"
)

// Utxo is an unspent output of the wallet enriched with its derivation info
// and the computed locked flag. It is ephemeral: the locked flag is
// recomputed from the currently pending proposals on every read.
type Utxo struct {
	TxID          string
	Vout          uint32
	Address       string
	ScriptPubKey  string
	Satoshis      uint64
	Confirmations int64
	Path          string
	PublicKeys    []string
	IsChange      bool
	Locked        bool
	Safe          bool
}

// Key returns the outpoint identity of the utxo.
func (u *Utxo) Key() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// IsConfirmed returns whether the utxo is included in a block.
func (u *Utxo) IsConfirmed() bool {
	return u.Confirmations > 0
}

// BalanceTier is one balance figure split into its safe and unsafe parts.
// Unsafe covers zero-confirmation utxos whose ancestry could not be proven
// final nor wallet-owned.
type BalanceTier struct {
	Total uint64
	Safe  uint64
}

// Balance is the tiered balance of a wallet.
type Balance struct {
	Total     BalanceTier
	Confirmed BalanceTier
	Locked    BalanceTier
	Available BalanceTier
}

// FeeLevelInfo is the resolved rate for a named fee level.
type FeeLevelInfo struct {
	FeePerKb uint64
	NbBlocks int
}

// ScanResult reports the outcome of a gap-limit address scan.
type ScanResult struct {
	Status             string
	NewMainAddresses   int
	NewChangeAddresses int
}

func newNotification(
	notificationType string,
	txp *domain.TxProposal,
	data map[string]interface{},
) *domain.Notification {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["txProposalId"] = txp.ID
	data["amount"] = txp.Amount()
	return domain.NewNotification(notificationType, txp.WalletID, txp.CreatorID, data)
}
