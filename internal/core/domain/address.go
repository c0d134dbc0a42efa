package domain

import (
	"fmt"
	"time"
)

// AddressManager holds the two independent, monotonically increasing
// derivation counters of a wallet chain pair. Increments must be serialized
// per wallet by the storage layer.
type AddressManager struct {
	DerivationStrategy  string
	CopayerIndex        uint32
	ReceiveAddressIndex uint32
	ChangeAddressIndex  uint32
}

// NewAddressManager returns an address manager with both counters at zero.
// Under BIP45 the copayer index selects the cosigner branch; shared wallets
// use SharedCosignerIndex.
func NewAddressManager(strategy string, copayerIndex uint32) *AddressManager {
	return &AddressManager{
		DerivationStrategy: strategy,
		CopayerIndex:       copayerIndex,
	}
}

// GetNewAddressPath increments the counter of the requested chain and
// returns the derivation path of the freshly reserved index.
func (am *AddressManager) GetNewAddressPath(isChange bool) string {
	var index uint32
	if isChange {
		index = am.ChangeAddressIndex
		am.ChangeAddressIndex++
	} else {
		index = am.ReceiveAddressIndex
		am.ReceiveAddressIndex++
	}
	return am.pathFor(isChange, index)
}

func (am *AddressManager) pathFor(isChange bool, index uint32) string {
	chain := MainChainIndex
	if isChange {
		chain = ChangeChainIndex
	}
	if am.DerivationStrategy == DerivationStrategyBIP45 {
		return fmt.Sprintf("m/%d/%d/%d", am.CopayerIndex, chain, index)
	}
	return fmt.Sprintf("m/%d/%d", chain, index)
}

// Address is a derived wallet address. Never mutated once created except for
// its activity timestamps.
type Address struct {
	Address     string
	WalletID    string
	CreatedOn   int64
	Path        string
	IsChange    bool
	Type        string
	PublicKeys  []string
	Network     string
	HasActivity bool
	LastUsedOn  int64
}

// NewAddress returns an address entity for the given derivation result.
func NewAddress(
	walletID, address, path string,
	publicKeys []string,
	isChange bool,
	addressType, network string,
) *Address {
	return &Address{
		Address:    address,
		WalletID:   walletID,
		CreatedOn:  time.Now().Unix(),
		Path:       path,
		IsChange:   isChange,
		Type:       addressType,
		PublicKeys: publicKeys,
		Network:    network,
	}
}

// MarkActive records blockchain activity on the address.
func (a *Address) MarkActive(at int64) {
	a.HasActivity = true
	if at > a.LastUsedOn {
		a.LastUsedOn = at
	}
}
