package domain

import "context"

// TxProposalRepository is the storage port for tx proposals. UpdateTxProposal
// runs the update function inside a storage transaction: the function
// receives the current proposal, applies a state transition through the
// entity's methods and returns the proposal to persist. Concurrent
// transitions on the same proposal cannot both succeed.
type TxProposalRepository interface {
	InsertTxProposal(ctx context.Context, txp *TxProposal) error
	GetTxProposal(ctx context.Context, walletID, txProposalID string) (*TxProposal, error)
	GetTxProposalsByStatus(
		ctx context.Context, walletID string, statuses []string,
	) ([]*TxProposal, error)
	// GetRecentTxProposals returns the proposals created by one copayer of
	// the wallet, sorted by creation time descending, capped at limit.
	GetRecentTxProposals(
		ctx context.Context, walletID, creatorID string, limit int,
	) ([]*TxProposal, error)
	UpdateTxProposal(
		ctx context.Context,
		walletID, txProposalID string,
		updateFn func(txp *TxProposal) (*TxProposal, error),
	) error
	RemoveTxProposal(ctx context.Context, walletID, txProposalID string) error
	DeleteTxProposals(ctx context.Context, walletID string) error
}
