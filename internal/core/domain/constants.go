package domain

const (
	// DerivationStrategyBIP44 derives addresses on the m/chain/index
	// branches of the wallet's account-level extended keys.
	DerivationStrategyBIP44 = "BIP44"
	// DerivationStrategyBIP45 derives addresses on the shared cosigner
	// branch m/2147483647/chain/index.
	DerivationStrategyBIP45 = "BIP45"

	// SharedCosignerIndex is the non-hardened cosigner index reserved for
	// addresses shared among all copayers under BIP45.
	SharedCosignerIndex = 0x80000000 - 1

	// MainChainIndex is the derivation branch of receive addresses.
	MainChainIndex = 0
	// ChangeChainIndex is the derivation branch of change addresses.
	ChangeChainIndex = 1
)

const (
	// WalletStatusPending is the status of a wallet still missing copayers.
	WalletStatusPending = "pending"
	// WalletStatusComplete is the status of a wallet all of whose n copayers
	// have joined.
	WalletStatusComplete = "complete"
)

const (
	// TxProposalStatusTemporary is a proposal created but not yet published
	// by its creator. Its input reservation is tentative.
	TxProposalStatusTemporary = "temporary"
	// TxProposalStatusPending is a published proposal awaiting quorum.
	TxProposalStatusPending = "pending"
	// TxProposalStatusAccepted is a proposal that reached the signature
	// quorum and holds a fully signed transaction.
	TxProposalStatusAccepted = "accepted"
	// TxProposalStatusRejected is a proposal that reached the rejection
	// quorum.
	TxProposalStatusRejected = "rejected"
	// TxProposalStatusBroadcasted is an accepted proposal whose transaction
	// has been relayed to the network.
	TxProposalStatusBroadcasted = "broadcasted"
)

const (
	// ActionTypeAccept records a copayer signing a proposal.
	ActionTypeAccept = "accept"
	// ActionTypeReject records a copayer rejecting a proposal.
	ActionTypeReject = "reject"
)

// Notification event types.
const (
	NotificationNewCopayer                = "NewCopayer"
	NotificationWalletComplete            = "WalletComplete"
	NotificationNewAddress                = "NewAddress"
	NotificationNewTxProposal             = "NewTxProposal"
	NotificationTxProposalAcceptedBy      = "TxProposalAcceptedBy"
	NotificationTxProposalFinallyAccepted = "TxProposalFinallyAccepted"
	NotificationTxProposalRejectedBy      = "TxProposalRejectedBy"
	NotificationTxProposalFinallyRejected = "TxProposalFinallyRejected"
	NotificationTxProposalRemoved         = "TxProposalRemoved"
	NotificationNewOutgoingTx             = "NewOutgoingTx"
	NotificationNewOutgoingTxThirdParty   = "NewOutgoingTxByThirdParty"
	NotificationBalanceUpdated            = "BalanceUpdated"
	NotificationScanFinished              = "ScanFinished"
	NotificationNewBlock                  = "NewBlock"
)

const (
	// ScanStatusRunning ...
	ScanStatusRunning = "running"
	// ScanStatusSuccess ...
	ScanStatusSuccess = "success"
	// ScanStatusError ...
	ScanStatusError = "error"
)
