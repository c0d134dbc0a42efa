package domain

// Error is a wallet service error carrying a stable machine readable code
// along with a human readable description.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

var (
	// ErrNotAuthorized ...
	ErrNotAuthorized = &Error{"NOT_AUTHORIZED", "copayer identity or request signature verification failed"}
	// ErrWalletNotComplete ...
	ErrWalletNotComplete = &Error{"WALLET_NOT_COMPLETE", "wallet is not complete"}
	// ErrWalletNotFound ...
	ErrWalletNotFound = &Error{"WALLET_NOT_FOUND", "wallet not found"}
	// ErrWalletFull ...
	ErrWalletFull = &Error{"WALLET_FULL", "wallet already has all the required copayers"}
	// ErrWalletAlreadyComplete ...
	ErrWalletAlreadyComplete = ErrWalletFull
	// ErrCopayerInWallet ...
	ErrCopayerInWallet = &Error{"COPAYER_IN_WALLET", "copayer already in this wallet"}
	// ErrCopayerRegistered ...
	ErrCopayerRegistered = &Error{"COPAYER_REGISTERED", "copayer id already registered on this server"}
	// ErrUpgradeNeeded ...
	ErrUpgradeNeeded = &Error{"UPGRADE_NEEDED", "client app needs to be upgraded"}
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = &Error{"INSUFFICIENT_FUNDS", "insufficient funds"}
	// ErrInsufficientFundsForFee ...
	ErrInsufficientFundsForFee = &Error{"INSUFFICIENT_FUNDS_FOR_FEE", "insufficient funds for fee"}
	// ErrLockedFunds ...
	ErrLockedFunds = &Error{"LOCKED_FUNDS", "funds are locked by pending tx proposals"}
	// ErrDustAmount ...
	ErrDustAmount = &Error{"DUST_AMOUNT", "amount below dust threshold"}
	// ErrTxMaxSizeExceeded ...
	ErrTxMaxSizeExceeded = &Error{"TX_MAX_SIZE_EXCEEDED", "tx size would exceed the maximum allowed"}
	// ErrIncorrectAddressNetwork ...
	ErrIncorrectAddressNetwork = &Error{"INCORRECT_ADDRESS_NETWORK", "incorrect address network"}
	// ErrTxNotFound ...
	ErrTxNotFound = &Error{"TX_NOT_FOUND", "tx proposal not found"}
	// ErrTxNotPending ...
	ErrTxNotPending = &Error{"TX_NOT_PENDING", "tx proposal is not pending"}
	// ErrTxCannotCreate ...
	ErrTxCannotCreate = &Error{"TX_CANNOT_CREATE", "cannot create tx proposal during backoff time"}
	// ErrTxCannotRemove ...
	ErrTxCannotRemove = &Error{"TX_CANNOT_REMOVE", "cannot remove this tx proposal during locktime"}
	// ErrCopayerVoted ...
	ErrCopayerVoted = &Error{"COPAYER_VOTED", "copayer already voted on this tx proposal"}
	// ErrBadSignatures ...
	ErrBadSignatures = &Error{"BAD_SIGNATURES", "signatures are invalid"}
	// ErrTxAlreadyBroadcasted ...
	ErrTxAlreadyBroadcasted = &Error{"TX_ALREADY_BROADCASTED", "tx proposal already broadcasted"}
	// ErrTxNotAccepted ...
	ErrTxNotAccepted = &Error{"TX_NOT_ACCEPTED", "tx proposal is not accepted"}
	// ErrUnavailableUtxos ...
	ErrUnavailableUtxos = &Error{"UNAVAILABLE_UTXOS", "unavailable unspent outputs"}
	// ErrMainAddressGapReached ...
	ErrMainAddressGapReached = &Error{"MAIN_ADDRESS_GAP_REACHED", "maximum number of consecutive addresses without activity reached"}
	// ErrHistoryLimitExceeded ...
	ErrHistoryLimitExceeded = &Error{"HISTORY_LIMIT_EXCEEDED", "requested page limit is above the allowed maximum"}
	// ErrInvalidArgument ...
	ErrInvalidArgument = &Error{"INVALID_ARGUMENT", "invalid argument"}
)
