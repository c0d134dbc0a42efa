package application

import "errors"

var (
	// ErrMissingRequestSignature ...
	ErrMissingRequestSignature = errors.New("request signature is required")
	// ErrFeeAndFeePerKb is returned when a create request carries both an
	// absolute fee and a rate.
	ErrFeeAndFeePerKb = errors.New("fee and feePerKb must not both be provided")
	// ErrUnknownFeeLevel ...
	ErrUnknownFeeLevel = errors.New("unknown fee level")
	// ErrScanInProgress ...
	ErrScanInProgress = errors.New("address scan already in progress")
)
