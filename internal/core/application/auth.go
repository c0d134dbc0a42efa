package application

import (
	"context"

	"github.com/bitpay/bws-daemon/internal/core/domain"
	"github.com/bitpay/bws-daemon/pkg/wallet"
)

// authorizer resolves the calling copayer to its wallet and verifies the
// request signature against the copayer's registered request keys.
type authorizer struct {
	walletRepo domain.WalletRepository
}

func (a *authorizer) authorize(
	ctx context.Context, creds Credentials,
) (*domain.Wallet, *domain.Copayer, error) {
	walletID, err := a.walletRepo.GetWalletIDForCopayer(ctx, creds.CopayerID)
	if err != nil {
		return nil, nil, domain.ErrNotAuthorized
	}
	w, err := a.walletRepo.GetWallet(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	copayer := w.GetCopayer(creds.CopayerID)
	if copayer == nil {
		return nil, nil, domain.ErrNotAuthorized
	}
	if len(creds.Signature) <= 0 {
		return nil, nil, ErrMissingRequestSignature
	}
	if !wallet.VerifyMessageAgainstKeys(
		creds.Message, creds.Signature, copayer.RequestPubKeys,
	) {
		return nil, nil, domain.ErrNotAuthorized
	}
	return w, copayer, nil
}
