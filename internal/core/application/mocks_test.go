package application_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bitpay/bws-daemon/pkg/explorer"
)

// **** Explorer ****

type mockExplorer struct {
	mock.Mock
}

func (m *mockExplorer) GetUtxos(
	ctx context.Context, addresses []string,
) ([]explorer.Utxo, error) {
	args := m.Called(ctx, addresses)

	var res []explorer.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransaction(
	ctx context.Context, txid string,
) (*explorer.Tx, error) {
	args := m.Called(ctx, txid)

	var res *explorer.Tx
	if a := args.Get(0); a != nil {
		res = a.(*explorer.Tx)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetAddressActivity(
	ctx context.Context, addresses []string,
) (bool, error) {
	args := m.Called(ctx, addresses)
	return args.Bool(0), args.Error(1)
}

func (m *mockExplorer) EstimateFee(
	ctx context.Context, nbBlocks int,
) (int64, error) {
	args := m.Called(ctx, nbBlocks)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockExplorer) Broadcast(
	ctx context.Context, rawTx string,
) (string, error) {
	args := m.Called(ctx, rawTx)
	return args.String(0), args.Error(1)
}
