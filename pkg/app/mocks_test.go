package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wBanano/wban-backend/pkg/banano"
	"github.com/wBanano/wban-backend/pkg/bsc"
)

type mockNode struct {
	balanceFn        func(ctx context.Context, account string) (*big.Int, error)
	sendFn           func(ctx context.Context, destination string, amount *big.Int) (string, error)
	receivePendingFn func(ctx context.Context) ([]banano.Deposit, error)
	subscribeFn      func(ctx context.Context) (<-chan banano.Deposit, error)
}

func (m *mockNode) Balance(ctx context.Context, account string) (*big.Int, error) {
	return m.balanceFn(ctx, account)
}

func (m *mockNode) Send(ctx context.Context, destination string, amount *big.Int) (string, error) {
	return m.sendFn(ctx, destination, amount)
}

func (m *mockNode) ReceivePending(ctx context.Context) ([]banano.Deposit, error) {
	return m.receivePendingFn(ctx)
}

func (m *mockNode) Subscribe(ctx context.Context) (<-chan banano.Deposit, error) {
	return m.subscribeFn(ctx)
}

type mockChain struct {
	createMintReceiptFn func(wallet common.Address, amount *big.Int) (bsc.MintReceipt, error)
	mintToFn            func(ctx context.Context, wallet common.Address, amount *big.Int) (string, error)
	burnEventsFn        func(ctx context.Context, fromBlock, toBlock int64) ([]bsc.BurnEvent, error)
	latestBlockFn       func(ctx context.Context) (int64, error)
	nativeBalanceFn     func(ctx context.Context, wallet common.Address) (*big.Int, error)
	sendNativeFn        func(ctx context.Context, wallet common.Address, amount *big.Int) (string, error)
}

func (m *mockChain) CreateMintReceipt(wallet common.Address, amount *big.Int) (bsc.MintReceipt, error) {
	return m.createMintReceiptFn(wallet, amount)
}

func (m *mockChain) MintTo(ctx context.Context, wallet common.Address, amount *big.Int) (string, error) {
	return m.mintToFn(ctx, wallet, amount)
}

func (m *mockChain) BurnEvents(ctx context.Context, fromBlock, toBlock int64) ([]bsc.BurnEvent, error) {
	return m.burnEventsFn(ctx, fromBlock, toBlock)
}

func (m *mockChain) LatestBlock(ctx context.Context) (int64, error) {
	return m.latestBlockFn(ctx)
}

func (m *mockChain) NativeBalance(ctx context.Context, wallet common.Address) (*big.Int, error) {
	return m.nativeBalanceFn(ctx, wallet)
}

func (m *mockChain) SendNative(ctx context.Context, wallet common.Address, amount *big.Int) (string, error) {
	return m.sendNativeFn(ctx, wallet, amount)
}
