package rebalancer

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/banano"
)

const (
	hotWallet  = "ban_1hot111111111111111111111111111111111111111111111111111111z"
	coldWallet = "ban_1cold11111111111111111111111111111111111111111111111111111z"
)

type mockNode struct {
	balance *big.Int
	sends   []*big.Int
	sendTo  []string
}

func (m *mockNode) Balance(context.Context, string) (*big.Int, error) {
	return m.balance, nil
}
func (m *mockNode) Send(_ context.Context, destination string, amount *big.Int) (string, error) {
	m.sends = append(m.sends, amount)
	m.sendTo = append(m.sendTo, destination)
	return "COLDHASH", nil
}
func (m *mockNode) ReceivePending(context.Context) ([]banano.Deposit, error) {
	panic("not used")
}
func (m *mockNode) Subscribe(context.Context) (<-chan banano.Deposit, error) {
	panic("not used")
}

func newRebalancer(node banano.Client) *Rebalancer {
	return New(node, Config{
		HotWalletMinimum: decimal.NewFromInt(10),
		ColdRatio:        20,
		HotWallet:        hotWallet,
		ColdWallet:       coldWallet,
	}, zap.NewNop())
}

func TestAmountToCold(t *testing.T) {
	r := newRebalancer(&mockNode{})
	cases := []struct {
		hotBefore string
		deposit   string
		expected  string
	}{
		{"10", "10", "8"},
		{"5", "12", "5.6"},
		{"0", "11", "0.8"},
		{"0", "5", "0"},
		{"9", "1", "0"},
		{"100", "10", "8"},
		// fractional excess floors to a whole unit before the split
		{"0.5", "11", "0.8"},
		{"10", "0.9", "0"},
		{"10.25", "3.5", "2.4"},
	}
	for _, c := range cases {
		got := r.AmountToCold(decimal.RequireFromString(c.hotBefore), decimal.RequireFromString(c.deposit))
		assert.True(t, decimal.RequireFromString(c.expected).Equal(got),
			"hot=%s deposit=%s: expected %s, got %s", c.hotBefore, c.deposit, c.expected, got)
	}
}

func TestAfterDepositMovesOverflowToCold(t *testing.T) {
	// hot wallet holds 20 BAN right after a 10 BAN deposit
	hotNow, err := banano.ToRaw(decimal.NewFromInt(20))
	require.NoError(t, err)
	node := &mockNode{balance: hotNow}
	r := newRebalancer(node)

	deposit, err := banano.ToRaw(decimal.NewFromInt(10))
	require.NoError(t, err)
	moved, err := r.AfterDeposit(context.Background(), deposit)
	require.NoError(t, err)

	expected, err := banano.ToRaw(decimal.NewFromInt(8))
	require.NoError(t, err)
	assert.Equal(t, expected, moved)
	require.Len(t, node.sends, 1)
	assert.Equal(t, expected, node.sends[0])
	assert.Equal(t, coldWallet, node.sendTo[0])
}

func TestAfterDepositKeepsSmallDepositsHot(t *testing.T) {
	// 5 BAN deposit into an empty hot wallet stays under the floor
	hotNow, err := banano.ToRaw(decimal.NewFromInt(5))
	require.NoError(t, err)
	node := &mockNode{balance: hotNow}
	r := newRebalancer(node)

	moved, err := r.AfterDeposit(context.Background(), hotNow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), moved.Int64())
	assert.Empty(t, node.sends)
}
