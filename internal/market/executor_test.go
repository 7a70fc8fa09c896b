package market

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/orders"
)

type bookStub struct {
	book  ledger.OrderBook
	calls int
}

func (b *bookStub) OrderBook(_ context.Context, base, counter asset.Asset, limit int) (ledger.OrderBook, error) {
	b.calls++
	return b.book, nil
}

var usdc = asset.Asset{Code: "USDC", Issuer: keypair.MustRandom().Address()}

func asks(levels ...ledger.Level) *bookStub {
	return &bookStub{book: ledger.OrderBook{Asks: levels}}
}

func TestWalk(t *testing.T) {
	twoLevels := []ledger.Level{{Price: "2", Amount: "5"}, {Price: "3", Amount: "5"}}
	tests := []struct {
		name      string
		levels    []ledger.Level
		direction orders.Direction
		amount    string
		price     string
		filled    string
		exhausted bool
	}{
		{name: "covered by two levels", levels: twoLevels, direction: orders.Buy, amount: "8", price: "3", filled: "8"},
		{name: "book exhausted", levels: twoLevels, direction: orders.Buy, amount: "12", price: "3", filled: "10", exhausted: true},
		{name: "first level only", levels: twoLevels, direction: orders.Buy, amount: "4", price: "2", filled: "4"},
		{name: "exact boundary", levels: twoLevels, direction: orders.Buy, amount: "5", price: "2", filled: "5"},
		{name: "unsorted asks", levels: []ledger.Level{{Price: "3", Amount: "5"}, {Price: "2", Amount: "5"}}, direction: orders.Buy, amount: "6", price: "3", filled: "6"},
		{name: "sell walks bids downward", levels: []ledger.Level{{Price: "1.5", Amount: "2"}, {Price: "1.9", Amount: "1"}}, direction: orders.Sell, amount: "2", price: "1.5", filled: "2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fill, err := Walk(tc.levels, tc.direction, decimal.RequireFromString(tc.amount), nil)
			require.NoError(t, err)
			require.Equal(t, tc.price, fill.Price)
			require.Equal(t, tc.filled, fill.Filled)
			require.Equal(t, tc.exhausted, fill.Exhausted)
		})
	}
}

func TestWalkAveragePrice(t *testing.T) {
	fill, err := Walk([]ledger.Level{{Price: "2", Amount: "5"}, {Price: "3", Amount: "5"}}, orders.Buy, decimal.NewFromInt(8), nil)
	require.NoError(t, err)
	// (5*2 + 3*3) / 8
	require.Equal(t, "2.375", fill.AveragePrice)
	require.Equal(t, 2, fill.Levels)
}

func TestWalkEmptySide(t *testing.T) {
	_, err := Walk(nil, orders.Buy, decimal.NewFromInt(1), nil)
	require.Equal(t, errors.CodeInsufficientLiquidity, errors.CodeOf(err))
}

func TestWalkRespectsBound(t *testing.T) {
	levels := []ledger.Level{{Price: "2", Amount: "5"}, {Price: "3", Amount: "5"}}
	bound := decimal.RequireFromString("2.5")
	fill, err := Walk(levels, orders.Buy, decimal.NewFromInt(8), &bound)
	require.NoError(t, err)
	require.Equal(t, "5", fill.Filled)
	require.True(t, fill.Exhausted)

	tight := decimal.RequireFromString("1")
	_, err = Walk(levels, orders.Buy, decimal.NewFromInt(1), &tight)
	require.Equal(t, errors.CodeInsufficientLiquidity, errors.CodeOf(err))
}

func TestPriceReturnsFilledIntent(t *testing.T) {
	books := asks(ledger.Level{Price: "2", Amount: "5"}, ledger.Level{Price: "3", Amount: "5"})
	exec := NewExecutor(books, 0)

	priced, fill, err := exec.Price(context.Background(), orders.Intent{
		Direction: orders.Buy, Kind: orders.Market, Base: asset.Native, Counter: usdc, Amount: "12",
	})
	require.NoError(t, err)
	require.True(t, fill.Exhausted)
	require.Equal(t, "10", priced.Amount)
	require.Equal(t, "3", priced.Price)
	require.Equal(t, 1, books.calls)
}

func TestPriceValidatesBeforeReading(t *testing.T) {
	books := asks()
	exec := NewExecutor(books, 5)

	_, _, err := exec.Price(context.Background(), orders.Intent{Direction: orders.Sell, Amount: "0"})
	require.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))
	require.Zero(t, books.calls)

	_, _, err = exec.Price(context.Background(), orders.Intent{Direction: orders.Sell, Amount: "1", Base: asset.Native, Counter: usdc})
	require.Equal(t, errors.CodeInsufficientLiquidity, errors.CodeOf(err))
}
