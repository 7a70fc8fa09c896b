package orders

import (
	"context"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
)

type offerStub map[int64]ledger.Offer

func (s offerStub) Offer(_ context.Context, id int64) (ledger.Offer, error) {
	o, ok := s[id]
	if !ok {
		return ledger.Offer{}, errors.New(errors.CodeNotFound, "GET /offers")
	}
	return o, nil
}

var (
	owner = keypair.MustRandom().Address()
	usdc  = asset.Asset{Code: "USDC", Issuer: keypair.MustRandom().Address()}
)

func TestPricedBuyAndSell(t *testing.T) {
	b := NewBuilder(offerStub{})

	op, err := b.Priced(Intent{Direction: Buy, Base: asset.Native, Counter: usdc, Amount: "8", Price: "3.0"})
	require.NoError(t, err)
	require.Equal(t, ledger.ManageBuyOffer{Selling: usdc, Buying: asset.Native, BuyAmount: "8", Price: "3"}, op)

	op, err = b.Priced(Intent{Direction: Sell, Base: asset.Native, Counter: usdc, Amount: "10", Price: "2"})
	require.NoError(t, err)
	require.Equal(t, ledger.ManageSellOffer{Selling: asset.Native, Buying: usdc, Amount: "10", Price: "2"}, op)
}

func TestPricedValidation(t *testing.T) {
	b := NewBuilder(offerStub{})
	cases := []Intent{
		{Direction: Sell, Base: usdc, Counter: usdc, Amount: "1", Price: "1"},
		{Direction: Sell, Base: asset.Native, Counter: usdc, Amount: "0", Price: "1"},
		{Direction: Sell, Base: asset.Native, Counter: usdc, Amount: "-2", Price: "1"},
		{Direction: Sell, Base: asset.Native, Counter: usdc, Amount: "1.00000001", Price: "1"},
		{Direction: Sell, Base: asset.Native, Counter: usdc, Amount: "1", Price: ""},
		{Direction: "hold", Base: asset.Native, Counter: usdc, Amount: "1", Price: "1"},
	}
	for _, intent := range cases {
		_, err := b.Priced(intent)
		require.Error(t, err, "intent %+v", intent)
	}
}

func TestCancelPreservesOffer(t *testing.T) {
	offer := ledger.Offer{ID: 42, Seller: owner, Selling: usdc, Buying: asset.Native, Amount: "15.5", Price: "0.25"}
	b := NewBuilder(offerStub{42: offer})

	op, found, err := b.Cancel(context.Background(), owner, 42)
	require.NoError(t, err)
	require.Equal(t, offer, found)

	cancel, ok := op.(ledger.ManageSellOffer)
	require.True(t, ok)
	require.Equal(t, "0", cancel.Amount)
	require.Equal(t, int64(42), cancel.OfferID)
	require.Equal(t, offer.Selling, cancel.Selling)
	require.Equal(t, offer.Buying, cancel.Buying)
	require.Equal(t, offer.Price, cancel.Price)
}

func TestCancelErrors(t *testing.T) {
	b := NewBuilder(offerStub{7: {ID: 7, Seller: keypair.MustRandom().Address(), Price: "1"}})

	_, _, err := b.Cancel(context.Background(), owner, 99)
	require.Equal(t, errors.CodeOrderNotFound, errors.CodeOf(err))

	_, _, err = b.Cancel(context.Background(), owner, 7)
	require.Equal(t, errors.CodeInvalidOperation, errors.CodeOf(err))

	_, _, err = b.Cancel(context.Background(), owner, 0)
	require.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))
}

func TestTrustlines(t *testing.T) {
	op, err := Trust(usdc, "")
	require.NoError(t, err)
	require.Equal(t, ledger.ChangeTrust{Line: usdc, Limit: ledger.MaxTrustLimit}, op)

	op, err = Trust(usdc, "500")
	require.NoError(t, err)
	require.Equal(t, "500", op.(ledger.ChangeTrust).Limit)

	op, err = Untrust(usdc)
	require.NoError(t, err)
	require.Equal(t, "0", op.(ledger.ChangeTrust).Limit)

	_, err = Untrust(asset.Native)
	require.Equal(t, errors.CodeInvalidOperation, errors.CodeOf(err))
	_, err = Trust(asset.Native, "")
	require.Equal(t, errors.CodeInvalidOperation, errors.CodeOf(err))
}
