// Package orders translates trading intents into ledger operations.
package orders

import (
	"context"
	"strconv"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
)

// Direction is the side of the base asset an order takes.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Kind distinguishes priced orders from book-priced ones.
type Kind string

const (
	Limit  Kind = "limit"
	Market Kind = "market"
)

// Intent is a caller's trading request. Amount is in base units and Price is
// counter units per base unit.
type Intent struct {
	Account   string
	Direction Direction
	Kind      Kind
	Base      asset.Asset
	Counter   asset.Asset
	Amount    string
	Price     string
}

// OfferReader looks up resting offers.
type OfferReader interface {
	Offer(ctx context.Context, id int64) (ledger.Offer, error)
}

// Builder constructs operations. Only Cancel performs I/O.
type Builder struct {
	offers OfferReader
}

// NewBuilder creates a Builder.
func NewBuilder(offers OfferReader) *Builder {
	return &Builder{offers: offers}
}

// Priced builds the operation for an intent whose price is known. Buys become
// ManageBuyOffer spending counter, sells ManageSellOffer spending base.
func (b *Builder) Priced(intent Intent) (ledger.Operation, error) {
	if intent.Base.Equal(intent.Counter) {
		return nil, errors.New(errors.CodeInvalidOperation, "base and counter assets must differ")
	}
	amount, err := ParsePositive("amount", intent.Amount)
	if err != nil {
		return nil, err
	}
	price, err := ParsePositive("price", intent.Price)
	if err != nil {
		return nil, err
	}

	switch intent.Direction {
	case Buy:
		return ledger.ManageBuyOffer{
			Selling:   intent.Counter,
			Buying:    intent.Base,
			BuyAmount: Format(amount),
			Price:     Format(price),
		}, nil
	case Sell:
		return ledger.ManageSellOffer{
			Selling: intent.Base,
			Buying:  intent.Counter,
			Amount:  Format(amount),
			Price:   Format(price),
		}, nil
	default:
		return nil, errors.New(errors.CodeInvalidArgument, "direction must be buy or sell")
	}
}

// Cancel looks up offerID and builds its zero-amount replacement, keeping the
// offer's assets and price. The offer must belong to account.
func (b *Builder) Cancel(ctx context.Context, account string, offerID int64) (ledger.Operation, ledger.Offer, error) {
	if offerID <= 0 {
		return nil, ledger.Offer{}, errors.New(errors.CodeInvalidArgument, "offer_id must be a positive integer")
	}
	id := strconv.FormatInt(offerID, 10)
	offer, err := b.offers.Offer(ctx, offerID)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return nil, ledger.Offer{}, errors.Wrap(errors.CodeOrderNotFound, err, "offer "+id+" not found",
				errors.WithMetadata("offer_id", id))
		}
		return nil, ledger.Offer{}, err
	}
	if offer.Seller != account {
		return nil, ledger.Offer{}, errors.New(errors.CodeInvalidOperation, "offer "+id+" belongs to another account",
			errors.WithMetadata("offer_id", id), errors.WithMetadata("seller", offer.Seller))
	}
	return ledger.ManageSellOffer{
		Selling: offer.Selling,
		Buying:  offer.Buying,
		Amount:  "0",
		Price:   offer.Price,
		OfferID: offer.ID,
	}, offer, nil
}

// Trust builds a trustline for line. An empty limit means the maximum.
func Trust(line asset.Asset, limit string) (ledger.Operation, error) {
	if line.IsNative() {
		return nil, errors.New(errors.CodeInvalidOperation, "the native asset needs no trustline")
	}
	if limit == "" {
		limit = ledger.MaxTrustLimit
	} else if _, err := ParsePositive("limit", limit); err != nil {
		return nil, err
	}
	return ledger.ChangeTrust{Line: line, Limit: limit}, nil
}

// Untrust builds the removal of the trustline for line.
func Untrust(line asset.Asset) (ledger.Operation, error) {
	if line.IsNative() {
		return nil, errors.New(errors.CodeInvalidOperation, "the native asset has no trustline to remove")
	}
	return ledger.ChangeTrust{Line: line, Limit: "0"}, nil
}
