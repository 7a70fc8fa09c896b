package ledger

import "OpenMCP-Stellar/internal/asset"

// Operation is a single ledger operation. Implementations are plain values
// and are not changed after construction.
type Operation interface {
	OperationType() string
}

// ManageSellOffer sells Amount of Selling at Price units of Buying each.
// OfferID 0 creates a new offer; Amount "0" deletes the offer OfferID.
type ManageSellOffer struct {
	Selling asset.Asset
	Buying  asset.Asset
	Amount  string
	Price   string
	OfferID int64
}

// OperationType implements Operation.
func (ManageSellOffer) OperationType() string { return "manage_sell_offer" }

// ManageBuyOffer buys BuyAmount of Buying paying Price units of Selling each.
type ManageBuyOffer struct {
	Selling   asset.Asset
	Buying    asset.Asset
	BuyAmount string
	Price     string
	OfferID   int64
}

// OperationType implements Operation.
func (ManageBuyOffer) OperationType() string { return "manage_buy_offer" }

// ChangeTrust creates, updates or (with Limit "0") removes a trustline.
type ChangeTrust struct {
	Line  asset.Asset
	Limit string
}

// OperationType implements Operation.
func (ChangeTrust) OperationType() string { return "change_trust" }
