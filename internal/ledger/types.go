package ledger

import (
	"time"

	"OpenMCP-Stellar/internal/asset"
)

// MaxTrustLimit is the largest limit a trustline can carry.
const MaxTrustLimit = "922337203685.4775807"

// Balance is one line of an account's balances.
type Balance struct {
	Asset   asset.Asset `json:"-"`
	Balance string      `json:"balance"`
	Limit   string      `json:"limit,omitempty"`
}

// Signer is an account signer.
type Signer struct {
	Key    string `json:"key"`
	Weight int32  `json:"weight"`
	Type   string `json:"type"`
}

// Thresholds are the account's operation thresholds.
type Thresholds struct {
	Low    byte `json:"low_threshold"`
	Medium byte `json:"med_threshold"`
	High   byte `json:"high_threshold"`
}

// Flags are the account's authorization flags.
type Flags struct {
	AuthRequired  bool `json:"auth_required"`
	AuthRevocable bool `json:"auth_revocable"`
	AuthImmutable bool `json:"auth_immutable"`
}

// Account is the ledger state of an account.
type Account struct {
	ID            string
	Sequence      int64
	SubentryCount int32
	Balances      []Balance
	Signers       []Signer
	Thresholds    Thresholds
	Flags         Flags
}

// NativeBalance returns the native balance, or "0" when absent.
func (a Account) NativeBalance() string {
	for _, b := range a.Balances {
		if b.Asset.IsNative() {
			return b.Balance
		}
	}
	return "0"
}

// Level is one price level of an order book. Amount is always expressed in
// base asset units.
type Level struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderBook is a snapshot of both sides of a pair. Bids are ordered best
// (highest) first and asks best (lowest) first.
type OrderBook struct {
	Base    asset.Asset
	Counter asset.Asset
	Bids    []Level
	Asks    []Level
}

// Offer is a resting offer.
type Offer struct {
	ID                 int64
	Seller             string
	Selling            asset.Asset
	Buying             asset.Asset
	Amount             string
	Price              string
	LastModifiedLedger int32
}

// TxRecord is a historical transaction summary.
type TxRecord struct {
	Hash           string    `json:"hash"`
	Ledger         int32     `json:"ledger"`
	CreatedAt      time.Time `json:"created_at"`
	Successful     bool      `json:"successful"`
	OperationCount int32     `json:"operation_count"`
	FeeCharged     string    `json:"fee_charged"`
	Memo           string    `json:"memo,omitempty"`
}

// ServerStatus describes the connected ledger endpoint.
type ServerStatus struct {
	HorizonVersion      string `json:"horizon_version"`
	CoreVersion         string `json:"core_version"`
	NetworkPassphrase   string `json:"network_passphrase"`
	HistoryLatestLedger int32  `json:"history_latest_ledger"`
	CoreLatestLedger    int32  `json:"core_latest_ledger"`
}

// FeeStats summarises recent fees, in stroops.
type FeeStats struct {
	LastLedger        string `json:"last_ledger"`
	LastLedgerBaseFee string `json:"last_ledger_base_fee"`
	CapacityUsage     string `json:"ledger_capacity_usage"`
	FeeChargedMin     string `json:"fee_charged_min"`
	FeeChargedMax     string `json:"fee_charged_max"`
	FeeChargedMode    string `json:"fee_charged_mode"`
	FeeChargedP50     string `json:"fee_charged_p50"`
}

// SubmitResponse is the ledger's acceptance record.
type SubmitResponse struct {
	Hash      string
	Ledger    int32
	ResultXDR string
}

// Envelope is an encoded transaction envelope and its hash.
type Envelope struct {
	XDR  string `json:"envelope_xdr"`
	Hash string `json:"hash"`
}
