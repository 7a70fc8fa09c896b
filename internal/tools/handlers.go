package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"OpenMCP-Stellar/internal/accounts"
	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/ledger/txcodec"
	"OpenMCP-Stellar/internal/market"
	"OpenMCP-Stellar/internal/pipeline"
	"OpenMCP-Stellar/internal/trading"
)

// Tool names.
const (
	AccountManager   = "account_manager"
	Trading          = "trading"
	TrustlineManager = "trustline_manager"
	MarketData       = "market_data"
	Utilities        = "utilities"
)

const (
	defaultBookDepth = 20
	maxBookDepth     = 200
	defaultJournal   = 20
)

// NetworkReader reports on the connected network.
type NetworkReader interface {
	Status(ctx context.Context) (ledger.ServerStatus, error)
	FeeStats(ctx context.Context) (ledger.FeeStats, error)
}

// Signer is the manual sign and submit path of the pipeline.
type Signer interface {
	Sign(identity, envelopeXDR string) (ledger.Envelope, error)
	Submit(ctx context.Context, source, action, envelopeXDR string) pipeline.Result
}

// Deps are the services the tools call into.
type Deps struct {
	NetworkName string
	Accounts    *accounts.Manager
	Trading     *trading.Service
	Trustlines  *trading.TrustlineManager
	Books       market.BookReader
	Network     NetworkReader
	Signer      Signer
	Journal     journal.Store
}

// New builds the registry with all five tools.
func New(d Deps) *Registry {
	r := NewRegistry()
	r.Register(AccountManager,
		"Manage custodial accounts: create, fund (testnet), get, transactions, list, export, import.",
		accountManagerSchema, d.accountManager)
	r.Register(Trading,
		"Place limit or market orders, cancel an offer, or list open offers on the DEX.",
		tradingSchema, d.trading)
	r.Register(TrustlineManager,
		"Establish or remove a trustline for an issued asset.",
		trustlineSchema, d.trustline)
	r.Register(MarketData,
		"Read the order book of an asset pair.",
		marketDataSchema, d.marketData)
	r.Register(Utilities,
		"Network status, fee statistics, manual sign and submit, and the submission journal.",
		utilitiesSchema, d.utilities)
	return r
}

// outcome turns a pipeline result that did not succeed into an error.
func outcome(r *pipeline.Result) error {
	if r == nil || r.Success {
		return nil
	}
	return errors.New(r.Code, r.Detail,
		errors.WithMetadata("status", string(r.Status)),
		errors.WithMetadata("hash", r.Hash))
}

func (d Deps) accountManager(ctx context.Context, args json.RawMessage) (any, error) {
	var req accounts.Request
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	resp, err := d.Accounts.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (d Deps) trading(ctx context.Context, args json.RawMessage) (any, error) {
	var req trading.Request
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	resp, err := d.Trading.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, outcome(resp.Result)
}

func (d Deps) trustline(ctx context.Context, args json.RawMessage) (any, error) {
	var req trading.TrustRequest
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	resp, err := d.Trustlines.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, outcome(resp.Result)
}

// BookView is the order book as returned to callers.
type BookView struct {
	Base    string         `json:"base"`
	Counter string         `json:"counter"`
	Bids    []ledger.Level `json:"bids"`
	Asks    []ledger.Level `json:"asks"`
	BestBid string         `json:"best_bid,omitempty"`
	BestAsk string         `json:"best_ask,omitempty"`
	Spread  string         `json:"spread,omitempty"`
}

func viewOfBook(book ledger.OrderBook) BookView {
	view := BookView{
		Base:    book.Base.String(),
		Counter: book.Counter.String(),
		Bids:    book.Bids,
		Asks:    book.Asks,
	}
	if view.Bids == nil {
		view.Bids = []ledger.Level{}
	}
	if view.Asks == nil {
		view.Asks = []ledger.Level{}
	}
	if len(book.Bids) > 0 {
		view.BestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		view.BestAsk = book.Asks[0].Price
	}
	if view.BestBid != "" && view.BestAsk != "" {
		bid, errBid := decimal.NewFromString(view.BestBid)
		ask, errAsk := decimal.NewFromString(view.BestAsk)
		if errBid == nil && errAsk == nil {
			view.Spread = ask.Sub(bid).String()
		}
	}
	return view
}

func (d Deps) marketData(ctx context.Context, args json.RawMessage) (any, error) {
	var req struct {
		Action  string     `json:"action"`
		Base    asset.Spec `json:"base_asset"`
		Counter asset.Spec `json:"counter_asset"`
		Limit   int        `json:"limit"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	if action := strings.ToLower(strings.TrimSpace(req.Action)); action != "orderbook" && action != "order_book" {
		return nil, errors.New(errors.CodeUnsupportedAction, "unsupported market data action "+req.Action)
	}
	base, err := asset.Resolve(req.Base)
	if err != nil {
		return nil, err
	}
	counter, err := asset.Resolve(req.Counter)
	if err != nil {
		return nil, err
	}
	if base.Equal(counter) {
		return nil, errors.New(errors.CodeInvalidOperation, "base and counter assets must differ")
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultBookDepth
	case limit > maxBookDepth:
		limit = maxBookDepth
	}
	book, err := d.Books.OrderBook(ctx, base, counter, limit)
	if err != nil {
		return nil, err
	}
	return viewOfBook(book), nil
}

type utilitiesRequest struct {
	Action  string `json:"action"`
	Account string `json:"account_id"`
	XDR     string `json:"xdr"`
	Submit  bool   `json:"submit"`
	Limit   int    `json:"limit"`
}

func (d Deps) utilities(ctx context.Context, args json.RawMessage) (any, error) {
	var req utilitiesRequest
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "status":
		status, err := d.Network.Status(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"network": d.NetworkName, "status": status}, nil
	case "fee", "fees":
		fees, err := d.Network.FeeStats(ctx)
		if err != nil {
			return nil, err
		}
		return fees, nil
	case "sign":
		return d.sign(ctx, req)
	case "submit":
		if strings.TrimSpace(req.XDR) == "" {
			return nil, errors.New(errors.CodeInvalidArgument, "xdr is required")
		}
		source, err := txcodec.SourceOf(req.XDR)
		if err != nil {
			return nil, err
		}
		result := d.Signer.Submit(ctx, source, "submit", req.XDR)
		return result, outcome(&result)
	case "submissions":
		limit := req.Limit
		if limit <= 0 {
			limit = defaultJournal
		}
		entries, err := d.Journal.Latest(ctx, req.Account, limit)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		return map[string]any{"submissions": entries}, nil
	default:
		return nil, errors.New(errors.CodeUnsupportedAction, "unsupported utilities action "+req.Action)
	}
}

func (d Deps) sign(ctx context.Context, req utilitiesRequest) (any, error) {
	if err := trading.ValidateAccount(req.Account); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.XDR) == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "xdr is required")
	}
	signed, err := d.Signer.Sign(req.Account, req.XDR)
	if err != nil {
		return nil, err
	}
	if !req.Submit {
		return map[string]string{"signed_xdr": signed.XDR, "hash": signed.Hash}, nil
	}
	result := d.Signer.Submit(ctx, req.Account, "sign_submit", signed.XDR)
	return result, outcome(&result)
}
