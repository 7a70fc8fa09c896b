// Package horizon implements the ledger ports over the Horizon REST API.
package horizon

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	hProtocol "github.com/stellar/go/protocols/horizon"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/pkg/logger"
)

// Config configures a Client.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to one Horizon instance. It never retries.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

var _ ledger.Client = (*Client)(nil)

// NewClient creates a Horizon client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "openmcp-stellar"
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	return &Client{http: http, log: logger.Named("horizon")}
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.http.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	return r
}

// get performs a GET and maps failures to coded errors.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	var problem problemJSON
	resp, err := c.newRequest(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&problem).
		Get(path)
	if err != nil {
		return errors.Wrap(errors.CodeTransport, err, "GET "+path)
	}
	if resp.IsError() {
		return statusError(resp.StatusCode(), problem, "GET "+path)
	}
	return nil
}

func statusError(status int, problem problemJSON, op string) error {
	detail := problem.Detail
	if detail == "" {
		detail = problem.Title
	}
	if detail == "" {
		detail = fmt.Sprintf("status %d", status)
	}
	opts := []errors.Option{errors.WithMetadata("status", strconv.Itoa(status))}
	switch {
	case status == 404:
		return errors.New(errors.CodeNotFound, op+": "+detail, opts...)
	case status >= 500 || status == 429 || status == 408:
		return errors.New(errors.CodeTransport, op+": "+detail, opts...)
	default:
		return errors.New(errors.CodeInvalidArgument, op+": "+detail, opts...)
	}
}

// Account implements ledger.Reader.
func (c *Client) Account(ctx context.Context, id string) (ledger.Account, error) {
	var raw hProtocol.Account
	if err := c.get(ctx, "/accounts/"+id, nil, &raw); err != nil {
		return ledger.Account{}, err
	}
	seq, err := raw.GetSequenceNumber()
	if err != nil {
		return ledger.Account{}, errors.Wrap(errors.CodeTransport, err, "decode account sequence")
	}
	account := ledger.Account{
		ID:            raw.AccountID,
		Sequence:      seq,
		SubentryCount: raw.SubentryCount,
		Thresholds: ledger.Thresholds{
			Low:    raw.Thresholds.LowThreshold,
			Medium: raw.Thresholds.MedThreshold,
			High:   raw.Thresholds.HighThreshold,
		},
		Flags: ledger.Flags{
			AuthRequired:  raw.Flags.AuthRequired,
			AuthRevocable: raw.Flags.AuthRevocable,
			AuthImmutable: raw.Flags.AuthImmutable,
		},
	}
	for _, b := range raw.Balances {
		if b.Type != asset.TypeNative && b.Code == "" {
			continue
		}
		account.Balances = append(account.Balances, ledger.Balance{
			Asset:   assetOf(b.Type, b.Code, b.Issuer),
			Balance: b.Balance,
			Limit:   b.Limit,
		})
	}
	for _, s := range raw.Signers {
		account.Signers = append(account.Signers, ledger.Signer{Key: s.Key, Weight: s.Weight, Type: s.Type})
	}
	return account, nil
}

func assetParams(params map[string]string, prefix string, a asset.Asset) {
	params[prefix+"_asset_type"] = a.Type()
	if !a.IsNative() {
		params[prefix+"_asset_code"] = a.Code
		params[prefix+"_asset_issuer"] = a.Issuer
	}
}

// OrderBook implements ledger.Reader. Bid amounts are converted from counter
// to base units.
func (c *Client) OrderBook(ctx context.Context, base, counter asset.Asset, limit int) (ledger.OrderBook, error) {
	params := map[string]string{}
	assetParams(params, "selling", base)
	assetParams(params, "buying", counter)
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var raw hProtocol.OrderBookSummary
	if err := c.get(ctx, "/order_book", params, &raw); err != nil {
		return ledger.OrderBook{}, err
	}

	book := ledger.OrderBook{Base: base, Counter: counter}
	for _, ask := range raw.Asks {
		book.Asks = append(book.Asks, ledger.Level{Price: ask.Price, Amount: ask.Amount})
	}
	for _, bid := range raw.Bids {
		level, err := bidInBase(bid)
		if err != nil {
			return ledger.OrderBook{}, errors.Wrap(errors.CodeTransport, err, "decode order book")
		}
		book.Bids = append(book.Bids, level)
	}
	return book, nil
}

func bidInBase(bid hProtocol.PriceLevel) (ledger.Level, error) {
	price, err := decimal.NewFromString(bid.Price)
	if err != nil {
		return ledger.Level{}, err
	}
	amount, err := decimal.NewFromString(bid.Amount)
	if err != nil {
		return ledger.Level{}, err
	}
	if !price.IsPositive() {
		return ledger.Level{}, fmt.Errorf("non-positive bid price %s", bid.Price)
	}
	return ledger.Level{Price: bid.Price, Amount: amount.Div(price).Truncate(7).String()}, nil
}

func offerOf(o hProtocol.Offer) ledger.Offer {
	return ledger.Offer{
		ID:                 o.ID,
		Seller:             o.Seller,
		Selling:            assetOf(o.Selling.Type, o.Selling.Code, o.Selling.Issuer),
		Buying:             assetOf(o.Buying.Type, o.Buying.Code, o.Buying.Issuer),
		Amount:             o.Amount,
		Price:              o.Price,
		LastModifiedLedger: int32(o.LastModifiedLedger),
	}
}

// Offer implements ledger.Reader.
func (c *Client) Offer(ctx context.Context, id int64) (ledger.Offer, error) {
	var raw hProtocol.Offer
	if err := c.get(ctx, "/offers/"+strconv.FormatInt(id, 10), nil, &raw); err != nil {
		return ledger.Offer{}, err
	}
	return offerOf(raw), nil
}

// Offers implements ledger.Reader.
func (c *Client) Offers(ctx context.Context, account string, limit int) ([]ledger.Offer, error) {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var raw hProtocol.OffersPage
	if err := c.get(ctx, "/accounts/"+account+"/offers", params, &raw); err != nil {
		return nil, err
	}
	offers := make([]ledger.Offer, 0, len(raw.Embedded.Records))
	for _, rec := range raw.Embedded.Records {
		offers = append(offers, offerOf(rec))
	}
	return offers, nil
}

// Transactions implements ledger.Reader, newest first.
func (c *Client) Transactions(ctx context.Context, account string, limit int) ([]ledger.TxRecord, error) {
	params := map[string]string{"order": "desc"}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var raw hProtocol.TransactionsPage
	if err := c.get(ctx, "/accounts/"+account+"/transactions", params, &raw); err != nil {
		return nil, err
	}
	records := make([]ledger.TxRecord, 0, len(raw.Embedded.Records))
	for _, rec := range raw.Embedded.Records {
		records = append(records, ledger.TxRecord{
			Hash:           rec.Hash,
			Ledger:         int32(rec.Ledger),
			CreatedAt:      rec.LedgerCloseTime,
			Successful:     rec.Successful,
			OperationCount: int32(rec.OperationCount),
			FeeCharged:     strconv.FormatInt(int64(rec.FeeCharged), 10),
			Memo:           rec.Memo,
		})
	}
	return records, nil
}

// Status implements ledger.Reader.
func (c *Client) Status(ctx context.Context) (ledger.ServerStatus, error) {
	var raw hProtocol.Root
	if err := c.get(ctx, "/", nil, &raw); err != nil {
		return ledger.ServerStatus{}, err
	}
	return ledger.ServerStatus{
		HorizonVersion:      raw.HorizonVersion,
		CoreVersion:         raw.StellarCoreVersion,
		NetworkPassphrase:   raw.NetworkPassphrase,
		HistoryLatestLedger: int32(raw.HorizonSequence),
		CoreLatestLedger:    int32(raw.CoreSequence),
	}, nil
}

// FeeStats implements ledger.Reader.
func (c *Client) FeeStats(ctx context.Context) (ledger.FeeStats, error) {
	var raw hProtocol.FeeStats
	if err := c.get(ctx, "/fee_stats", nil, &raw); err != nil {
		return ledger.FeeStats{}, err
	}
	return ledger.FeeStats{
		LastLedger:        strconv.FormatInt(int64(raw.LastLedger), 10),
		LastLedgerBaseFee: strconv.FormatInt(int64(raw.LastLedgerBaseFee), 10),
		CapacityUsage:     strconv.FormatFloat(float64(raw.LedgerCapacityUsage), 'f', -1, 64),
		FeeChargedMin:     strconv.FormatInt(int64(raw.FeeCharged.Min), 10),
		FeeChargedMax:     strconv.FormatInt(int64(raw.FeeCharged.Max), 10),
		FeeChargedMode:    strconv.FormatInt(int64(raw.FeeCharged.Mode), 10),
		FeeChargedP50:     strconv.FormatInt(int64(raw.FeeCharged.P50), 10),
	}, nil
}

// Submit implements ledger.Submitter. A 400 carrying result codes is a ledger
// rejection; anything that leaves the outcome undetermined is a transport
// error.
func (c *Client) Submit(ctx context.Context, envelopeXDR string) (ledger.SubmitResponse, error) {
	var (
		out     hProtocol.Transaction
		problem problemJSON
	)
	resp, err := c.newRequest(ctx).
		SetFormData(map[string]string{"tx": envelopeXDR}).
		SetResult(&out).
		SetError(&problem).
		Post("/transactions")
	if err != nil {
		return ledger.SubmitResponse{}, errors.Wrap(errors.CodeTransport, err, "submit transaction")
	}
	if resp.IsError() {
		if resp.StatusCode() == 400 && problem.resultCodes() != "" {
			codes := problem.resultCodes()
			c.log.Info("transaction rejected", "result_codes", codes)
			return ledger.SubmitResponse{}, errors.New(errors.CodeLedgerRejected, codes,
				errors.WithMetadata("result_codes", codes),
				errors.WithMetadata("result_xdr", problem.Extras.ResultXDR))
		}
		return ledger.SubmitResponse{}, statusError(resp.StatusCode(), problem, "submit transaction")
	}
	return ledger.SubmitResponse{Hash: out.Hash, Ledger: out.Ledger, ResultXDR: out.ResultXdr}, nil
}
