// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"strconv"
	"sync"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
)

// Ledger implements ledger.Client and ledger.Faucet in memory.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[string]ledger.Account
	books     map[string]ledger.OrderBook
	offers    map[int64]ledger.Offer
	history   map[string][]ledger.TxRecord
	submitted []string
	submitErr error
	ledgerSeq int32
	calls     int

	// ServerStatus and Fees are returned by Status and FeeStats.
	ServerStatus ledger.ServerStatus
	Fees         ledger.FeeStats
}

var (
	_ ledger.Client = (*Ledger)(nil)
	_ ledger.Faucet = (*Ledger)(nil)
)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		accounts:  make(map[string]ledger.Account),
		books:     make(map[string]ledger.OrderBook),
		offers:    make(map[int64]ledger.Offer),
		history:   make(map[string][]ledger.TxRecord),
		ledgerSeq: 1000,
	}
}

func bookKey(base, counter asset.Asset) string { return base.String() + "|" + counter.String() }

// AddAccount registers an account with a native balance.
func (l *Ledger) AddAccount(id, native string, extra ...ledger.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balances := append([]ledger.Balance{{Asset: asset.Native, Balance: native}}, extra...)
	l.accounts[id] = ledger.Account{ID: id, Sequence: 100, Balances: balances,
		Signers: []ledger.Signer{{Key: id, Weight: 1, Type: "ed25519_public_key"}}}
}

// SetBook installs an order book.
func (l *Ledger) SetBook(book ledger.OrderBook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books[bookKey(book.Base, book.Counter)] = book
}

// AddOffer registers a resting offer.
func (l *Ledger) AddOffer(o ledger.Offer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offers[o.ID] = o
}

// AddHistory appends transaction records for account.
func (l *Ledger) AddHistory(account string, records ...ledger.TxRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[account] = append(l.history[account], records...)
}

// FailSubmissions makes every following Submit return err.
func (l *Ledger) FailSubmissions(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// Submitted returns the envelopes received so far.
func (l *Ledger) Submitted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.submitted...)
}

// Calls returns the number of requests served.
func (l *Ledger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Account implements ledger.Reader.
func (l *Ledger) Account(_ context.Context, id string) (ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	a, ok := l.accounts[id]
	if !ok {
		return ledger.Account{}, errors.New(errors.CodeNotFound, "GET /accounts/"+id+": Resource Missing")
	}
	return a, nil
}

// OrderBook implements ledger.Reader.
func (l *Ledger) OrderBook(_ context.Context, base, counter asset.Asset, _ int) (ledger.OrderBook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	book, ok := l.books[bookKey(base, counter)]
	if !ok {
		return ledger.OrderBook{Base: base, Counter: counter}, nil
	}
	return book, nil
}

// Offer implements ledger.Reader.
func (l *Ledger) Offer(_ context.Context, id int64) (ledger.Offer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	o, ok := l.offers[id]
	if !ok {
		return ledger.Offer{}, errors.New(errors.CodeNotFound, "GET /offers/"+strconv.FormatInt(id, 10))
	}
	return o, nil
}

// Offers implements ledger.Reader.
func (l *Ledger) Offers(_ context.Context, account string, limit int) ([]ledger.Offer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	var out []ledger.Offer
	for _, o := range l.offers {
		if o.Seller == account {
			out = append(out, o)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transactions implements ledger.Reader.
func (l *Ledger) Transactions(_ context.Context, account string, limit int) ([]ledger.TxRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	records := l.history[account]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return append([]ledger.TxRecord(nil), records...), nil
}

// Status implements ledger.Reader.
func (l *Ledger) Status(context.Context) (ledger.ServerStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.ServerStatus, nil
}

// FeeStats implements ledger.Reader.
func (l *Ledger) FeeStats(context.Context) (ledger.FeeStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.Fees, nil
}

// Submit implements ledger.Submitter.
func (l *Ledger) Submit(_ context.Context, envelopeXDR string) (ledger.SubmitResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.submitErr != nil {
		return ledger.SubmitResponse{}, l.submitErr
	}
	l.submitted = append(l.submitted, envelopeXDR)
	l.ledgerSeq++
	return ledger.SubmitResponse{Ledger: l.ledgerSeq}, nil
}

// Fund implements ledger.Faucet.
func (l *Ledger) Fund(_ context.Context, identity string) error {
	l.mu.Lock()
	_, exists := l.accounts[identity]
	l.calls++
	l.mu.Unlock()
	if exists {
		return errors.New(errors.CodeInvalidOperation, "friendbot refused funding: createAccountAlreadyExist")
	}
	l.AddAccount(identity, "10000.0000000")
	return nil
}
