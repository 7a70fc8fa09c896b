package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/accounts"
	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/ledger/ledgertest"
	"OpenMCP-Stellar/internal/ledger/txcodec"
	"OpenMCP-Stellar/internal/market"
	"OpenMCP-Stellar/internal/orders"
	"OpenMCP-Stellar/internal/pipeline"
	"OpenMCP-Stellar/internal/trading"
	"OpenMCP-Stellar/internal/vault"
)

type harness struct {
	registry *Registry
	vault    *vault.Vault
	ledger   *ledgertest.Ledger
	journal  *journal.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	v, err := vault.New()
	require.NoError(t, err)
	l := ledgertest.New()
	store := journal.NewMemoryStore(0)
	codec := txcodec.New(txcodec.Config{Passphrase: network.TestNetworkPassphrase, BaseFee: 100, TimeoutSeconds: 300})
	p := pipeline.New(v, l, codec, l, pipeline.WithJournal(store))
	return &harness{
		registry: New(Deps{
			NetworkName: "testnet",
			Accounts:    accounts.NewManager(v, l, l),
			Trading:     trading.NewService(p, orders.NewBuilder(l), market.NewExecutor(l, 20), l),
			Trustlines:  trading.NewTrustlineManager(p),
			Books:       l,
			Network:     l,
			Signer:      p,
			Journal:     store,
		}),
		vault:   v,
		ledger:  l,
		journal: store,
	}
}

func (h *harness) call(t *testing.T, tool string, args any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return h.registry.Call(context.Background(), tool, raw)
}

func TestListDescribesFiveTools(t *testing.T) {
	h := newHarness(t)
	descs := h.registry.List()
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(d.InputSchema, &schema), d.Name)
		require.Equal(t, "object", schema["type"])
	}
	require.Equal(t, []string{AccountManager, MarketData, Trading, TrustlineManager, Utilities}, names)
}

func TestAccountThenTradeFlow(t *testing.T) {
	h := newHarness(t)

	created := h.call(t, AccountManager, map[string]any{"action": "create"})
	require.True(t, created.Success)
	id := created.Data.(accounts.Response).AccountID

	funded := h.call(t, AccountManager, map[string]any{"action": "fund", "account_id": id})
	require.True(t, funded.Success, "%+v", funded.Error)

	issuer := keypair.MustRandom().Address()
	trade := h.call(t, Trading, map[string]any{
		"action":        "sell",
		"account_id":    id,
		"base_asset":    map[string]string{"type": "native"},
		"counter_asset": map[string]string{"type": "credit_alphanum4", "code": "USDC", "issuer": issuer},
		"amount":        "10",
		"price":         "2",
	})
	require.True(t, trade.Success, "%+v", trade.Error)
	require.Equal(t, "sell", trade.Action)
	resp := trade.Data.(trading.Response)
	require.Equal(t, pipeline.StatusAccepted, resp.Result.Status)

	journalled := h.call(t, Utilities, map[string]any{"action": "submissions", "account_id": id})
	require.True(t, journalled.Success)
	entries := journalled.Data.(map[string]any)["submissions"].([]journal.Entry)
	require.Len(t, entries, 1)
}

func TestFailedSubmissionCarriesPayloadAndError(t *testing.T) {
	h := newHarness(t)
	id, err := h.vault.Create()
	require.NoError(t, err)
	h.ledger.AddAccount(id, "100")
	h.ledger.FailSubmissions(errors.New(errors.CodeLedgerRejected, "tx_failed: op_underfunded"))

	res := h.call(t, Trading, map[string]any{
		"action":        "limit_buy",
		"account_id":    id,
		"base_asset":    map[string]string{"code": "USDC", "issuer": keypair.MustRandom().Address()},
		"amount":        "1",
		"price":         "1",
	})
	require.False(t, res.Success)
	require.NotNil(t, res.Data)
	require.Equal(t, errors.CodeLedgerRejected, res.Error.Code)
	require.Equal(t, "tx_failed: op_underfunded", res.Error.Message)
	require.Equal(t, "rejected", res.Error.Metadata["status"])
}

func TestErrorPayloads(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, Trading, map[string]any{"action": "swap", "account_id": keypair.MustRandom().Address()})
	require.False(t, res.Success)
	require.Equal(t, errors.CodeUnsupportedAction, res.Error.Code)

	res = h.registry.Call(context.Background(), Trading, json.RawMessage(`{"action": 5}`))
	require.Equal(t, errors.CodeInvalidArgument, res.Error.Code)

	res = h.call(t, "nope", map[string]any{})
	require.Equal(t, errors.CodeNotFound, res.Error.Code)

	res = h.call(t, TrustlineManager, map[string]any{
		"action": "remove", "account_id": keypair.MustRandom().Address(), "asset": map[string]string{"type": "native"},
	})
	require.Equal(t, errors.CodeInvalidOperation, res.Error.Code)
	require.Zero(t, h.ledger.Calls())
}

func TestPanicIsRecovered(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", "panics", `{"type":"object"}`, func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	})

	res := r.Call(context.Background(), "boom", nil)
	require.False(t, res.Success)
	require.Equal(t, errors.CodeUnknown, res.Error.Code)
	require.Contains(t, res.Error.Message, "kaboom")
}

func TestMarketDataOrderBook(t *testing.T) {
	h := newHarness(t)
	usdc := asset.Asset{Code: "USDC", Issuer: keypair.MustRandom().Address()}
	h.ledger.SetBook(ledger.OrderBook{
		Base:    usdc,
		Counter: asset.Native,
		Bids:    []ledger.Level{{Price: "1.9", Amount: "4"}},
		Asks:    []ledger.Level{{Price: "2.1", Amount: "3"}},
	})

	res := h.call(t, MarketData, map[string]any{
		"action":     "orderbook",
		"base_asset": map[string]string{"code": "USDC", "issuer": usdc.Issuer},
	})
	require.True(t, res.Success, "%+v", res.Error)
	view := res.Data.(BookView)
	require.Equal(t, "1.9", view.BestBid)
	require.Equal(t, "2.1", view.BestAsk)
	require.Equal(t, "0.2", view.Spread)
	require.Equal(t, "native", view.Counter)
}

func TestUtilitiesStatusFeeAndManualSign(t *testing.T) {
	h := newHarness(t)
	h.ledger.ServerStatus = ledger.ServerStatus{HorizonVersion: "2.30.0", CoreLatestLedger: 77}
	h.ledger.Fees = ledger.FeeStats{LastLedgerBaseFee: "100"}

	status := h.call(t, Utilities, map[string]any{"action": "status"})
	require.True(t, status.Success)
	require.Equal(t, "testnet", status.Data.(map[string]any)["network"])

	fee := h.call(t, Utilities, map[string]any{"action": "fee"})
	require.Equal(t, "100", fee.Data.(ledger.FeeStats).LastLedgerBaseFee)

	id, err := h.vault.Create()
	require.NoError(t, err)
	h.ledger.AddAccount(id, "100")
	built := h.call(t, TrustlineManager, map[string]any{
		"action":     "establish",
		"account_id": id,
		"asset":      map[string]string{"code": "EURT", "issuer": keypair.MustRandom().Address()},
		"auto_sign":  false,
	})
	require.True(t, built.Success, "%+v", built.Error)
	unsigned := built.Data.(trading.TrustResponse).Result.EnvelopeXDR
	require.Empty(t, h.ledger.Submitted())

	signed := h.call(t, Utilities, map[string]any{"action": "sign", "account_id": id, "xdr": unsigned})
	require.True(t, signed.Success, "%+v", signed.Error)
	signedXDR := signed.Data.(map[string]string)["signed_xdr"]

	submitted := h.call(t, Utilities, map[string]any{"action": "submit", "xdr": signedXDR})
	require.True(t, submitted.Success, "%+v", submitted.Error)
	require.Equal(t, pipeline.StatusAccepted, submitted.Data.(pipeline.Result).Status)
	require.Len(t, h.ledger.Submitted(), 1)
}

func TestEmptyListsArePresent(t *testing.T) {
	h := newHarness(t)

	listed := h.call(t, AccountManager, map[string]any{"action": "list"})
	require.True(t, listed.Success)
	raw, err := json.Marshal(listed)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"accounts":[]`)

	id, err := h.vault.Create()
	require.NoError(t, err)
	open := h.call(t, Trading, map[string]any{"action": "orders", "account_id": id})
	require.True(t, open.Success, "%+v", open.Error)
	raw, err = json.Marshal(open)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"offers":[]`)
}

func TestCancelAcceptsStringOfferID(t *testing.T) {
	h := newHarness(t)
	id, err := h.vault.Create()
	require.NoError(t, err)
	h.ledger.AddAccount(id, "100")
	usdc := asset.Asset{Code: "USDC", Issuer: keypair.MustRandom().Address()}
	h.ledger.AddOffer(ledger.Offer{ID: 12345, Seller: id, Selling: asset.Native, Buying: usdc, Amount: "2", Price: "3"})

	res := h.call(t, Trading, map[string]any{"action": "cancel", "account_id": id, "offer_id": "12345"})
	require.True(t, res.Success, "%+v", res.Error)
	require.Equal(t, int64(12345), res.Data.(trading.Response).Cancelled.ID)
}

func TestSchemaActionsAreDispatched(t *testing.T) {
	h := newHarness(t)
	for _, desc := range h.registry.List() {
		var schema struct {
			Properties struct {
				Action struct {
					Enum []string `json:"enum"`
				} `json:"action"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(desc.InputSchema, &schema), desc.Name)
		require.NotEmpty(t, schema.Properties.Action.Enum, desc.Name)
		for _, action := range schema.Properties.Action.Enum {
			res := h.call(t, desc.Name, map[string]any{"action": action})
			if res.Error != nil {
				require.NotEqual(t, errors.CodeUnsupportedAction, res.Error.Code, "%s %s", desc.Name, action)
			}
		}
	}
}
