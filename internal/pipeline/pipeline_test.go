package pipeline

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/events"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/ledger/ledgertest"
	"OpenMCP-Stellar/internal/ledger/txcodec"
	"OpenMCP-Stellar/internal/observability/alerting"
	"OpenMCP-Stellar/internal/vault"
)

type recordingAlerts struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerts) Notify(_ context.Context, e alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	vault   *vault.Vault
	ledger  *ledgertest.Ledger
	journal *journal.MemoryStore
	events  *events.MemoryPublisher
	alerts  *recordingAlerts
	p       *Pipeline
	source  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := vault.New()
	require.NoError(t, err)
	source, err := v.Create()
	require.NoError(t, err)

	l := ledgertest.New()
	l.AddAccount(source, "100")
	f := &fixture{
		vault:   v,
		ledger:  l,
		journal: journal.NewMemoryStore(0),
		events:  events.NewMemoryPublisher(0),
		alerts:  &recordingAlerts{},
		source:  source,
	}
	codec := txcodec.New(txcodec.Config{Passphrase: network.TestNetworkPassphrase, BaseFee: 100, TimeoutSeconds: 300})
	f.p = New(v, l, codec, l, WithJournal(f.journal), WithEvents(f.events), WithAlerts(f.alerts))
	return f
}

func sellPlan(ctx context.Context, _ ledger.Account) ([]ledger.Operation, error) {
	usdc := asset.Asset{Code: "USDC", Issuer: keypair.MustRandom().Address()}
	return []ledger.Operation{ledger.ManageSellOffer{Selling: asset.Native, Buying: usdc, Amount: "10", Price: "2"}}, nil
}

func TestRunAccepted(t *testing.T) {
	f := newFixture(t)

	res, err := f.p.Run(context.Background(), Request{Source: f.source, Action: "sell", AutoSign: true, Plan: sellPlan})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StatusAccepted, res.Status)
	require.Equal(t, int32(1001), res.Ledger)
	require.Len(t, res.Hash, 64)

	submitted := f.ledger.Submitted()
	require.Len(t, submitted, 1)
	tx, err := txcodec.Decode(submitted[0])
	require.NoError(t, err)
	require.Len(t, tx.Signatures(), 1)
	require.Equal(t, f.source, tx.SourceAccount().AccountID)

	entries, err := f.journal.Latest(context.Background(), f.source, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "accepted", entries[0].Status)
	require.Len(t, f.events.Events(), 1)
	require.Empty(t, f.alerts.events)
}

func TestRunWithoutAutoSignReturnsEnvelope(t *testing.T) {
	f := newFixture(t)

	res, err := f.p.Run(context.Background(), Request{Source: f.source, Action: "sell", Plan: sellPlan})
	require.NoError(t, err)
	require.Equal(t, StatusBuilt, res.Status)
	require.NotEmpty(t, res.EnvelopeXDR)
	require.Empty(t, f.ledger.Submitted())

	tx, err := txcodec.Decode(res.EnvelopeXDR)
	require.NoError(t, err)
	require.Empty(t, tx.Signatures())

	signed, err := f.p.Sign(f.source, res.EnvelopeXDR)
	require.NoError(t, err)
	manual := f.p.Submit(context.Background(), f.source, "submit", signed.XDR)
	require.Equal(t, StatusAccepted, manual.Status)
	require.Equal(t, res.Hash, manual.Hash)
}

func TestRunUnknownIdentityBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	stranger := keypair.MustRandom().Address()

	_, err := f.p.Run(context.Background(), Request{Source: stranger, Action: "sell", AutoSign: true, Plan: sellPlan})
	require.Equal(t, errors.CodeUnknownIdentity, errors.CodeOf(err))
	require.Zero(t, f.ledger.Calls())
}

func TestRunPlanFailureSignsNothing(t *testing.T) {
	f := newFixture(t)
	planErr := errors.New(errors.CodeInsufficientLiquidity, "")

	_, err := f.p.Run(context.Background(), Request{Source: f.source, AutoSign: true,
		Plan: func(context.Context, ledger.Account) ([]ledger.Operation, error) { return nil, planErr }})
	require.Equal(t, errors.CodeInsufficientLiquidity, errors.CodeOf(err))
	require.Empty(t, f.ledger.Submitted())
	require.Empty(t, f.events.Events())
}

func TestRunTransportFailureIsUnknown(t *testing.T) {
	f := newFixture(t)
	f.ledger.FailSubmissions(errors.Wrap(errors.CodeTransport, stdErrors.New("connection reset by peer"), "submit transaction"))

	res, err := f.p.Run(context.Background(), Request{Source: f.source, Action: "sell", AutoSign: true, Plan: sellPlan})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, StatusUnknown, res.Status)
	require.Equal(t, errors.CodeTransport, res.Code)
	require.Contains(t, res.Detail, "connection reset by peer")
	require.Contains(t, res.Detail, "check ledger")
	require.Len(t, res.Hash, 64)

	require.Len(t, f.alerts.events, 1)
	require.Equal(t, errors.SeverityCritical, f.alerts.events[0].Severity)
	entries, _ := f.journal.Latest(context.Background(), "", 0)
	require.Equal(t, "unknown", entries[0].Status)
}

func TestRunLedgerRejection(t *testing.T) {
	f := newFixture(t)
	f.ledger.FailSubmissions(errors.New(errors.CodeLedgerRejected, "tx_failed: op_underfunded",
		errors.WithMetadata("result_codes", "tx_failed: op_underfunded")))

	res, err := f.p.Run(context.Background(), Request{Source: f.source, Action: "buy", AutoSign: true, Plan: sellPlan})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, res.Status)
	require.Equal(t, errors.CodeLedgerRejected, res.Code)
	require.Equal(t, "tx_failed: op_underfunded", res.Detail)
	require.Len(t, f.alerts.events, 1)
	require.Equal(t, "tx_failed: op_underfunded", f.alerts.events[0].Metadata["result_codes"])
}

func TestRunMissingAccount(t *testing.T) {
	f := newFixture(t)
	identity, err := f.vault.Create()
	require.NoError(t, err)

	_, err = f.p.Run(context.Background(), Request{Source: identity, AutoSign: true, Plan: sellPlan})
	require.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}
