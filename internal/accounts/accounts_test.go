package accounts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/ledger/ledgertest"
	"OpenMCP-Stellar/internal/vault"
)

func newManager(t *testing.T) (*Manager, *vault.Vault, *ledgertest.Ledger) {
	t.Helper()
	v, err := vault.New()
	require.NoError(t, err)
	l := ledgertest.New()
	return NewManager(v, l, l), v, l
}

func TestCreateFundGet(t *testing.T) {
	m, v, _ := newManager(t)
	ctx := context.Background()

	created, err := m.Execute(ctx, Request{Action: "create"})
	require.NoError(t, err)
	require.Equal(t, "create", created.Action)
	require.True(t, v.Contains(created.AccountID))

	funded, err := m.Execute(ctx, Request{Action: "fund", Account: created.AccountID})
	require.NoError(t, err)
	require.Equal(t, "10000.0000000", funded.NativeBalance)

	_, err = m.Execute(ctx, Request{Action: "fund", Account: created.AccountID})
	require.Equal(t, errors.CodeInvalidOperation, errors.CodeOf(err))

	got, err := m.Execute(ctx, Request{Action: "GET", Account: created.AccountID})
	require.NoError(t, err)
	require.Equal(t, "100", got.Account.Sequence)
	require.Len(t, got.Account.Balances, 1)
	require.Equal(t, "native", got.Account.Balances[0].Asset)
	require.Equal(t, "native", got.Account.Balances[0].Type)
}

func TestExportImportList(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	kp := keypair.MustRandom()

	imported, err := m.Execute(ctx, Request{Action: "import", SecretKey: kp.Seed()})
	require.NoError(t, err)
	require.Equal(t, kp.Address(), imported.AccountID)
	_, err = m.Execute(ctx, Request{Action: "import", SecretKey: kp.Seed()})
	require.NoError(t, err)

	listed, err := m.Execute(ctx, Request{Action: "list"})
	require.NoError(t, err)
	require.Equal(t, []string{kp.Address()}, listed.Accounts)

	exported, err := m.Execute(ctx, Request{Action: "export", Account: kp.Address()})
	require.NoError(t, err)
	require.Equal(t, kp.Seed(), exported.SecretKey)
	require.Equal(t, ExportWarning, exported.Warning)

	_, err = m.Execute(ctx, Request{Action: "export", Account: keypair.MustRandom().Address()})
	require.Equal(t, errors.CodeUnknownIdentity, errors.CodeOf(err))

	_, err = m.Execute(ctx, Request{Action: "import", SecretKey: "SNOTAKEY"})
	require.Equal(t, errors.CodeInvalidCredential, errors.CodeOf(err))

	_, err = m.Execute(ctx, Request{Action: "import"})
	require.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))
}

func TestTransactionsDefaultLimit(t *testing.T) {
	m, _, l := newManager(t)
	id := keypair.MustRandom().Address()
	records := make([]ledger.TxRecord, 0, 15)
	for i := 0; i < 15; i++ {
		records = append(records, ledger.TxRecord{Hash: "h", Ledger: int32(i), CreatedAt: time.Unix(0, 0), Successful: true})
	}
	l.AddHistory(id, records...)

	resp, err := m.Execute(context.Background(), Request{Action: "transactions", Account: id})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, defaultHistoryLimit)

	resp, err = m.Execute(context.Background(), Request{Action: "transactions", Account: id, Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 3)
}

func TestUnsupportedAndMissingFaucet(t *testing.T) {
	v, err := vault.New()
	require.NoError(t, err)
	m := NewManager(v, ledgertest.New(), nil)
	ctx := context.Background()

	_, err = m.Execute(ctx, Request{Action: "merge"})
	require.Equal(t, errors.CodeUnsupportedAction, errors.CodeOf(err))

	_, err = m.Execute(ctx, Request{Action: "fund", Account: keypair.MustRandom().Address()})
	require.Equal(t, errors.CodeInvalidOperation, errors.CodeOf(err))

	_, err = m.Execute(ctx, Request{Action: "get", Account: "bogus"})
	require.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	m, _, l := newManager(t)
	ctx := context.Background()

	listed, err := m.Execute(ctx, Request{Action: "list"})
	require.NoError(t, err)
	raw, err := json.Marshal(listed)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"accounts":[]`)

	id := keypair.MustRandom().Address()
	l.AddAccount(id, "5")
	history, err := m.Execute(ctx, Request{Action: "transactions", Account: id})
	require.NoError(t, err)
	raw, err = json.Marshal(history)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"transactions":[]`)
}

func TestEveryAdvertisedActionIsHandled(t *testing.T) {
	m, _, _ := newManager(t)
	for _, action := range Actions() {
		_, err := m.Execute(context.Background(), Request{Action: action})
		require.NotEqual(t, errors.CodeUnsupportedAction, errors.CodeOf(err), action)
	}
}
