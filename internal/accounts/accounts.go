// Package accounts exposes custodial account operations: key custody in the
// vault plus read-only account state from the ledger.
package accounts

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/trading"
	"OpenMCP-Stellar/pkg/logger"
)

// ExportWarning accompanies every exported secret.
const ExportWarning = "This secret key controls the account. Anyone holding it can move all funds; never share or log it."

const defaultHistoryLimit = 10

// Vault is the key custody the manager needs.
type Vault interface {
	Create() (string, error)
	Import(credential string) (string, error)
	Export(identity string) (string, error)
	Contains(identity string) bool
	List() []string
}

// Reader is the ledger state the manager needs.
type Reader interface {
	Account(ctx context.Context, id string) (ledger.Account, error)
	Transactions(ctx context.Context, account string, limit int) ([]ledger.TxRecord, error)
}

// Request is an account manager call.
type Request struct {
	Action    string `json:"action"`
	Account   string `json:"account_id"`
	SecretKey string `json:"secret_key"`
	Limit     int    `json:"limit"`
}

// BalanceView is one balance line.
type BalanceView struct {
	Asset   string `json:"asset"`
	Type    string `json:"asset_type"`
	Code    string `json:"asset_code,omitempty"`
	Issuer  string `json:"asset_issuer,omitempty"`
	Balance string `json:"balance"`
	Limit   string `json:"limit,omitempty"`
}

// AccountView is the caller facing account state.
type AccountView struct {
	ID            string            `json:"account_id"`
	Sequence      string            `json:"sequence"`
	SubentryCount int32             `json:"subentry_count"`
	Balances      []BalanceView     `json:"balances"`
	Signers       []ledger.Signer   `json:"signers"`
	Thresholds    ledger.Thresholds `json:"thresholds"`
	Flags         ledger.Flags      `json:"flags"`
}

// ViewOf renders an account.
func ViewOf(a ledger.Account) AccountView {
	balances := make([]BalanceView, 0, len(a.Balances))
	for _, b := range a.Balances {
		balances = append(balances, BalanceView{
			Asset:   b.Asset.String(),
			Type:    b.Asset.Type(),
			Code:    b.Asset.Code,
			Issuer:  b.Asset.Issuer,
			Balance: b.Balance,
			Limit:   b.Limit,
		})
	}
	return AccountView{
		ID:            a.ID,
		Sequence:      strconv.FormatInt(a.Sequence, 10),
		SubentryCount: a.SubentryCount,
		Balances:      balances,
		Signers:       a.Signers,
		Thresholds:    a.Thresholds,
		Flags:         a.Flags,
	}
}

// Response is the outcome of an account manager call. Only the fields the
// action produces are set. List fields are always encoded and the action
// that fills them never leaves them nil.
type Response struct {
	Action        string            `json:"action"`
	AccountID     string            `json:"account_id,omitempty"`
	Account       *AccountView      `json:"account,omitempty"`
	NativeBalance string            `json:"native_balance,omitempty"`
	Transactions  []ledger.TxRecord `json:"transactions"`
	Accounts      []string          `json:"accounts"`
	SecretKey     string            `json:"secret_key,omitempty"`
	Warning       string            `json:"warning,omitempty"`
	Message       string            `json:"message,omitempty"`
}

type handler func(ctx context.Context, req Request) (Response, error)

// Manager runs account manager actions.
type Manager struct {
	vault    Vault
	reader   Reader
	faucet   ledger.Faucet
	handlers map[string]handler
	log      *slog.Logger
}

// NewManager creates a Manager. faucet may be nil on networks without one.
func NewManager(vault Vault, reader Reader, faucet ledger.Faucet) *Manager {
	m := &Manager{vault: vault, reader: reader, faucet: faucet, log: logger.Named("accounts")}
	m.handlers = map[string]handler{
		"create":       m.create,
		"fund":         m.fund,
		"get":          m.get,
		"transactions": m.transactions,
		"list":         m.list,
		"export":       m.export,
		"import":       m.importKey,
	}
	return m
}

// Actions lists the supported action tags.
func Actions() []string {
	return []string{"create", "fund", "get", "transactions", "list", "export", "import"}
}

// Execute dispatches req by action.
func (m *Manager) Execute(ctx context.Context, req Request) (Response, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	h, ok := m.handlers[action]
	if !ok {
		return Response{}, errors.New(errors.CodeUnsupportedAction, "unsupported account action "+req.Action,
			errors.WithMetadata("action", req.Action))
	}
	resp, err := h(ctx, req)
	if err != nil {
		return Response{}, err
	}
	resp.Action = action
	return resp, nil
}

func (m *Manager) create(context.Context, Request) (Response, error) {
	identity, err := m.vault.Create()
	if err != nil {
		return Response{}, err
	}
	m.log.Info("account created", "account", identity)
	return Response{AccountID: identity, Message: "Account created. Fund it before use."}, nil
}

func (m *Manager) fund(ctx context.Context, req Request) (Response, error) {
	if err := trading.ValidateAccount(req.Account); err != nil {
		return Response{}, err
	}
	if m.faucet == nil {
		return Response{}, errors.New(errors.CodeInvalidOperation, "this network has no faucet")
	}
	if err := m.faucet.Fund(ctx, req.Account); err != nil {
		return Response{}, err
	}
	account, err := m.reader.Account(ctx, req.Account)
	if err != nil {
		return Response{}, err
	}
	m.log.Info("account funded", "account", req.Account, "native_balance", account.NativeBalance())
	return Response{AccountID: req.Account, NativeBalance: account.NativeBalance()}, nil
}

func (m *Manager) get(ctx context.Context, req Request) (Response, error) {
	if err := trading.ValidateAccount(req.Account); err != nil {
		return Response{}, err
	}
	account, err := m.reader.Account(ctx, req.Account)
	if err != nil {
		return Response{}, err
	}
	view := ViewOf(account)
	return Response{AccountID: account.ID, Account: &view, NativeBalance: account.NativeBalance()}, nil
}

func (m *Manager) transactions(ctx context.Context, req Request) (Response, error) {
	if err := trading.ValidateAccount(req.Account); err != nil {
		return Response{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := m.reader.Transactions(ctx, req.Account, limit)
	if err != nil {
		return Response{}, err
	}
	if records == nil {
		records = []ledger.TxRecord{}
	}
	return Response{AccountID: req.Account, Transactions: records}, nil
}

func (m *Manager) list(context.Context, Request) (Response, error) {
	ids := m.vault.List()
	if ids == nil {
		ids = []string{}
	}
	return Response{Accounts: ids}, nil
}

func (m *Manager) export(_ context.Context, req Request) (Response, error) {
	if err := trading.ValidateAccount(req.Account); err != nil {
		return Response{}, err
	}
	secret, err := m.vault.Export(req.Account)
	if err != nil {
		return Response{}, err
	}
	return Response{AccountID: req.Account, SecretKey: secret, Warning: ExportWarning}, nil
}

func (m *Manager) importKey(_ context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.SecretKey) == "" {
		return Response{}, errors.New(errors.CodeInvalidArgument, "secret_key is required for import")
	}
	identity, err := m.vault.Import(req.SecretKey)
	if err != nil {
		return Response{}, err
	}
	return Response{AccountID: identity, Message: "Account imported."}, nil
}
