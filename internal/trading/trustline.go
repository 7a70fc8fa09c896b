package trading

import (
	"context"
	"strings"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/orders"
	"OpenMCP-Stellar/internal/pipeline"
)

// TrustAction is a trustline manager operation.
type TrustAction string

const (
	TrustEstablish TrustAction = "establish"
	TrustRemove    TrustAction = "remove"
)

// TrustActions lists the trustline manager actions.
func TrustActions() []string {
	return []string{string(TrustEstablish), string(TrustRemove)}
}

// TrustRequest asks for a trustline change.
type TrustRequest struct {
	Action   string     `json:"action"`
	Account  string     `json:"account_id"`
	Asset    asset.Spec `json:"asset"`
	Limit    string     `json:"limit"`
	AutoSign *bool      `json:"auto_sign"`
}

// TrustResponse reports a trustline change.
type TrustResponse struct {
	Action TrustAction      `json:"action"`
	Asset  string           `json:"asset"`
	Limit  string           `json:"limit"`
	Result *pipeline.Result `json:"result"`
}

// TrustlineManager establishes and removes trustlines.
type TrustlineManager struct {
	runner Runner
}

// NewTrustlineManager creates a TrustlineManager.
func NewTrustlineManager(runner Runner) *TrustlineManager {
	return &TrustlineManager{runner: runner}
}

// Execute validates req, builds the change-trust operation and runs it. A
// native asset fails before any network access.
func (m *TrustlineManager) Execute(ctx context.Context, req TrustRequest) (TrustResponse, error) {
	action := TrustAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if action != TrustEstablish && action != TrustRemove {
		return TrustResponse{}, errors.New(errors.CodeUnsupportedAction, "unsupported trustline action "+req.Action,
			errors.WithMetadata("action", req.Action))
	}
	if err := ValidateAccount(req.Account); err != nil {
		return TrustResponse{}, err
	}
	line, err := asset.Resolve(req.Asset)
	if err != nil {
		return TrustResponse{}, err
	}

	var op ledger.Operation
	if action == TrustEstablish {
		op, err = orders.Trust(line, req.Limit)
	} else {
		op, err = orders.Untrust(line)
	}
	if err != nil {
		return TrustResponse{}, err
	}

	result, err := m.runner.Run(ctx, pipeline.Request{
		Source:   req.Account,
		Action:   "trustline_" + string(action),
		AutoSign: req.AutoSign == nil || *req.AutoSign,
		Plan: func(context.Context, ledger.Account) ([]ledger.Operation, error) {
			return []ledger.Operation{op}, nil
		},
	})
	if err != nil {
		return TrustResponse{}, err
	}
	return TrustResponse{
		Action: action,
		Asset:  line.String(),
		Limit:  op.(ledger.ChangeTrust).Limit,
		Result: &result,
	}, nil
}
