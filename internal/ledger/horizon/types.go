package horizon

import (
	"strings"

	hProtocol "github.com/stellar/go/protocols/horizon"

	"OpenMCP-Stellar/internal/asset"
)

// assetOf converts Horizon's asset_type/asset_code/asset_issuer triple.
func assetOf(typ, code, issuer string) asset.Asset {
	if typ == asset.TypeNative {
		return asset.Native
	}
	return asset.Asset{Code: code, Issuer: issuer}
}

// problemJSON is Horizon's error document. The SDK's problem type keeps
// extras untyped, so only the extras are declared here.
type problemJSON struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Extras struct {
		ResultCodes hProtocol.TransactionResultCodes `json:"result_codes"`
		ResultXDR   string                           `json:"result_xdr"`
	} `json:"extras"`
}

// resultCodes renders the submission result codes as "tx_failed: op_underfunded".
func (p problemJSON) resultCodes() string {
	codes := p.Extras.ResultCodes
	if codes.TransactionCode == "" {
		return ""
	}
	if len(codes.OperationCodes) == 0 {
		return codes.TransactionCode
	}
	return codes.TransactionCode + ": " + strings.Join(codes.OperationCodes, ", ")
}
