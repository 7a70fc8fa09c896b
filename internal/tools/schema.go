package tools

import (
	"encoding/json"

	"OpenMCP-Stellar/internal/accounts"
	"OpenMCP-Stellar/internal/trading"
)

var (
	marketDataActions = []string{"orderbook"}
	utilitiesActions  = []string{"status", "fee", "sign", "submit", "submissions"}
)

// enum renders values as a JSON array for a schema "enum".
func enum(values []string) string {
	out, _ := json.Marshal(values)
	return string(out)
}

const assetSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string", "enum": ["native", "issued", "credit_alphanum4", "credit_alphanum12"]},
    "code": {"type": "string"},
    "issuer": {"type": "string"}
  }
}`

var accountManagerSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ` + enum(accounts.Actions()) + `},
    "account_id": {"type": "string", "description": "Account public key (G...)"},
    "secret_key": {"type": "string", "description": "Secret seed (S...) for import"},
    "limit": {"type": "integer", "description": "History size for transactions, default 10"}
  },
  "required": ["action"]
}`

var tradingSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ` + enum(trading.ActionTags()) + `},
    "account_id": {"type": "string"},
    "base_asset": ` + assetSchema + `,
    "counter_asset": ` + assetSchema + `,
    "amount": {"type": "string", "description": "Amount of base asset"},
    "price": {"type": "string", "description": "Counter units per base unit; a bound for market orders"},
    "order_type": {"type": "string", "enum": ["limit", "market"]},
    "offer_id": {"type": ["integer", "string"], "description": "Offer to cancel"},
    "auto_sign": {"type": "boolean", "default": true},
    "limit": {"type": "integer"}
  },
  "required": ["action", "account_id"]
}`

var trustlineSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ` + enum(trading.TrustActions()) + `},
    "account_id": {"type": "string"},
    "asset": ` + assetSchema + `,
    "limit": {"type": "string", "description": "Trust limit, maximum when empty"},
    "auto_sign": {"type": "boolean", "default": true}
  },
  "required": ["action", "account_id", "asset"]
}`

var marketDataSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ` + enum(marketDataActions) + `},
    "base_asset": ` + assetSchema + `,
    "counter_asset": ` + assetSchema + `,
    "limit": {"type": "integer", "description": "Levels per side, default 20"}
  },
  "required": ["action", "base_asset"]
}`

var utilitiesSchema = `{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ` + enum(utilitiesActions) + `},
    "account_id": {"type": "string"},
    "xdr": {"type": "string", "description": "Transaction envelope in base64 XDR"},
    "submit": {"type": "boolean", "description": "Submit right after signing"},
    "limit": {"type": "integer"}
  },
  "required": ["action"]
}`
