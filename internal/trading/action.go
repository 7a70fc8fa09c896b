package trading

import (
	"sort"
	"strconv"
	"strings"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/orders"
)

// Action is a trading facade operation.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionCancel Action = "cancel"
	ActionList   Action = "list"
)

type parsedAction struct {
	action Action
	kind   orders.Kind
}

// actionTags maps every accepted tag to its action. A kind is implied by the
// market_/limit_ prefixed tags.
var actionTags = map[string]parsedAction{
	"buy":          {action: ActionBuy},
	"sell":         {action: ActionSell},
	"market_buy":   {action: ActionBuy, kind: orders.Market},
	"market_sell":  {action: ActionSell, kind: orders.Market},
	"limit_buy":    {action: ActionBuy, kind: orders.Limit},
	"limit_sell":   {action: ActionSell, kind: orders.Limit},
	"cancel":       {action: ActionCancel},
	"cancel_order": {action: ActionCancel},
	"list":         {action: ActionList},
	"orders":       {action: ActionList},
	"open_orders":  {action: ActionList},
}

// ParseAction resolves a tag to an Action and the order kind it implies, if
// any.
func ParseAction(tag string) (Action, orders.Kind, error) {
	parsed, ok := actionTags[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", "", errors.New(errors.CodeUnsupportedAction, "unsupported trading action "+tag,
			errors.WithMetadata("action", tag))
	}
	return parsed.action, parsed.kind, nil
}

// ActionTags lists every accepted tag, aliases included, in sorted order.
func ActionTags() []string {
	tags := make([]string, 0, len(actionTags))
	for tag := range actionTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// OfferID identifies a resting offer. It decodes from a JSON number or from
// a numeric string, the form the ledger API uses.
type OfferID int64

func (o *OfferID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" || raw == "null" {
		*o = 0
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.New(errors.CodeInvalidArgument, "offer_id must be an integer", errors.WithMetadata("offer_id", raw))
	}
	*o = OfferID(id)
	return nil
}
