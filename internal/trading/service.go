// Package trading is the single entry point for trading intents. It
// validates requests, routes them by action and runs them through the
// transaction pipeline.
package trading

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stellar/go/strkey"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/market"
	"OpenMCP-Stellar/internal/orders"
	"OpenMCP-Stellar/internal/pipeline"
	"OpenMCP-Stellar/pkg/logger"
)

// Request is a trading intent as received from a caller.
type Request struct {
	Action    string     `json:"action"`
	Account   string     `json:"account_id"`
	Base      asset.Spec `json:"base_asset"`
	Counter   asset.Spec `json:"counter_asset"`
	Amount    string     `json:"amount"`
	Price     string     `json:"price"`
	OrderType string     `json:"order_type"`
	OfferID   OfferID    `json:"offer_id"`
	// AutoSign defaults to true.
	AutoSign *bool `json:"auto_sign"`
	Limit    int   `json:"limit"`
}

func (r Request) autoSign() bool { return r.AutoSign == nil || *r.AutoSign }

// OfferView is the caller facing form of an offer.
type OfferView struct {
	ID      int64  `json:"offer_id"`
	Seller  string `json:"seller"`
	Selling string `json:"selling"`
	Buying  string `json:"buying"`
	Amount  string `json:"amount"`
	Price   string `json:"price"`
}

func viewOf(o ledger.Offer) OfferView {
	return OfferView{ID: o.ID, Seller: o.Seller, Selling: o.Selling.String(), Buying: o.Buying.String(), Amount: o.Amount, Price: o.Price}
}

// OrderView describes the order that was built.
type OrderView struct {
	Direction orders.Direction `json:"direction"`
	Kind      orders.Kind      `json:"kind"`
	Base      string           `json:"base"`
	Counter   string           `json:"counter"`
	Amount    string           `json:"amount"`
	Price     string           `json:"price"`
}

// Response is the outcome of a facade call.
type Response struct {
	Action    Action           `json:"action"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Order     *OrderView       `json:"order,omitempty"`
	Fill      *market.Fill     `json:"fill,omitempty"`
	Cancelled *OfferView       `json:"cancelled,omitempty"`
	Offers    []OfferView      `json:"offers"`
}

// Runner executes pipeline requests.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// OfferLister lists an account's resting offers.
type OfferLister interface {
	Offers(ctx context.Context, account string, limit int) ([]ledger.Offer, error)
}

// Pricer prices market intents.
type Pricer interface {
	Price(ctx context.Context, intent orders.Intent) (orders.Intent, market.Fill, error)
}

type handler func(ctx context.Context, req Request, parsed parsedAction) (Response, error)

// Service is the trading facade.
type Service struct {
	runner   Runner
	builder  *orders.Builder
	pricer   Pricer
	offers   OfferLister
	handlers map[Action]handler
	log      *slog.Logger
}

// NewService wires the facade.
func NewService(runner Runner, builder *orders.Builder, pricer Pricer, offers OfferLister) *Service {
	s := &Service{runner: runner, builder: builder, pricer: pricer, offers: offers, log: logger.Named("trading")}
	s.handlers = map[Action]handler{
		ActionBuy:    s.place,
		ActionSell:   s.place,
		ActionCancel: s.cancel,
		ActionList:   s.list,
	}
	return s
}

// Execute validates req and dispatches it by action.
func (s *Service) Execute(ctx context.Context, req Request) (Response, error) {
	action, kind, err := ParseAction(req.Action)
	if err != nil {
		return Response{}, err
	}
	h, ok := s.handlers[action]
	if !ok {
		return Response{}, errors.New(errors.CodeUnsupportedAction, "unsupported trading action "+req.Action)
	}
	if err := ValidateAccount(req.Account); err != nil {
		return Response{}, err
	}
	resp, err := h(ctx, req, parsedAction{action: action, kind: kind})
	if err != nil {
		s.log.Info("trading request failed", "action", action, "account", req.Account, "code", errors.CodeOf(err))
		return Response{}, err
	}
	resp.Action = action
	return resp, nil
}

// ValidateAccount checks that id is an account strkey.
func ValidateAccount(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New(errors.CodeInvalidArgument, "account_id is required")
	}
	if !strkey.IsValidEd25519PublicKey(id) {
		return errors.New(errors.CodeInvalidArgument, "account_id is not a valid account", errors.WithMetadata("account_id", id))
	}
	return nil
}

func (s *Service) intent(req Request, direction orders.Direction, kind orders.Kind) (orders.Intent, error) {
	if kind == "" {
		kind = orders.Kind(strings.ToLower(strings.TrimSpace(req.OrderType)))
		if kind == "" {
			kind = orders.Limit
		}
	}
	if kind != orders.Limit && kind != orders.Market {
		return orders.Intent{}, errors.New(errors.CodeInvalidArgument, "order_type must be limit or market")
	}
	if _, err := orders.ParsePositive("amount", req.Amount); err != nil {
		return orders.Intent{}, err
	}
	if kind == orders.Limit && strings.TrimSpace(req.Price) == "" {
		return orders.Intent{}, errors.New(errors.CodeInvalidArgument, "price is required for limit orders")
	}
	if req.Price != "" {
		if _, err := orders.ParsePositive("price", req.Price); err != nil {
			return orders.Intent{}, err
		}
	}
	base, err := asset.Resolve(req.Base)
	if err != nil {
		return orders.Intent{}, err
	}
	counter, err := asset.Resolve(req.Counter)
	if err != nil {
		return orders.Intent{}, err
	}
	if base.Equal(counter) {
		return orders.Intent{}, errors.New(errors.CodeInvalidOperation, "base and counter assets must differ")
	}
	return orders.Intent{
		Account:   req.Account,
		Direction: direction,
		Kind:      kind,
		Base:      base,
		Counter:   counter,
		Amount:    req.Amount,
		Price:     req.Price,
	}, nil
}

func (s *Service) place(ctx context.Context, req Request, parsed parsedAction) (Response, error) {
	direction := orders.Buy
	if parsed.action == ActionSell {
		direction = orders.Sell
	}
	intent, err := s.intent(req, direction, parsed.kind)
	if err != nil {
		return Response{}, err
	}

	var (
		fill  *market.Fill
		order OrderView
	)
	plan := func(ctx context.Context, _ ledger.Account) ([]ledger.Operation, error) {
		priced := intent
		if intent.Kind == orders.Market {
			p, f, err := s.pricer.Price(ctx, intent)
			if err != nil {
				return nil, err
			}
			priced, fill = p, &f
		}
		op, err := s.builder.Priced(priced)
		if err != nil {
			return nil, err
		}
		order = OrderView{
			Direction: priced.Direction,
			Kind:      intent.Kind,
			Base:      priced.Base.String(),
			Counter:   priced.Counter.String(),
			Amount:    priced.Amount,
			Price:     priced.Price,
		}
		return []ledger.Operation{op}, nil
	}

	result, err := s.runner.Run(ctx, pipeline.Request{
		Source:   req.Account,
		Action:   string(direction),
		AutoSign: req.autoSign(),
		Plan:     plan,
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: &result, Order: &order, Fill: fill}, nil
}

func (s *Service) cancel(ctx context.Context, req Request, _ parsedAction) (Response, error) {
	if req.OfferID <= 0 {
		return Response{}, errors.New(errors.CodeInvalidArgument, "offer_id is required for cancel")
	}
	var cancelled OfferView
	plan := func(ctx context.Context, _ ledger.Account) ([]ledger.Operation, error) {
		op, offer, err := s.builder.Cancel(ctx, req.Account, int64(req.OfferID))
		if err != nil {
			return nil, err
		}
		cancelled = viewOf(offer)
		return []ledger.Operation{op}, nil
	}
	result, err := s.runner.Run(ctx, pipeline.Request{
		Source:   req.Account,
		Action:   string(ActionCancel),
		AutoSign: req.autoSign(),
		Plan:     plan,
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: &result, Cancelled: &cancelled}, nil
}

func (s *Service) list(ctx context.Context, req Request, _ parsedAction) (Response, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	offers, err := s.offers.Offers(ctx, req.Account, limit)
	if err != nil {
		return Response{}, err
	}
	views := make([]OfferView, 0, len(offers))
	for _, o := range offers {
		views = append(views, viewOf(o))
	}
	return Response{Offers: views}, nil
}
