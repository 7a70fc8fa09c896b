// Package market prices market orders against the live order book.
package market

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/orders"
)

// DefaultDepth is the number of levels read per side.
const DefaultDepth = 20

// BookReader reads order books.
type BookReader interface {
	OrderBook(ctx context.Context, base, counter asset.Asset, limit int) (ledger.OrderBook, error)
}

// Fill is the outcome of walking the book.
type Fill struct {
	// Price is the worst price touched, counter per base.
	Price string `json:"price"`
	// AveragePrice is the volume weighted price of the walked levels.
	AveragePrice string `json:"average_price"`
	Requested    string `json:"requested"`
	Filled       string `json:"filled"`
	Levels       int    `json:"levels"`
	// Exhausted is set when the book could not cover the requested amount.
	Exhausted bool `json:"exhausted"`
}

// Executor turns market intents into priced intents.
type Executor struct {
	books BookReader
	depth int
}

// NewExecutor creates an Executor reading depth levels per side.
func NewExecutor(books BookReader, depth int) *Executor {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Executor{books: books, depth: depth}
}

// Price reads the book and returns the intent priced at the worst level
// touched, with Amount reduced to what the book can fill. A non-empty
// intent.Price is treated as a bound the walk will not cross.
func (e *Executor) Price(ctx context.Context, intent orders.Intent) (orders.Intent, Fill, error) {
	amount, err := orders.ParsePositive("amount", intent.Amount)
	if err != nil {
		return intent, Fill{}, err
	}
	var bound *decimal.Decimal
	if intent.Price != "" {
		b, err := orders.ParsePositive("price", intent.Price)
		if err != nil {
			return intent, Fill{}, err
		}
		bound = &b
	}

	book, err := e.books.OrderBook(ctx, intent.Base, intent.Counter, e.depth)
	if err != nil {
		return intent, Fill{}, err
	}
	levels := book.Asks
	if intent.Direction == orders.Sell {
		levels = book.Bids
	}

	fill, err := Walk(levels, intent.Direction, amount, bound)
	if err != nil {
		return intent, Fill{}, err
	}
	priced := intent
	priced.Kind = orders.Market
	priced.Amount = fill.Filled
	priced.Price = fill.Price
	return priced, fill, nil
}

type level struct {
	price  decimal.Decimal
	amount decimal.Decimal
}

// Walk consumes levels nearest first until amount is covered. Buys walk asks
// upward and sells walk bids downward.
func Walk(levels []ledger.Level, direction orders.Direction, amount decimal.Decimal, bound *decimal.Decimal) (Fill, error) {
	parsed := make([]level, 0, len(levels))
	for _, l := range levels {
		p, err := decimal.NewFromString(l.Price)
		if err != nil {
			return Fill{}, errors.Wrap(errors.CodeTransport, err, "order book price "+l.Price)
		}
		a, err := decimal.NewFromString(l.Amount)
		if err != nil {
			return Fill{}, errors.Wrap(errors.CodeTransport, err, "order book amount "+l.Amount)
		}
		if p.IsPositive() && a.IsPositive() {
			parsed = append(parsed, level{price: p, amount: a})
		}
	}
	sort.SliceStable(parsed, func(i, j int) bool {
		if direction == orders.Sell {
			return parsed[i].price.GreaterThan(parsed[j].price)
		}
		return parsed[i].price.LessThan(parsed[j].price)
	})

	remaining := amount
	filled, cost := decimal.Zero, decimal.Zero
	var worst decimal.Decimal
	touched := 0
	for _, l := range parsed {
		if !remaining.IsPositive() {
			break
		}
		if bound != nil && beyond(direction, l.price, *bound) {
			break
		}
		take := decimal.Min(remaining, l.amount)
		filled = filled.Add(take)
		cost = cost.Add(take.Mul(l.price))
		remaining = remaining.Sub(take)
		worst = l.price
		touched++
	}

	if touched == 0 {
		side := "asks"
		if direction == orders.Sell {
			side = "bids"
		}
		return Fill{}, errors.New(errors.CodeInsufficientLiquidity, "no "+side+" available for the requested side",
			errors.WithMetadata("side", side))
	}
	return Fill{
		Price:        orders.Format(worst),
		AveragePrice: orders.Format(cost.DivRound(filled, orders.Precision)),
		Requested:    orders.Format(amount),
		Filled:       orders.Format(filled),
		Levels:       touched,
		Exhausted:    remaining.IsPositive(),
	}, nil
}

func beyond(direction orders.Direction, price, bound decimal.Decimal) bool {
	if direction == orders.Sell {
		return price.LessThan(bound)
	}
	return price.GreaterThan(bound)
}
