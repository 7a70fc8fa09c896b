package ledger

import (
	"context"

	"OpenMCP-Stellar/internal/asset"
)

// Reader is the ledger's read API.
type Reader interface {
	Account(ctx context.Context, id string) (Account, error)
	OrderBook(ctx context.Context, base, counter asset.Asset, limit int) (OrderBook, error)
	Offer(ctx context.Context, id int64) (Offer, error)
	Offers(ctx context.Context, account string, limit int) ([]Offer, error)
	Transactions(ctx context.Context, account string, limit int) ([]TxRecord, error)
	Status(ctx context.Context) (ServerStatus, error)
	FeeStats(ctx context.Context) (FeeStats, error)
}

// Submitter sends signed envelopes. Rejections are reported as
// LEDGER_REJECTED errors and transport failures as TRANSPORT_ERROR.
type Submitter interface {
	Submit(ctx context.Context, envelopeXDR string) (SubmitResponse, error)
}

// Client is a full ledger transport.
type Client interface {
	Reader
	Submitter
}

// Faucet funds new accounts on test networks.
type Faucet interface {
	Fund(ctx context.Context, identity string) error
}

// Codec encodes and signs transactions offline.
type Codec interface {
	Build(source Account, ops []Operation) (Envelope, error)
	Sign(envelopeXDR, credential string) (Envelope, error)
	Hash(envelopeXDR string) (string, error)
	Passphrase() string
}
