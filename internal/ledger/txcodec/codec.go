// Package txcodec encodes, signs and decodes Stellar transaction envelopes
// using the Stellar Go SDK.
package txcodec

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/price"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"OpenMCP-Stellar/internal/asset"
	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
)

// Config configures a Codec.
type Config struct {
	Passphrase string
	// BaseFee is the per-operation fee in stroops.
	BaseFee int64
	// TimeoutSeconds bounds the validity window of built envelopes; 0 means
	// no upper bound.
	TimeoutSeconds int64
}

// Codec implements ledger.Codec.
type Codec struct {
	cfg Config
}

var _ ledger.Codec = (*Codec)(nil)

// New creates a Codec.
func New(cfg Config) *Codec {
	if cfg.BaseFee <= 0 {
		cfg.BaseFee = txnbuild.MinBaseFee
	}
	return &Codec{cfg: cfg}
}

// Passphrase returns the network passphrase envelopes are hashed with.
func (c *Codec) Passphrase() string { return c.cfg.Passphrase }

// Build encodes an unsigned envelope consuming the next sequence number of
// source.
func (c *Codec) Build(source ledger.Account, ops []ledger.Operation) (ledger.Envelope, error) {
	if len(ops) == 0 {
		return ledger.Envelope{}, errors.New(errors.CodeInvalidOperation, "transaction has no operations")
	}
	built := make([]txnbuild.Operation, 0, len(ops))
	for _, op := range ops {
		converted, err := convert(op)
		if err != nil {
			return ledger.Envelope{}, err
		}
		built = append(built, converted)
	}

	bounds := txnbuild.NewInfiniteTimeout()
	if c.cfg.TimeoutSeconds > 0 {
		bounds = txnbuild.NewTimeout(c.cfg.TimeoutSeconds)
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: source.ID, Sequence: source.Sequence},
		IncrementSequenceNum: true,
		Operations:           built,
		BaseFee:              c.cfg.BaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: bounds},
	})
	if err != nil {
		return ledger.Envelope{}, errors.Wrap(errors.CodeInvalidOperation, err, "build transaction")
	}
	return c.envelope(tx)
}

// Sign adds a signature from credential to an encoded envelope.
func (c *Codec) Sign(envelopeXDR, credential string) (ledger.Envelope, error) {
	kp, err := keypair.ParseFull(credential)
	if err != nil {
		return ledger.Envelope{}, errors.Wrap(errors.CodeInvalidCredential, err, "parse secret seed")
	}
	tx, err := Decode(envelopeXDR)
	if err != nil {
		return ledger.Envelope{}, err
	}
	signed, err := tx.Sign(c.cfg.Passphrase, kp)
	if err != nil {
		return ledger.Envelope{}, errors.Wrap(errors.CodeInvalidOperation, err, "sign transaction")
	}
	return c.envelope(signed)
}

// Hash returns the network hash of an encoded envelope.
func (c *Codec) Hash(envelopeXDR string) (string, error) {
	tx, err := Decode(envelopeXDR)
	if err != nil {
		return "", err
	}
	hash, err := tx.HashHex(c.cfg.Passphrase)
	if err != nil {
		return "", errors.Wrap(errors.CodeInvalidArgument, err, "hash transaction")
	}
	return hash, nil
}

func (c *Codec) envelope(tx *txnbuild.Transaction) (ledger.Envelope, error) {
	encoded, err := tx.Base64()
	if err != nil {
		return ledger.Envelope{}, errors.Wrap(errors.CodeInvalidOperation, err, "encode transaction")
	}
	hash, err := tx.HashHex(c.cfg.Passphrase)
	if err != nil {
		return ledger.Envelope{}, errors.Wrap(errors.CodeInvalidOperation, err, "hash transaction")
	}
	return ledger.Envelope{XDR: encoded, Hash: hash}, nil
}

// Decode parses a base64 envelope holding a regular (not fee bump)
// transaction.
func Decode(envelopeXDR string) (*txnbuild.Transaction, error) {
	generic, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, err, "decode envelope")
	}
	tx, ok := generic.Transaction()
	if !ok {
		return nil, errors.New(errors.CodeInvalidArgument, "fee bump envelopes are not supported")
	}
	return tx, nil
}

// SourceOf returns the source account of an encoded envelope.
func SourceOf(envelopeXDR string) (string, error) {
	tx, err := Decode(envelopeXDR)
	if err != nil {
		return "", err
	}
	return tx.SourceAccount().AccountID, nil
}

func convert(op ledger.Operation) (txnbuild.Operation, error) {
	switch o := op.(type) {
	case ledger.ManageSellOffer:
		p, err := parsePrice(o.Price)
		if err != nil {
			return nil, err
		}
		return &txnbuild.ManageSellOffer{
			Selling: toAsset(o.Selling),
			Buying:  toAsset(o.Buying),
			Amount:  o.Amount,
			Price:   p,
			OfferID: o.OfferID,
		}, nil
	case ledger.ManageBuyOffer:
		p, err := parsePrice(o.Price)
		if err != nil {
			return nil, err
		}
		return &txnbuild.ManageBuyOffer{
			Selling: toAsset(o.Selling),
			Buying:  toAsset(o.Buying),
			Amount:  o.BuyAmount,
			Price:   p,
			OfferID: o.OfferID,
		}, nil
	case ledger.ChangeTrust:
		if o.Line.IsNative() {
			return nil, errors.New(errors.CodeInvalidOperation, "native asset has no trustline")
		}
		line, err := txnbuild.CreditAsset{Code: o.Line.Code, Issuer: o.Line.Issuer}.ToChangeTrustAsset()
		if err != nil {
			return nil, errors.Wrap(errors.CodeInvalidAsset, err, "trustline asset")
		}
		return &txnbuild.ChangeTrust{Line: line, Limit: o.Limit}, nil
	default:
		return nil, errors.New(errors.CodeInvalidOperation, fmt.Sprintf("unsupported operation %T", op))
	}
}

func parsePrice(s string) (xdr.Price, error) {
	p, err := price.Parse(s)
	if err != nil {
		return xdr.Price{}, errors.Wrap(errors.CodeInvalidArgument, err, "parse price "+s)
	}
	return p, nil
}

func toAsset(a asset.Asset) txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}
