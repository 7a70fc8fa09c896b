// Package pipeline drives a transaction from construction to a ledger
// outcome: build, optionally sign with a custodied key, submit and report.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/events"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/observability/alerting"
	"OpenMCP-Stellar/internal/observability/metrics"
	"OpenMCP-Stellar/pkg/logger"
)

// Status is the final state of a pipeline run.
type Status string

const (
	// StatusBuilt means the envelope was returned unsigned.
	StatusBuilt    Status = "built"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	// StatusUnknown means the submission outcome could not be observed.
	StatusUnknown Status = "unknown"
)

// Result reports what happened to a transaction.
type Result struct {
	Success     bool        `json:"success"`
	Status      Status      `json:"status"`
	Hash        string      `json:"hash,omitempty"`
	Ledger      int32       `json:"ledger,omitempty"`
	EnvelopeXDR string      `json:"envelope_xdr,omitempty"`
	Code        errors.Code `json:"code,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}

// Keys is the part of the vault the pipeline needs.
type Keys interface {
	Get(identity string) (string, error)
	Contains(identity string) bool
}

// AccountReader loads source accounts.
type AccountReader interface {
	Account(ctx context.Context, id string) (ledger.Account, error)
}

// Plan produces the operations once the source account is loaded.
type Plan func(ctx context.Context, source ledger.Account) ([]ledger.Operation, error)

// Request is one pipeline run.
type Request struct {
	Source   string
	Action   string
	AutoSign bool
	Plan     Plan
}

// Pipeline is safe for concurrent use; runs share no state besides the vault.
type Pipeline struct {
	keys      Keys
	accounts  AccountReader
	codec     ledger.Codec
	submitter ledger.Submitter
	journal   journal.Store
	events    events.Publisher
	alerts    alerting.Dispatcher
	log       *slog.Logger
}

// Option configures optional sinks.
type Option func(*Pipeline)

// WithJournal records every submission.
func WithJournal(store journal.Store) Option { return func(p *Pipeline) { p.journal = store } }

// WithEvents publishes every submission.
func WithEvents(pub events.Publisher) Option { return func(p *Pipeline) { p.events = pub } }

// WithAlerts raises alerts for rejected and undetermined submissions.
func WithAlerts(d alerting.Dispatcher) Option { return func(p *Pipeline) { p.alerts = d } }

// New creates a Pipeline.
func New(keys Keys, accounts AccountReader, codec ledger.Codec, submitter ledger.Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		keys:      keys,
		accounts:  accounts,
		codec:     codec,
		submitter: submitter,
		log:       logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes req. Failures before submission are returned as errors and
// leave no trace on the ledger. Once submitted, the outcome is always a
// Result.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.Plan == nil {
		return Result{}, errors.New(errors.CodeInvalidArgument, "pipeline request has no plan")
	}
	if req.AutoSign && !p.keys.Contains(req.Source) {
		return Result{}, errors.New(errors.CodeUnknownIdentity, "", errors.WithMetadata("identity", req.Source))
	}

	account, err := p.accounts.Account(ctx, req.Source)
	if err != nil {
		return Result{}, err
	}
	ops, err := req.Plan(ctx, account)
	if err != nil {
		return Result{}, err
	}
	unsigned, err := p.codec.Build(account, ops)
	if err != nil {
		return Result{}, err
	}
	if !req.AutoSign {
		p.log.Debug("returning unsigned envelope", "action", req.Action, "hash", unsigned.Hash)
		return Result{Success: true, Status: StatusBuilt, Hash: unsigned.Hash, EnvelopeXDR: unsigned.XDR}, nil
	}

	signed, err := p.sign(req.Source, unsigned.XDR)
	if err != nil {
		return Result{}, err
	}
	return p.submit(ctx, req.Source, req.Action, signed), nil
}

// Sign signs an externally built envelope with the key held for identity.
func (p *Pipeline) Sign(identity, envelopeXDR string) (ledger.Envelope, error) {
	return p.sign(identity, envelopeXDR)
}

// Submit sends an already signed envelope.
func (p *Pipeline) Submit(ctx context.Context, source, action, envelopeXDR string) Result {
	envelope := ledger.Envelope{XDR: envelopeXDR}
	if hash, err := p.codec.Hash(envelopeXDR); err == nil {
		envelope.Hash = hash
	}
	return p.submit(ctx, source, action, envelope)
}

func (p *Pipeline) sign(identity, envelopeXDR string) (ledger.Envelope, error) {
	credential, err := p.keys.Get(identity)
	if err != nil {
		return ledger.Envelope{}, err
	}
	return p.codec.Sign(envelopeXDR, credential)
}

func (p *Pipeline) submit(ctx context.Context, source, action string, signed ledger.Envelope) Result {
	resp, err := p.submitter.Submit(ctx, signed.XDR)
	result := Result{Hash: signed.Hash}
	switch {
	case err == nil:
		result.Success = true
		result.Status = StatusAccepted
		result.Ledger = resp.Ledger
		if resp.Hash != "" {
			result.Hash = resp.Hash
		}
	case errors.HasCode(err, errors.CodeTransport) || errors.HasCode(err, errors.CodeUnknown):
		result.Status = StatusUnknown
		result.Code = errors.CodeTransport
		result.Detail = errors.Ensure(err).Detail() + "; outcome unknown, check ledger before resubmitting"
	default:
		coded := errors.Ensure(err)
		result.Status = StatusRejected
		result.Code = coded.Code()
		result.Detail = coded.Detail()
	}

	p.report(ctx, source, action, signed, result, err)
	return result
}

// report feeds the sinks. Their failures never alter the result.
func (p *Pipeline) report(ctx context.Context, source, action string, signed ledger.Envelope, result Result, submitErr error) {
	ctx = context.WithoutCancel(ctx)
	metrics.ObserveSubmission(action, string(result.Status))

	attrs := []any{"source", source, "action", action, "status", result.Status, "hash", result.Hash}
	logger.Audit().Info("transaction_submitted", attrs...)
	if result.Success {
		p.log.Info("transaction accepted", append(attrs, "ledger", result.Ledger)...)
	} else {
		p.log.Warn("transaction not accepted", append(attrs, "code", result.Code, "detail", result.Detail)...)
	}

	if p.journal != nil {
		entry := journal.Entry{
			Source: source, Action: action, Status: string(result.Status), Hash: result.Hash,
			Ledger: result.Ledger, Code: string(result.Code), Detail: result.Detail, EnvelopeXDR: signed.XDR,
		}
		if err := p.journal.Record(ctx, entry); err != nil {
			p.log.Error("journal write failed", "hash", result.Hash, "error", err)
		}
	}
	if p.events != nil {
		event := events.NewSubmission(source, action, string(result.Status), result.Hash, result.Ledger, string(result.Code))
		if err := p.events.Publish(ctx, event); err != nil {
			p.log.Error("event publish failed", "hash", result.Hash, "error", err)
		}
	}
	if p.alerts != nil && submitErr != nil && errors.ShouldAlert(submitErr) {
		event := alerting.Event{
			Code:       result.Code,
			Message:    result.Detail,
			Severity:   errors.SeverityOf(submitErr),
			Source:     source,
			Action:     action,
			Hash:       result.Hash,
			OccurredAt: time.Now().UTC(),
		}
		if e, ok := errors.From(submitErr); ok {
			event.Metadata = e.Metadata()
		}
		if err := p.alerts.Notify(ctx, event); err != nil {
			p.log.Error("alert dispatch failed", "hash", result.Hash, "error", err)
		}
	}
}
