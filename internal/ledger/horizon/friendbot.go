package horizon

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/ledger"
)

// Friendbot funds accounts on the test network.
type Friendbot struct {
	http *resty.Client
}

var _ ledger.Faucet = (*Friendbot)(nil)

// NewFriendbot creates a faucet client for url.
func NewFriendbot(url string, timeout time.Duration) *Friendbot {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Friendbot{http: resty.New().
		SetBaseURL(strings.TrimRight(url, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")}
}

// Fund asks friendbot to create and fund identity.
func (f *Friendbot) Fund(ctx context.Context, identity string) error {
	var problem problemJSON
	resp, err := f.http.R().
		SetContext(ctx).
		SetQueryParam("addr", identity).
		SetError(&problem).
		Get("/")
	if err != nil {
		return errors.Wrap(errors.CodeTransport, err, "friendbot")
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == 400 {
		detail := problem.Detail
		if codes := problem.resultCodes(); codes != "" {
			detail = codes
		}
		return errors.New(errors.CodeInvalidOperation, "friendbot refused funding: "+detail,
			errors.WithMetadata("identity", identity))
	}
	return statusError(resp.StatusCode(), problem, "friendbot")
}
