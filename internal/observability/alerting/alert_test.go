package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "OpenMCP-Stellar/internal/errors"
)

func TestFanoutDeliversToWebhookAndSlack(t *testing.T) {
	var webhook Event
	var slack map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hook":
			_ = json.NewDecoder(r.Body).Decode(&webhook)
		case "/slack":
			_ = json.NewDecoder(r.Body).Decode(&slack)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewFanout(
		NewWebhookNotifier(srv.URL+"/hook", time.Second),
		NewSlackNotifier(srv.URL+"/slack", "#trading", time.Second),
		nil,
	)
	if got := d.Channels(); len(got) != 2 {
		t.Fatalf("unexpected channels %v", got)
	}

	event := Event{
		Code:     xerrors.CodeTransport,
		Message:  "connection reset; check ledger",
		Severity: xerrors.SeverityCritical,
		Source:   "GSRC",
		Action:   "sell",
		Hash:     "abc",
	}
	if err := d.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if webhook.Hash != "abc" || webhook.Code != xerrors.CodeTransport {
		t.Fatalf("unexpected webhook payload %+v", webhook)
	}
	if slack["channel"] != "#trading" || !strings.Contains(slack["text"], "TRANSPORT_ERROR") {
		t.Fatalf("unexpected slack payload %v", slack)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewFanout(NewWebhookNotifier(srv.URL, time.Second))
	if err := d.Notify(context.Background(), Event{Code: xerrors.CodeLedgerRejected}); err == nil {
		t.Fatalf("expected error from failing webhook")
	}
	var nilDispatcher *FanoutDispatcher
	if err := nilDispatcher.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("nil dispatcher must be a no-op: %v", err)
	}
}
