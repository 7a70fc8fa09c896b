package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"OpenMCP-Stellar/internal/accounts"
	"OpenMCP-Stellar/internal/api"
	"OpenMCP-Stellar/internal/auth"
	"OpenMCP-Stellar/internal/config"
	"OpenMCP-Stellar/internal/events"
	"OpenMCP-Stellar/internal/idempotency"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/internal/ledger/provider"
	"OpenMCP-Stellar/internal/market"
	"OpenMCP-Stellar/internal/mcpserver"
	"OpenMCP-Stellar/internal/observability/alerting"
	"OpenMCP-Stellar/internal/observability/metrics"
	"OpenMCP-Stellar/internal/orders"
	"OpenMCP-Stellar/internal/pipeline"
	"OpenMCP-Stellar/internal/storage/mysql"
	"OpenMCP-Stellar/internal/tools"
	"OpenMCP-Stellar/internal/trading"
	"OpenMCP-Stellar/internal/vault"
	"OpenMCP-Stellar/pkg/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("stellarmcpd: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if cfg.Server.Transport != "http" {
		cfg.Logging.OutputPaths = withoutStdout(cfg.Logging.OutputPaths)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	appLog := logger.Named("main")

	networks, err := provider.NewRegistry(cfg.Network, cfg.Trading)
	if err != nil {
		return err
	}
	network, err := networks.Default()
	if err != nil {
		return err
	}

	keys, err := openVault(cfg.Vault)
	if err != nil {
		return err
	}
	defer keys.Close()

	store, err := openJournal(ctx, cfg.Storage.Journal)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := openEvents(ctx, cfg.Storage.Events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	opts := []pipeline.Option{pipeline.WithJournal(store), pipeline.WithEvents(publisher)}
	if dispatcher := newAlerts(cfg.Alerting); dispatcher != nil {
		opts = append(opts, pipeline.WithAlerts(dispatcher))
		appLog.Info("alerting enabled", "channels", dispatcher.Channels())
	}
	runner := pipeline.New(keys, network.Client, network.Codec, network.Client, opts...)

	registry := tools.New(tools.Deps{
		NetworkName: network.Name,
		Accounts:    accounts.NewManager(keys, network.Client, network.Faucet),
		Trading: trading.NewService(runner,
			orders.NewBuilder(network.Client),
			market.NewExecutor(network.Client, cfg.Trading.OrderBookDepth),
			network.Client),
		Trustlines: trading.NewTrustlineManager(runner),
		Books:      network.Client,
		Network:    network.Client,
		Signer:     runner,
		Journal:    store,
	})

	appLog.Info("stellarmcpd starting",
		"version", version,
		"network", network.Name,
		"horizon", network.Definition.HorizonURL,
		"transport", cfg.Server.Transport,
		"custodied_accounts", len(keys.List()),
	)

	group, ctx := errgroup.WithContext(ctx)
	if cfg.Server.Transport == "stdio" || cfg.Server.Transport == "both" {
		server := mcpserver.New(registry, version)
		group.Go(func() error { return server.ServeStdio(ctx, os.Stdin, os.Stdout) })
	}
	if cfg.Server.Transport == "http" || cfg.Server.Transport == "both" {
		server, closer, err := newHTTPServer(ctx, cfg.Server, cfg.Storage.Idempotency, registry)
		if err != nil {
			return err
		}
		defer closer.Close()
		group.Go(func() error { return server.Start(ctx) })
	}
	if addr := cfg.Server.MetricsAddress; addr != "" {
		appLog.Info("serving metrics", "address", addr)
		group.Go(func() error { return metrics.StartServer(ctx, addr) })
	}
	return group.Wait()
}

func withoutStdout(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "stdout" {
			out = append(out, p)
		}
	}
	return out
}

func openVault(cfg config.VaultConfig) (*vault.Vault, error) {
	if cfg.Driver != "badger" {
		return vault.New()
	}
	key, err := vault.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	backend, err := vault.OpenBadger(vault.BadgerOptions{Path: cfg.Path, EncryptionKey: key})
	if err != nil {
		return nil, err
	}
	v, err := vault.New(vault.WithBackend(backend))
	if err != nil {
		backend.Close()
		return nil, err
	}
	return v, nil
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Store, error) {
	if cfg.Driver != "mysql" {
		return journal.NewMemoryStore(0), nil
	}
	return mysql.NewJournalStore(ctx, mysql.Config{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	})
}

func openEvents(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "redis":
		return events.NewRedisPublisher(ctx, events.RedisConfig{URL: cfg.URL, Stream: cfg.Topic, MaxLen: 10000})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{URL: cfg.URL, Queue: cfg.Topic})
	case "none":
		return events.Nop{}, nil
	default:
		return events.NewMemoryPublisher(0), nil
	}
}

func newAlerts(cfg config.AlertingConfig) *alerting.FanoutDispatcher {
	var notifiers []alerting.Notifier
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, alerting.NewWebhookNotifier(cfg.WebhookURL, 0))
	}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, alerting.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackChannel, 0))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return alerting.NewFanout(notifiers...)
}

func newHTTPServer(ctx context.Context, cfg config.ServerConfig, idem config.IdempotencyConfig, registry *tools.Registry) (*api.Server, io.Closer, error) {
	authService, err := auth.NewService(cfg.APITokens)
	if err != nil {
		return nil, nil, err
	}
	var store idempotency.Store = idempotency.NewMemoryStore()
	if idem.Driver == "redis" {
		store, err = idempotency.NewRedisStore(ctx, idem.RedisURL)
		if err != nil {
			return nil, nil, err
		}
	}
	ttl := time.Duration(cfg.IdempotencyTTL) * time.Second
	if authService.Mode() == auth.ModeDisabled {
		logger.Named("main").Warn("HTTP API has no tokens configured; every caller can trade custodied accounts")
	}
	return api.NewServer(cfg.Address, registry, api.WithAuth(authService), api.WithIdempotency(store, ttl)), store, nil
}
