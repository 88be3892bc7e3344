package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetalert/engine/internal/adminapi"
	"github.com/fleetalert/engine/internal/auth"
	"github.com/fleetalert/engine/internal/broadcast"
	"github.com/fleetalert/engine/internal/config"
	"github.com/fleetalert/engine/internal/dispatch"
	"github.com/fleetalert/engine/internal/evaluator"
	"github.com/fleetalert/engine/internal/ledger"
	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
	"github.com/fleetalert/engine/internal/notifier"
	"github.com/fleetalert/engine/internal/rulecache"
	"github.com/fleetalert/engine/internal/store/postgres"
	"github.com/fleetalert/engine/internal/syslogintake"
	"github.com/fleetalert/engine/internal/topology"
	"github.com/fleetalert/engine/internal/wsapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alerting engine",
	Long: `serve wires the rule cache, evaluator, event dispatcher, and
subscriber transports together and runs until interrupted.

Fact deliveries arrive on an internal channel fed by the external fact
collector (out of scope for this binary, per the engine's component
boundary); syslog records arrive over the UDP listener this command owns.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file overlaying environment defaults")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path, cfg)
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.New(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	defer store.Close()

	rules := rulecache.New(store, logger, rulecache.WithTTL(cfg.RuleCacheTTL))
	if err := rules.Reload(ctx, true); err != nil {
		return fmt.Errorf("initial rule cache load: %w", err)
	}

	topo, err := topology.Load(ctx, logger, store)
	if err != nil {
		return fmt.Errorf("initial topology load: %w", err)
	}

	sustained := ledger.New()
	eval := evaluator.New(rules, sustained, topo, logger)

	registry := broadcast.New(
		broadcast.WithSendMetrics(metrics.SubscriberSendsTotal.Inc, metrics.SubscriberDropsTotal.Inc),
	)

	var sideChannel dispatch.Notifier
	if cfg.ChatWebhookURL != "" {
		webhook, err := notifier.New(cfg.ChatWebhookURL)
		if err != nil {
			return fmt.Errorf("init chat notifier: %w", err)
		}
		sideChannel = webhook
		// The chat notifier also receives every raised event as a plain
		// broadcast subscriber (spec.md §4.5's "internal listeners").
		chatClosed := make(chan struct{})
		chatEvents := make(chan model.Event, config.DefaultChannelCapacity)
		registry.Add(broadcast.Handle{Events: chatEvents, Closed: chatClosed})
		go func() {
			for evt := range chatEvents {
				webhook.Broadcast(evt)
			}
		}()
	}

	events := make(chan model.Event, cfg.EventChannelCapacity)
	disp := dispatch.New(store, registry, sideChannel, logger)

	deliveries := make(chan model.Delivery, cfg.FactChannelCapacity)
	syslogRecords := make(chan model.SyslogRecord, cfg.SyslogChannelCapacity)

	listener, err := syslogintake.Listen(cfg.SyslogListenAddr, syslogRecords, logger)
	if err != nil {
		return fmt.Errorf("start syslog listener: %w", err)
	}
	defer listener.Close()

	var verifier *auth.Verifier
	if cfg.JWTSigningKey != "" {
		verifier, err = auth.NewVerifier(cfg.JWTSigningKey, 30*time.Second)
		if err != nil {
			return fmt.Errorf("init jwt verifier: %w", err)
		}
	}
	var wsVerifier wsapi.Verifier
	if verifier != nil {
		wsVerifier = verifier
	}
	wsServer := wsapi.NewServer(registry, wsVerifier, logger)

	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminapi.NewRouter(rules)}
	wsHTTPServer := &http.Server{Addr: cfg.WebsocketAddr, Handler: wsServer}

	var wg sync.WaitGroup
	runGroup := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && ctx.Err() == nil {
				logger.Error(err, "component exited unexpectedly", logging.String("component", name))
				cancel()
			}
		}()
	}

	runGroup("syslog-listener", func() error { return listener.Run(ctx) })
	runGroup("evaluator-facts", func() error { return eval.RunFacts(ctx, deliveries, events) })
	runGroup("evaluator-syslog", func() error { return eval.RunSyslog(ctx, syslogRecords, events) })
	runGroup("dispatcher", func() error { return disp.Run(ctx) })

	// Bridge the evaluator's shared event channel into the dispatcher's
	// own channel, the dispatcher being the sole owner of the latter, which
	// it never closes (internal/dispatch's single-owner channel discipline).
	runGroup("event-bridge", func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case evt := <-events:
				select {
				case disp.Events() <- evt:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})

	runGroup("admin-api", func() error {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	runGroup("websocket-api", func() error {
		if err := wsHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	logger.Info("fleetalertd started",
		logging.String("admin_addr", cfg.AdminAddr),
		logging.String("websocket_addr", cfg.WebsocketAddr),
		logging.String("syslog_addr", cfg.SyslogListenAddr),
	)

	<-ctx.Done()
	logger.Info("fleetalertd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = adminServer.Shutdown(shutdownCtx)
	_ = wsHTTPServer.Shutdown(shutdownCtx)

	wg.Wait()
	return nil
}
