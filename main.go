package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradebridge/config"
	"tradebridge/exchange/hyperliquid"
	"tradebridge/exchange/okx"
	"tradebridge/internal/channel"
	"tradebridge/internal/metrics"
	"tradebridge/internal/status"
	"tradebridge/logger"
	"tradebridge/models"
	"tradebridge/session"
	"tradebridge/signer"
)

// requiredCredentials lists the secrets each exchange needs for private
// streams and execution.
var requiredCredentials = map[string][]string{
	"hyperliquid": {hyperliquid.CredentialWalletAddress, hyperliquid.CredentialPrivateKey},
	"okx":         {okx.CredentialKey, okx.CredentialSecret, okx.CredentialPassphrase},
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file")
	subscriptionsPath := flag.String("subscriptions", "", "Path to subscription file")
	printEvents := flag.Bool("print", false, "Write every event to stdout as JSON")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service":   cfg.Service.Name,
		"version":   cfg.Service.Version,
		"env":       env,
		"exchanges": cfg.Exchanges.EnabledNames(),
	}).Info("starting tradebridge")

	if cfg.CloudWatch.Enabled {
		logger.InitCloudWatch(logger.CloudWatchOptions{
			Region:          cfg.CloudWatch.Region,
			Namespace:       cfg.CloudWatch.Namespace,
			Dashboard:       cfg.CloudWatch.Dashboard,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
		})
	}

	credentials := map[string]signer.Credentials{}
	for _, name := range cfg.Exchanges.EnabledNames() {
		creds := signer.Credentials(config.LoadCredentials(name))
		if err := creds.Require(requiredCredentials[name]...); err != nil {
			entry := log.WithExchange(name).WithError(err)
			if config.IsProductionLike(env) {
				entry.Error("missing exchange credentials")
				os.Exit(1)
			}
			entry.Warn("exchange credentials incomplete; private streams and execution will fail")
		}
		credentials[name] = creds
	}

	subs, err := config.LoadSubscriptions(config.ResolveSubscriptionsPath(*subscriptionsPath))
	if err != nil {
		log.WithError(err).Error("failed to load subscriptions")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.StartReport(ctx, log, cfg.Service.ReportInterval)

	metrics.Init()
	events := channel.NewEvents(cfg.Channels.EventBuffer)
	metrics.StartQueueMetrics(ctx, events, 5*time.Second)

	sess, err := session.Build(cfg, events, func(name string) signer.Credentials { return credentials[name] })
	if err != nil {
		log.WithError(err).Error("failed to build session")
		os.Exit(1)
	}
	if err := sess.Subscribe(subs...); err != nil {
		log.WithError(err).Error("invalid subscription")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(sess.Events(), log, *printEvents)
	}()

	if srv := status.NewServer(cfg.Status, sess, events.Len, log); srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("status server failed")
			}
		}()
	}

	if err := sess.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start session")
		os.Exit(1)
	}
	log.WithFields(logger.Fields{"subscriptions": len(subs)}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()
	sess.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	stats := events.GetStats()
	log.WithFields(logger.Fields{"sent": stats.Sent, "dropped": stats.Dropped}).Info("tradebridge stopped")
}

// consume drains the event queue until it is closed.
func consume(events <-chan models.Event, log *logger.Log, echo bool) {
	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		if echo {
			if err := enc.Encode(ev); err != nil {
				log.WithError(err).Warn("failed to write event")
			}
		}
		entry := log.WithComponent("consumer").WithExchange(ev.Exchange).WithFields(logger.Fields{
			"type":     ev.Type,
			"messages": len(ev.Messages),
		})
		switch ev.Type {
		case models.EventTypeSubscriptionData:
			entry.Debug("event")
		default:
			entry.WithField("message_types", messageTypes(ev)).Info("event")
		}
	}
}

func messageTypes(ev models.Event) string {
	types := make([]string, 0, len(ev.Messages))
	for _, m := range ev.Messages {
		types = append(types, string(m.Type))
	}
	return strings.Join(types, ",")
}
