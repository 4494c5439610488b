package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"tradebridge/config"
	"tradebridge/exchange"
	"tradebridge/exchange/hyperliquid"
	"tradebridge/exchange/okx"
	"tradebridge/internal/channel"
	"tradebridge/models"
	"tradebridge/signer"
)

func TestSessionRoutesByExchange(t *testing.T) {
	events := channel.NewEvents(64)
	hlDialer, okxDialer := &fakeDialer{}, &fakeDialer{}
	hl, err := NewProtocol(exchange.Hyperliquid, config.ExchangeConfig{Assets: map[string]int{"BTC": 0}})
	if err != nil {
		t.Fatalf("protocol: %v", err)
	}
	s := New(events,
		NewService(Options{Protocol: hl, Config: testExchangeConfig(config.ExecutionModeREST), Dialer: hlDialer, Events: events}),
		NewService(Options{Protocol: okx.New(okx.Options{}), Config: testExchangeConfig(config.ExecutionModeREST), Dialer: okxDialer, Events: events}),
	)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	err = s.Subscribe(
		models.Subscription{Exchange: "okx", SymbolID: "BTC-USDT", Field: models.SubscriptionFieldTrade, CorrelationID: "o1"},
		models.Subscription{Exchange: "hyperliquid", SymbolID: "BTC", Field: models.SubscriptionFieldTrade, CorrelationID: "h1"},
	)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := s.Subscribe(models.Subscription{Exchange: "binance", SymbolID: "BTCUSDT", Field: models.SubscriptionFieldTrade}); err == nil {
		t.Fatalf("unknown exchange must be rejected")
	}

	waitFor(t, "both subscribed", func() bool {
		return hlDialer.count() == 1 && okxDialer.count() == 1 &&
			len(hlDialer.conn(0).frames()) == 1 && len(okxDialer.conn(0).frames()) == 1
	})
	if got := okxDialer.conn(0).frames()[0]; got != `{"op":"subscribe","args":[{"channel":"trades","instId":"BTC-USDT"}]}` {
		t.Fatalf("unexpected okx frame %s", got)
	}

	statuses := s.Statuses()
	if len(statuses) != 2 || statuses[0].Exchange != "hyperliquid" || statuses[1].Exchange != "okx" {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
	if len(statuses[1].Intents) != 1 || statuses[1].Intents[0].CorrelationID != "o1" {
		t.Fatalf("unexpected okx intents %+v", statuses[1].Intents)
	}

	if err := s.SendRequest(context.Background(), models.Request{Exchange: "kraken", Operation: models.OperationGetOpenOrders}); err == nil {
		t.Fatalf("unknown exchange request must be rejected")
	}
}

func TestBuildFromConfig(t *testing.T) {
	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "tradebridge", Version: "test"},
		Exchanges: config.ExchangesConfig{
			Hyperliquid: config.ExchangeConfig{Enabled: true, WebsocketURL: "wss://a/ws", RestURL: "https://a", RequestTimeout: time.Second},
		},
	}
	s, err := Build(cfg, channel.NewEvents(1), func(string) signer.Credentials { return nil })
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := s.Service("hyperliquid"); !ok {
		t.Fatalf("hyperliquid service missing")
	}
	if _, ok := s.Service("okx"); ok {
		t.Fatalf("disabled exchange must not be built")
	}
}

func TestStopWithRequestsInFlight(t *testing.T) {
	for round := 0; round < 50; round++ {
		events := channel.NewEvents(8)
		svc := NewService(Options{
			Protocol:    hyperliquid.New(hyperliquid.Options{}),
			Config:      testExchangeConfig(config.ExecutionModeREST),
			Credentials: signer.Credentials{hyperliquid.CredentialWalletAddress: testWallet},
			Dialer:      &fakeDialer{},
			Requester:   &fakeRequester{status: http.StatusOK, body: `[]`},
			Events:      events,
		})
		s := New(events, svc)
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}

		go func() {
			for range events.C {
			}
		}()
		done := make(chan struct{})
		go func() {
			defer close(done)
			req := models.Request{Exchange: "hyperliquid", Operation: models.OperationGetOpenOrders, CorrelationID: "r1"}
			for svc.SendRequest(context.Background(), req) == nil {
			}
		}()

		time.Sleep(time.Millisecond)
		s.Stop()
		<-done

		if svc.State() != StateShutdown {
			t.Fatalf("round %d: unexpected state %s", round, svc.State())
		}
		if events.Send(context.Background(), models.Event{}) {
			t.Fatalf("round %d: queue must refuse events after stop", round)
		}
	}
}
