package session

import (
	"context"
	"fmt"
	"sort"

	"tradebridge/config"
	"tradebridge/exchange"
	"tradebridge/exchange/hyperliquid"
	"tradebridge/exchange/okx"
	"tradebridge/internal/channel"
	"tradebridge/internal/symbols"
	"tradebridge/logger"
	"tradebridge/models"
	"tradebridge/signer"
	"tradebridge/transport"
)

// Session fans several exchange Services into one event queue and routes
// caller traffic by exchange name.
type Session struct {
	services map[string]*Service
	events   *channel.Events
	log      *logger.Log
}

// Status is the externally visible state of one Service.
type Status struct {
	Exchange string                `json:"exchange"`
	State    State                 `json:"state"`
	Intents  []models.Subscription `json:"intents"`
}

func New(events *channel.Events, services ...*Service) *Session {
	s := &Session{
		services: make(map[string]*Service, len(services)),
		events:   events,
		log:      logger.GetLogger(),
	}
	for _, svc := range services {
		s.services[svc.Name()] = svc
	}
	return s
}

// NewProtocol builds the dialect for kind from its configuration.
func NewProtocol(kind exchange.Kind, cfg config.ExchangeConfig) (exchange.Protocol, error) {
	switch kind {
	case exchange.Hyperliquid:
		return hyperliquid.New(hyperliquid.Options{
			Testnet: cfg.Testnet,
			Assets:  symbols.NewAssetTable(cfg.Assets),
		}), nil
	case exchange.Okx:
		return okx.New(okx.Options{}), nil
	}
	return nil, fmt.Errorf("unsupported exchange %q", kind)
}

// Build creates one Service per enabled exchange, all publishing on events.
func Build(cfg *config.Config, events *channel.Events, credentials func(name string) signer.Credentials) (*Session, error) {
	var services []*Service
	for _, name := range cfg.Exchanges.EnabledNames() {
		kind, err := exchange.ParseKind(name)
		if err != nil {
			return nil, err
		}
		ex := cfg.Exchanges.Enabled()[name]
		protocol, err := NewProtocol(kind, ex)
		if err != nil {
			return nil, err
		}
		services = append(services, NewService(Options{
			Protocol:    protocol,
			Config:      ex,
			Credentials: credentials(name),
			Dialer:      transport.WebsocketDialer{Name: name},
			Requester: transport.NewRESTClient(transport.RESTOptions{
				Exchange:          name,
				BaseURL:           ex.RestURL,
				UserAgent:         cfg.Service.Name + "/" + cfg.Service.Version,
				Timeout:           ex.RequestTimeout,
				RequestsPerSecond: ex.RateLimit.RequestsPerSecond,
				BurstSize:         ex.RateLimit.BurstSize,
			}),
			Events: events,
		}))
	}
	return New(events, services...), nil
}

// Start starts every Service. When one fails the ones already started are
// stopped again.
func (s *Session) Start(ctx context.Context) error {
	started := make([]*Service, 0, len(s.services))
	for _, name := range s.names() {
		svc := s.services[name]
		if err := svc.Start(ctx); err != nil {
			for _, done := range started {
				done.Stop()
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, svc)
	}
	s.log.WithComponent("session").WithFields(logger.Fields{"exchanges": s.names()}).Info("session started")
	return nil
}

// Stop stops every Service and closes the event queue.
func (s *Session) Stop() {
	for _, name := range s.names() {
		s.services[name].Stop()
	}
	s.events.Close()
	s.log.WithComponent("session").Info("session stopped")
}

func (s *Session) Events() <-chan models.Event {
	return s.events.C
}

func (s *Session) Service(name string) (*Service, bool) {
	svc, ok := s.services[name]
	return svc, ok
}

func (s *Session) service(name string) (*Service, error) {
	svc, ok := s.services[name]
	if !ok {
		return nil, fmt.Errorf("exchange %q is not configured", name)
	}
	return svc, nil
}

// Subscribe routes each intent to the Service of its exchange.
func (s *Session) Subscribe(subs ...models.Subscription) error {
	grouped := map[string][]models.Subscription{}
	for _, sub := range subs {
		if _, err := s.service(sub.Exchange); err != nil {
			return err
		}
		grouped[sub.Exchange] = append(grouped[sub.Exchange], sub)
	}
	for name, group := range grouped {
		if err := s.services[name].Subscribe(group...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Unsubscribe(sub models.Subscription) error {
	svc, err := s.service(sub.Exchange)
	if err != nil {
		return err
	}
	return svc.Unsubscribe(sub)
}

func (s *Session) SendRequest(ctx context.Context, req models.Request) error {
	svc, err := s.service(req.Exchange)
	if err != nil {
		return err
	}
	return svc.SendRequest(ctx, req)
}

// Statuses reports every Service sorted by exchange name.
func (s *Session) Statuses() []Status {
	out := make([]Status, 0, len(s.services))
	for _, name := range s.names() {
		svc := s.services[name]
		out = append(out, Status{Exchange: name, State: svc.State(), Intents: svc.Intents()})
	}
	return out
}

func (s *Session) names() []string {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
