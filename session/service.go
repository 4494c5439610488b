// Package session runs exchange connections: it dials, replays subscription
// intents, dispatches inbound frames through the exchange dialect and sends
// signed execution requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"tradebridge/config"
	"tradebridge/exchange"
	"tradebridge/internal/channel"
	"tradebridge/internal/decimal"
	"tradebridge/internal/metrics"
	"tradebridge/internal/registry"
	"tradebridge/logger"
	"tradebridge/models"
	"tradebridge/signer"
	"tradebridge/transport"
)

// Options wire one exchange Service.
type Options struct {
	Protocol    exchange.Protocol
	Config      config.ExchangeConfig
	Credentials signer.Credentials
	Dialer      transport.Dialer
	Requester   transport.Requester
	Events      *channel.Events
	Now         func() time.Time
}

// Service owns the connection, the per-connection registry and the
// subscription intents of one exchange.
type Service struct {
	name      string
	protocol  exchange.Protocol
	cfg       config.ExchangeConfig
	creds     signer.Credentials
	dialer    transport.Dialer
	requester transport.Requester
	events    *channel.Events
	now       func() time.Time

	registry *registry.Registry
	intents  *registry.IntentSet
	nonces   *signer.NonceSource
	state    *stateMachine

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// subMu serializes intent replay with live Subscribe and Unsubscribe.
	subMu  sync.Mutex
	linkMu sync.RWMutex
	link   *link

	postSeq int64
	postMu  sync.Mutex
	pending map[int64]pendingPost

	log *logger.Entry
}

// link is one live connection. sent holds the intent keys subscribed on it.
type link struct {
	conn   transport.Connection
	id     registry.ConnectionID
	ctx    context.Context
	cancel context.CancelFunc
	sent   map[string]struct{}
}

type pendingPost struct {
	req  models.Request
	conn registry.ConnectionID
}

func NewService(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	name := string(opts.Protocol.Kind())
	return &Service{
		name:      name,
		protocol:  opts.Protocol,
		cfg:       opts.Config,
		creds:     opts.Credentials,
		dialer:    opts.Dialer,
		requester: opts.Requester,
		events:    opts.Events,
		now:       now,
		registry:  registry.New(),
		intents:   registry.NewIntentSet(),
		nonces:    signer.NewNonceSource(),
		state:     newStateMachine(),
		pending:   make(map[int64]pendingPost),
		log:       logger.GetLogger().WithComponent("session").WithExchange(name),
	}
}

func (s *Service) Name() string {
	return s.name
}

func (s *Service) State() State {
	return s.state.get()
}

// Intents returns the caller-facing subscriptions in insertion order.
func (s *Service) Intents() []models.Subscription {
	return s.intents.List()
}

// Events is the queue the Service publishes on.
func (s *Service) Events() <-chan models.Event {
	return s.events.C
}

// Start loads exchange metadata when the dialect needs it and launches the
// connection loop. It returns once the loop is running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("%s session already running", s.name)
	}
	if s.state.get() == StateShutdown {
		s.mu.Unlock()
		return fmt.Errorf("%s session is shut down", s.name)
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	s.loadMetadata(s.ctx)

	s.log.WithFields(logger.Fields{"url": s.cfg.WebsocketURL, "execution_mode": s.cfg.ExecutionMode}).Info("starting session")
	go s.run()
	return nil
}

// Stop closes the connection, waits for every goroutine and moves the
// Service to SHUTDOWN.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.log.Info("stopping session")
	cancel()
	s.wg.Wait()
	s.log.Info("session stopped")
}

// acquire counts one unit of caller work against wg. It fails once Stop has
// begun, so Stop's Wait covers every goroutine that may still publish. The
// caller releases with wg.Done.
func (s *Service) acquire() (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, false
	}
	s.wg.Add(1)
	return s.ctx, true
}

func (s *Service) loadMetadata(ctx context.Context) {
	loader, ok := s.protocol.(exchange.MetadataLoader)
	if !ok || s.requester == nil || !s.cfg.ResolveAssets {
		return
	}
	log := s.log.WithFields(logger.Fields{"operation": "load_metadata"})

	out := loader.MetadataRequest()
	payload, err := out.Payload()
	if err != nil {
		log.WithError(err).Warn("failed to encode metadata request")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	status, body, err := s.requester.Do(ctx, out.Method, out.RequestPath(), out.Headers, payload)
	if err != nil {
		log.WithError(err).Warn("metadata request failed")
		return
	}
	if status >= http.StatusBadRequest {
		log.WithFields(logger.Fields{"status": status}).Warn("metadata request rejected")
		return
	}
	if err := loader.LoadMetadata(body); err != nil {
		log.WithError(err).Warn("failed to load metadata")
		return
	}
	log.Info("exchange metadata loaded")
}

func (s *Service) transition(to State) {
	from, err := s.state.move(to)
	if err != nil {
		s.log.WithError(err).Warn("rejected state transition")
		return
	}
	s.log.WithFields(logger.Fields{"from": from, "to": to}).Debug("state changed")
	metrics.ObserveState(s.name, string(to), to == StateSubscribed)
}

func (s *Service) run() {
	defer s.wg.Done()
	defer s.transition(StateShutdown)

	log := s.log.WithFields(logger.Fields{"worker": "connection_loop"})
	first := true
	for {
		if s.ctx.Err() != nil {
			return
		}
		if !first {
			s.transition(StateReconnecting)
			metrics.ObserveReconnect(s.name)
		}
		first = false

		s.transition(StateConnecting)
		conn, err := s.dialer.Dial(s.ctx, s.cfg.WebsocketURL)
		if err != nil {
			s.transition(StateDisconnected)
			log.WithError(err).Warn("failed to connect websocket, retrying")
			if !s.sleep(s.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		s.transition(StateConnected)
		err = s.serve(conn)
		s.transition(StateDisconnected)
		if s.ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("connection lost, reconnecting")
		if !s.sleep(s.cfg.ReconnectDelay) {
			return
		}
	}
}

func (s *Service) sleep(d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Service) currentLink() *link {
	s.linkMu.RLock()
	defer s.linkMu.RUnlock()
	return s.link
}

func (s *Service) setLink(l *link) {
	s.linkMu.Lock()
	s.link = l
	s.linkMu.Unlock()
}

// serve runs one connection until it fails or the Service stops. Inbound
// frames are handled one at a time, in arrival order.
func (s *Service) serve(conn transport.Connection) error {
	ctx, cancel := context.WithCancel(s.ctx)
	l := &link{
		conn:   conn,
		id:     registry.ConnectionID(conn.ID()),
		ctx:    ctx,
		cancel: cancel,
		sent:   make(map[string]struct{}),
	}
	s.setLink(l)
	defer func() {
		cancel()
		s.setLink(nil)
		_ = conn.Close()
		s.failPending(l.id)
		s.registry.Clear(l.id)
		s.publishSession(models.MessageTypeSessionConnectionDown)
	}()

	s.log.WithFields(logger.Fields{"connection_id": l.id}).Info("connection established")
	s.publishSession(models.MessageTypeSessionConnectionUp)

	s.transition(StateSubscribing)
	if err := s.replay(l); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.pingLoop(l)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-conn.Messages():
			if !ok {
				if err := conn.Err(); err != nil {
					return err
				}
				return fmt.Errorf("%w: connection closed", models.ErrTransport)
			}
			s.dispatch(l, raw)
		}
	}
}

// replay subscribes every intent not yet sent on l. Intents added while a
// pass runs are picked up by the next pass; SUBSCRIBED is entered only when
// a pass finds nothing left.
func (s *Service) replay(l *link) error {
	for {
		s.subMu.Lock()
		pending := s.unsent(l)
		if len(pending) == 0 {
			s.transition(StateSubscribed)
			s.subMu.Unlock()
			return nil
		}
		plan := s.planSubscribe(l, pending)
		s.subMu.Unlock()

		if err := s.deliver(l, plan); err != nil {
			return err
		}
	}
}

// unsent must be called with subMu held.
func (s *Service) unsent(l *link) []models.Subscription {
	var out []models.Subscription
	for _, sub := range s.intents.List() {
		if _, ok := l.sent[sub.Key()]; !ok {
			out = append(out, sub)
		}
	}
	return out
}

type rejectedIntent struct {
	sub models.Subscription
	err error
}

// subscribePlan is what planSubscribe decided under subMu and deliver still
// has to write.
type subscribePlan struct {
	keys     []string
	frames   [][]byte
	rejected []rejectedIntent
}

// planSubscribe builds the frames for subs and marks them sent on l. It must
// be called with subMu held and never touches the socket. A batch the dialect
// rejects is retried one intent at a time so a single bad intent fails alone.
func (s *Service) planSubscribe(l *link, subs []models.Subscription) subscribePlan {
	var plan subscribePlan
	frames, err := s.protocol.CreateSubscribeMessages(l.id, subs, s.registry, s.creds)
	switch {
	case err == nil:
		plan.frames = frames
	case len(subs) > 1:
		for _, sub := range subs {
			f, err := s.protocol.CreateSubscribeMessages(l.id, []models.Subscription{sub}, s.registry, s.creds)
			if err != nil {
				plan.rejected = append(plan.rejected, rejectedIntent{sub: sub, err: err})
				continue
			}
			plan.frames = append(plan.frames, f...)
		}
	default:
		plan.rejected = append(plan.rejected, rejectedIntent{sub: subs[0], err: err})
	}
	for _, sub := range subs {
		key := sub.Key()
		l.sent[key] = struct{}{}
		plan.keys = append(plan.keys, key)
	}
	return plan
}

// deliver reports rejected intents and writes the planned frames without
// holding subMu. A failed write unmarks the plan's intents. Only transport
// errors are returned.
func (s *Service) deliver(l *link, plan subscribePlan) error {
	for _, r := range plan.rejected {
		s.subscriptionFailed(r.sub, r.err)
	}
	for _, frame := range plan.frames {
		if err := l.conn.Send(l.ctx, frame); err != nil {
			s.subMu.Lock()
			for _, key := range plan.keys {
				delete(l.sent, key)
			}
			s.subMu.Unlock()
			return err
		}
	}
	if len(plan.frames) > 0 {
		s.log.WithFields(logger.Fields{"intents": len(plan.keys), "frames": len(plan.frames)}).Info("subscriptions sent")
	}
	return nil
}

// Subscribe records intents and subscribes them on the live connection. An
// intent recorded while disconnected is subscribed on the next connection.
func (s *Service) Subscribe(subs ...models.Subscription) error {
	for _, sub := range subs {
		if err := sub.Validate(); err != nil {
			return err
		}
		if sub.Exchange != s.name {
			return fmt.Errorf("subscription %q targets %s, not %s", sub.CorrelationID, sub.Exchange, s.name)
		}
	}
	for _, sub := range subs {
		s.intents.Add(sub)
	}

	if _, ok := s.acquire(); !ok {
		return nil
	}
	defer s.wg.Done()

	s.subMu.Lock()
	l := s.currentLink()
	if l == nil || s.state.get() != StateSubscribed {
		s.subMu.Unlock()
		return nil
	}
	plan := s.planSubscribe(l, s.unsent(l))
	s.subMu.Unlock()

	if err := s.deliver(l, plan); err != nil {
		s.log.WithError(err).Warn("subscribe failed on live connection")
		l.cancel()
	}
	return nil
}

// Unsubscribe forgets the intent and ends its stream on the live connection.
func (s *Service) Unsubscribe(sub models.Subscription) error {
	if !s.intents.Remove(sub) {
		return fmt.Errorf("subscription %q is not active", sub.CorrelationID)
	}

	if _, ok := s.acquire(); !ok {
		return nil
	}
	defer s.wg.Done()

	s.subMu.Lock()
	l := s.currentLink()
	if l == nil {
		s.subMu.Unlock()
		return nil
	}
	key := sub.Key()
	if _, ok := l.sent[key]; !ok {
		s.subMu.Unlock()
		return nil
	}
	delete(l.sent, key)
	frames, err := s.protocol.CreateUnsubscribeMessages(l.id, sub, s.registry, s.creds)
	s.subMu.Unlock()
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if err := l.conn.Send(l.ctx, frame); err != nil {
			l.cancel()
			return err
		}
	}
	return nil
}

func (s *Service) pingLoop(l *link) {
	defer s.wg.Done()
	if s.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.conn.Send(l.ctx, s.protocol.PingMessage()); err != nil {
				s.log.WithError(err).Warn("failed to send ping")
				return
			}
		}
	}
}

// dispatch decodes one inbound frame and publishes the resulting events in
// decode order. Frames that fail to decode are dropped.
func (s *Service) dispatch(l *link, raw []byte) {
	received := s.now()
	decoded, err := s.protocol.DecodeMessage(l.id, raw, s.registry, received)
	if err != nil {
		reason := dropReason(err)
		entry := s.log.WithError(err).WithFields(logger.Fields{"reason": reason, "size": len(raw)})
		if reason == "unroutable" {
			entry.Debug("dropping unroutable message")
		} else {
			entry.Warn("dropping inbound message")
		}
		metrics.ObserveDrop(s.name, reason)
		return
	}

	var batch []exchange.Decoded
	flush := func() {
		for _, ev := range exchange.GroupEvents(s.name, batch) {
			s.publish(ev)
		}
		batch = batch[:0]
	}
	for _, d := range decoded {
		if d.PostID != 0 {
			flush()
			s.resolvePost(d, received)
			continue
		}
		if d.Stream != nil {
			s.registry.MarkSnapshotReceived(l.id, d.Stream.Channel, d.Stream.Symbol)
		}
		if d.Ended != nil {
			s.registry.Forget(l.id, d.Ended.Channel, d.Ended.Symbol)
		}
		batch = append(batch, d)
	}
	flush()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, models.ErrUnroutableMessage):
		return "unroutable"
	case errors.Is(err, models.ErrMalformedWireMessage):
		return "malformed"
	case errors.Is(err, decimal.ErrInvalidNumericLiteral):
		return "invalid_numeric"
	}
	return "decode_error"
}

// SendRequest encodes, signs and sends req. The outcome arrives on the event
// queue as a RESPONSE event; encoding, signing and transport failures arrive
// as RESPONSE_ERROR messages carrying the request's correlation id.
func (s *Service) SendRequest(ctx context.Context, req models.Request) error {
	base, ok := s.acquire()
	if !ok {
		return fmt.Errorf("%s session is not running", s.name)
	}
	defer s.wg.Done()

	if req.Exchange != s.name {
		return fmt.Errorf("request %q targets %s, not %s", req.CorrelationID, req.Exchange, s.name)
	}
	if !req.Operation.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedOperation, req.Operation)
	}
	metrics.ObserveRequest(s.name, req.Operation)

	out, err := s.protocol.EncodeRequest(req, s.creds)
	if err != nil {
		s.respondError(req, err)
		return nil
	}
	if err := s.protocol.Sign(out, s.creds, s.nonces.Next()); err != nil {
		s.respondError(req, err)
		return nil
	}

	if s.cfg.ExecutionMode == config.ExecutionModeWebsocket && out.Websocket {
		s.sendInBand(ctx, req, out)
		return nil
	}

	if l := s.currentLink(); l != nil {
		base = l.ctx
	}
	// The count taken by acquire is still held, so this Add cannot race Wait.
	s.wg.Add(1)
	go s.sendREST(ctx, base, req, out)
	return nil
}

func (s *Service) sendREST(caller, base context.Context, req models.Request, out *exchange.Outbound) {
	defer s.wg.Done()
	if s.requester == nil {
		s.respondError(req, fmt.Errorf("%w: no REST client configured", models.ErrTransport))
		return
	}

	ctx, cancel := context.WithTimeout(base, s.cfg.RequestTimeout)
	defer cancel()
	stop := context.AfterFunc(caller, cancel)
	defer stop()

	payload, err := out.Payload()
	if err != nil {
		s.respondError(req, err)
		return
	}
	status, body, err := s.requester.Do(ctx, out.Method, out.RequestPath(), out.Headers, payload)
	if err != nil {
		s.respondError(req, err)
		return
	}
	msgs, err := s.protocol.DecodeResponse(req, status, body, s.now())
	if err != nil {
		s.respondError(req, err)
		return
	}
	s.publish(models.Event{Type: models.EventTypeResponse, Exchange: s.name, Messages: msgs})
}

func (s *Service) sendInBand(ctx context.Context, req models.Request, out *exchange.Outbound) {
	l := s.currentLink()
	if l == nil {
		s.respondError(req, fmt.Errorf("%w: not connected", models.ErrTransport))
		return
	}
	id := atomic.AddInt64(&s.postSeq, 1)
	frame, err := s.protocol.WebsocketRequest(out, id)
	if err != nil {
		s.respondError(req, err)
		return
	}

	s.postMu.Lock()
	s.pending[id] = pendingPost{req: req, conn: l.id}
	s.postMu.Unlock()

	if err := l.conn.Send(ctx, frame); err != nil {
		s.postMu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.postMu.Unlock()
		if ok {
			s.respondError(req, err)
		}
	}
}

func (s *Service) resolvePost(d exchange.Decoded, received time.Time) {
	s.postMu.Lock()
	p, ok := s.pending[d.PostID]
	delete(s.pending, d.PostID)
	s.postMu.Unlock()
	if !ok {
		s.log.WithFields(logger.Fields{"post_id": d.PostID}).Warn("response for unknown post id")
		metrics.ObserveDrop(s.name, "unknown_post")
		return
	}

	if d.PostFailed {
		text, err := exchange.Text(d.Payload)
		if err != nil || text == "" {
			text = string(d.Payload)
		}
		s.respondError(p.req, errors.New(text))
		return
	}
	msgs, err := s.protocol.DecodeResponse(p.req, http.StatusOK, d.Payload, received)
	if err != nil {
		s.respondError(p.req, err)
		return
	}
	s.publish(models.Event{Type: models.EventTypeResponse, Exchange: s.name, Messages: msgs})
}

// failPending answers every in-band request still waiting on conn.
func (s *Service) failPending(conn registry.ConnectionID) {
	var reqs []models.Request
	s.postMu.Lock()
	for id, p := range s.pending {
		if p.conn == conn {
			reqs = append(reqs, p.req)
			delete(s.pending, id)
		}
	}
	s.postMu.Unlock()
	for _, req := range reqs {
		s.respondError(req, fmt.Errorf("%w: connection closed before response", models.ErrTransport))
	}
}

func (s *Service) respondError(req models.Request, err error) {
	s.log.WithError(err).WithFields(logger.Fields{
		"operation":      req.Operation,
		"correlation_id": req.CorrelationID,
	}).Warn("request failed")
	msg := models.NewErrorMessage(req.CorrelationID, err, s.now())
	s.publish(models.Event{Type: models.EventTypeResponse, Exchange: s.name, Messages: []models.Message{msg}})
}

func (s *Service) subscriptionFailed(sub models.Subscription, err error) {
	s.log.WithError(err).WithFields(logger.Fields{
		"field":          sub.Field,
		"instrument":     sub.SymbolID,
		"correlation_id": sub.CorrelationID,
	}).Warn("subscription rejected")
	msg := models.NewMessage(models.MessageTypeSubscriptionFailure, s.now(), []string{sub.CorrelationID})
	msg.Elements = []models.Element{{models.FieldErrorMessage: err.Error()}}
	s.publish(models.Event{Type: models.EventTypeSubscriptionStatus, Exchange: s.name, Messages: []models.Message{msg}})
}

func (s *Service) publishSession(typ models.MessageType) {
	msg := models.NewMessage(typ, s.now(), nil)
	msg.Elements = []models.Element{{models.FieldExchange: s.name}}
	s.publish(models.Event{Type: models.EventTypeSessionStatus, Exchange: s.name, Messages: []models.Message{msg}})
}

// publish blocks until the consumer has room or the Service stops.
func (s *Service) publish(ev models.Event) {
	for _, msg := range ev.Messages {
		if msg.Type == models.MessageTypeResponseError {
			metrics.ObserveResponseError(s.name)
		}
	}
	if !s.events.Send(s.ctx, ev) {
		metrics.ObserveDrop(s.name, "shutdown")
		return
	}
	metrics.ObserveEvent(s.name, ev.Type)
}
