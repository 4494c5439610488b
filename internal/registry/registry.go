// Package registry tracks which caller correlation ids belong to each
// exchange stream on each connection.
package registry

import (
	"strconv"
	"sync"

	"tradebridge/models"
)

type (
	ConnectionID string
	ChannelID    string
	SymbolID     string
)

// Options are the caller options attached to a stream.
type Options map[string]string

// StreamKey names one exchange stream on a connection.
type StreamKey struct {
	Channel ChannelID
	Symbol  SymbolID
}

// Stream is a read-only copy of the state held for one stream.
type Stream struct {
	CorrelationIDs   []string
	Options          Options
	SnapshotReceived bool
	IsReplace        bool
}

// MaxDepth returns MARKET_DEPTH_MAX, defaulting to 1.
func (s Stream) MaxDepth() int {
	if v, ok := s.Options[models.OptionMarketDepthMax]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// Reader is the read-only view handed to normalizers.
type Reader interface {
	View(conn ConnectionID, channel ChannelID, symbol SymbolID) (Stream, bool)
	Resolve(conn ConnectionID, exchangeSubscriptionID string) (StreamKey, bool)
	Ended(conn ConnectionID, channel ChannelID, symbol SymbolID) ([]string, bool)
}

type stream struct {
	correlationIDs   []string
	options          Options
	snapshotReceived bool
	isReplace        bool
}

type connection struct {
	streams map[StreamKey]*stream
	routes  map[string]StreamKey
	// ended keeps the ids of dropped streams until their unsubscribe ack.
	ended map[StreamKey][]string
}

// Registry holds per-connection subscription state.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnectionID]*connection
}

func New() *Registry {
	return &Registry{conns: make(map[ConnectionID]*connection)}
}

func (r *Registry) conn(id ConnectionID) *connection {
	c, ok := r.conns[id]
	if !ok {
		c = &connection{
			streams: make(map[StreamKey]*stream),
			routes:  make(map[string]StreamKey),
			ended:   make(map[StreamKey][]string),
		}
		r.conns[id] = c
	}
	return c
}

// Register attaches correlationID to the stream, creating it if needed.
// Registering the same id twice is a no-op. Options are merged.
func (r *Registry) Register(conn ConnectionID, channel ChannelID, symbol SymbolID, correlationID string, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conn(conn)
	key := StreamKey{Channel: channel, Symbol: symbol}
	s, ok := c.streams[key]
	if !ok {
		s = &stream{options: Options{}}
		c.streams[key] = s
	}
	for k, v := range opts {
		s.options[k] = v
	}
	if correlationID == "" {
		return
	}
	for _, id := range s.correlationIDs {
		if id == correlationID {
			return
		}
	}
	s.correlationIDs = append(s.correlationIDs, correlationID)
}

// Route maps an exchange-assigned subscription id to a stream.
func (r *Registry) Route(conn ConnectionID, exchangeSubscriptionID string, channel ChannelID, symbol SymbolID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn(conn).routes[exchangeSubscriptionID] = StreamKey{Channel: channel, Symbol: symbol}
}

// Resolve looks up a route recorded with Route.
func (r *Registry) Resolve(conn ConnectionID, exchangeSubscriptionID string) (StreamKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[conn]
	if !ok {
		return StreamKey{}, false
	}
	key, ok := c.routes[exchangeSubscriptionID]
	return key, ok
}

// SetReplace records whether each message of the stream replaces the book.
func (r *Registry) SetReplace(conn ConnectionID, channel ChannelID, symbol SymbolID, replace bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.lookup(conn, channel, symbol); s != nil {
		s.isReplace = replace
	}
}

// MarkSnapshotReceived flips the snapshot flag of a known stream. It reports
// whether the flag changed. Unknown streams are left alone.
func (r *Registry) MarkSnapshotReceived(conn ConnectionID, channel ChannelID, symbol SymbolID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lookup(conn, channel, symbol)
	if s == nil || s.snapshotReceived {
		return false
	}
	s.snapshotReceived = true
	return true
}

// Lookup returns a copy of the correlation ids of a stream. Unknown streams
// yield an empty slice and are not created.
func (r *Registry) Lookup(conn ConnectionID, channel ChannelID, symbol SymbolID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.lookup(conn, channel, symbol)
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.correlationIDs))
	copy(out, s.correlationIDs)
	return out
}

// View returns a copy of the full stream state.
func (r *Registry) View(conn ConnectionID, channel ChannelID, symbol SymbolID) (Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.lookup(conn, channel, symbol)
	if s == nil {
		return Stream{}, false
	}
	view := Stream{
		CorrelationIDs:   make([]string, len(s.correlationIDs)),
		Options:          make(Options, len(s.options)),
		SnapshotReceived: s.snapshotReceived,
		IsReplace:        s.isReplace,
	}
	copy(view.CorrelationIDs, s.correlationIDs)
	for k, v := range s.options {
		view.Options[k] = v
	}
	return view, true
}

// Unregister detaches correlationID from a stream and drops the stream once
// no ids remain. A dropped stream leaves a tombstone holding its last id,
// readable with Ended until Forget.
func (r *Registry) Unregister(conn ConnectionID, channel ChannelID, symbol SymbolID, correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[conn]
	if !ok {
		return
	}
	key := StreamKey{Channel: channel, Symbol: symbol}
	s, ok := c.streams[key]
	if !ok {
		return
	}
	ids := s.correlationIDs[:0]
	for _, id := range s.correlationIDs {
		if id != correlationID {
			ids = append(ids, id)
		}
	}
	s.correlationIDs = ids
	if len(ids) > 0 {
		return
	}
	if correlationID != "" {
		c.ended[key] = []string{correlationID}
	}
	delete(c.streams, key)
	for route, target := range c.routes {
		if target == key {
			delete(c.routes, route)
		}
	}
}

// Ended returns a copy of the ids of a stream dropped by Unregister whose
// tombstone has not been forgotten yet.
func (r *Registry) Ended(conn ConnectionID, channel ChannelID, symbol SymbolID) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[conn]
	if !ok {
		return nil, false
	}
	ids, ok := c.ended[StreamKey{Channel: channel, Symbol: symbol}]
	if !ok {
		return nil, false
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, true
}

// Forget drops the tombstone of an ended stream.
func (r *Registry) Forget(conn ConnectionID, channel ChannelID, symbol SymbolID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[conn]; ok {
		delete(c.ended, StreamKey{Channel: channel, Symbol: symbol})
	}
}

// Clear discards everything recorded for a connection.
func (r *Registry) Clear(conn ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
}

func (r *Registry) lookup(conn ConnectionID, channel ChannelID, symbol SymbolID) *stream {
	c, ok := r.conns[conn]
	if !ok {
		return nil
	}
	return c.streams[StreamKey{Channel: channel, Symbol: symbol}]
}
