package channel

import (
	"context"
	"sync"

	"tradebridge/logger"
	"tradebridge/models"
)

type EventStats struct {
	Sent    int64
	Dropped int64
}

// Events is the single queue every adapter publishes canonical events on.
// Sends block until the consumer takes the event or the sender's context
// ends; nothing is dropped while the context is live.
type Events struct {
	C chan models.Event

	// mu is held shared by senders across their select, so Close cannot
	// close C under a sender.
	mu     sync.RWMutex
	closed bool

	stats      EventStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewEvents(bufferSize int) *Events {
	log := logger.GetLogger()
	c := &Events{
		C:   make(chan models.Event, bufferSize),
		log: log,
	}

	log.WithComponent("event_channel").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("event channel initialized")

	return c
}

// Close closes C once in-flight sends have finished. Later sends are
// counted as drops.
func (c *Events) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.C)
	c.log.WithComponent("event_channel").Info("event channel closed")
}

func (c *Events) IncrementSent() {
	c.statsMutex.Lock()
	c.stats.Sent++
	c.statsMutex.Unlock()
}

func (c *Events) IncrementDropped() {
	c.statsMutex.Lock()
	c.stats.Dropped++
	c.statsMutex.Unlock()
}

// Send delivers ev, waiting for buffer space. It returns false, counting a
// drop, when ctx ends first or the queue is closed.
func (c *Events) Send(ctx context.Context, ev models.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.IncrementDropped()
		return false
	}
	select {
	case c.C <- ev:
		c.IncrementSent()
		return true
	case <-ctx.Done():
		c.IncrementDropped()
		return false
	}
}

func (c *Events) Len() int {
	return len(c.C)
}

func (c *Events) Cap() int {
	return cap(c.C)
}

func (c *Events) GetStats() EventStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
