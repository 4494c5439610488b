package signer

import (
	"sync"
	"time"
)

// NonceSource hands out strictly increasing millisecond nonces from one clock.
type NonceSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNonceSource() *NonceSource {
	return &NonceSource{now: time.Now}
}

// Next returns the current time in milliseconds, bumped past the previous
// nonce when the clock has not advanced.
func (n *NonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	return ms
}
