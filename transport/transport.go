// Package transport moves raw frames and HTTP requests between the adapter
// and an exchange. It knows nothing about exchange dialects.
package transport

import "context"

// Connection is one live websocket. Messages is closed when the read side
// ends; Err then reports why.
type Connection interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
	Messages() <-chan []byte
	Err() error
	Close() error
}

// Dialer opens websocket connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Connection, error)
}

// Requester performs one HTTP request against an exchange REST API.
type Requester interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (int, []byte, error)
}
