package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tradebridge/logger"
	"tradebridge/models"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultReadBuffer       = 256
)

// WebsocketDialer dials gorilla websocket connections. Name labels traffic
// counters, usually the exchange.
type WebsocketDialer struct {
	Name             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadBuffer       int
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Connection, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: handshake,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", models.ErrTransport, url, err)
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	buffer := d.ReadBuffer
	if buffer <= 0 {
		buffer = defaultReadBuffer
	}
	c := &wsConnection{
		id:           uuid.NewString(),
		name:         d.Name,
		conn:         conn,
		messages:     make(chan []byte, buffer),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          logger.GetLogger().WithComponent("websocket").WithExchange(d.Name),
	}
	go c.readLoop()
	return c, nil
}

type wsConnection struct {
	id           string
	name         string
	conn         *websocket.Conn
	messages     chan []byte
	closed       chan struct{}
	writeTimeout time.Duration
	log          *logger.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func (c *wsConnection) ID() string {
	return c.id
}

func (c *wsConnection) Messages() <-chan []byte {
	return c.messages
}

func (c *wsConnection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *wsConnection) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Send writes one text frame. Writes are serialized.
func (c *wsConnection) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return fmt.Errorf("%w: connection closed", models.ErrTransport)
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: write: %v", models.ErrTransport, err)
	}
	return nil
}

func (c *wsConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConnection) readLoop() {
	defer close(c.messages)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				c.setErr(nil)
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = errors.New("closed by peer")
				}
				c.setErr(fmt.Errorf("%w: read: %v", models.ErrTransport, err))
				c.log.WithError(err).Warn("websocket read loop ended")
			}
			return
		}
		logger.RecordChannelMessage(c.name, len(msg))
		select {
		case c.messages <- msg:
		case <-c.closed:
			return
		}
	}
}
