// Package exchange defines the capability set every exchange dialect
// implements and the closed list of supported exchanges.
package exchange

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tradebridge/internal/registry"
	"tradebridge/internal/wire"
	"tradebridge/models"
	"tradebridge/signer"
)

// Kind is the closed set of supported exchanges.
type Kind string

const (
	Hyperliquid Kind = "hyperliquid"
	Okx         Kind = "okx"
)

// Kinds lists every supported exchange.
var Kinds = []Kind{Hyperliquid, Okx}

// ParseKind maps a configured exchange name to its Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported exchange %q", name)
}

// Decoded is one normalized message plus the routing facts the adapter needs
// to finish handling it.
type Decoded struct {
	EventType models.EventType
	Message   models.Message
	// Stream is set for depth messages; the adapter marks its snapshot flag.
	Stream *registry.StreamKey
	// Ended is set for unsubscribe acks; the adapter forgets the tombstone.
	Ended *registry.StreamKey
	// PostID is set for in-band responses to websocket requests.
	PostID int64
	// Payload is the raw response body of an in-band response.
	Payload json.RawMessage
	// PostFailed marks an in-band response the exchange rejected outright.
	PostFailed bool
}

// Signing selects how an outbound request is authenticated.
type Signing int

const (
	SigningNone Signing = iota
	SigningKeyed
	SigningStructHash
)

// Outbound is an encoded request ready to be signed and sent.
type Outbound struct {
	Method  string
	Path    string
	Query   url.Values
	Body    wire.Object
	Headers map[string]string
	Signing Signing
	// Action is the object covered by a struct-hash signature.
	Action wire.Object
	// Websocket reports whether the request may be sent in-band.
	Websocket bool
	// Kind of in-band request, "action" or "info".
	WebsocketType string
}

// RequestPath returns the path including the encoded query string.
func (o *Outbound) RequestPath() string {
	if len(o.Query) == 0 {
		return o.Path
	}
	return o.Path + "?" + o.Query.Encode()
}

// Payload serializes the body. GET requests have no payload.
func (o *Outbound) Payload() ([]byte, error) {
	if o.Body == nil {
		return nil, nil
	}
	return o.Body.MarshalJSON()
}

// Protocol is the capability set of one exchange dialect. Implementations
// are pure: they never touch sockets and only read the registry while
// decoding.
type Protocol interface {
	Kind() Kind

	// CreateSubscribeMessages records routing state for subs on conn and
	// returns the frames that subscribe to them.
	CreateSubscribeMessages(conn registry.ConnectionID, subs []models.Subscription, reg *registry.Registry, creds signer.Credentials) ([][]byte, error)
	// CreateUnsubscribeMessages detaches sub from its stream on conn and
	// returns the frames that end the stream once no correlation id is left.
	CreateUnsubscribeMessages(conn registry.ConnectionID, sub models.Subscription, reg *registry.Registry, creds signer.Credentials) ([][]byte, error)

	// DecodeMessage normalizes one inbound websocket message.
	DecodeMessage(conn registry.ConnectionID, raw []byte, view registry.Reader, received time.Time) ([]Decoded, error)
	// PingMessage is the application-level keepalive frame.
	PingMessage() []byte

	// EncodeRequest maps a canonical request onto the exchange dialect.
	EncodeRequest(req models.Request, creds signer.Credentials) (*Outbound, error)
	// Sign authenticates out using the nonce.
	Sign(out *Outbound, creds signer.Credentials, nonce int64) error
	// WebsocketRequest wraps a signed request for in-band sending.
	WebsocketRequest(out *Outbound, id int64) ([]byte, error)
	// DecodeResponse normalizes a response body for req.
	DecodeResponse(req models.Request, status int, body []byte, received time.Time) ([]models.Message, error)
}

// MetadataLoader is implemented by dialects that need reference data, such
// as an instrument table, before they can encode requests.
type MetadataLoader interface {
	MetadataRequest() *Outbound
	LoadMetadata(body []byte) error
}
