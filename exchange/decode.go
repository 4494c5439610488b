package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tradebridge/internal/decimal"
	"tradebridge/internal/registry"
	"tradebridge/models"
)

// Unmarshal decodes JSON keeping numbers as json.Number so no precision is
// lost. Failures wrap ErrMalformedWireMessage.
func Unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedWireMessage, err)
	}
	return nil
}

// Number normalizes a numeric wire value given as a JSON string or number.
// Empty values yield "".
func Number(v json.RawMessage) (string, error) {
	s, err := Text(v)
	if err != nil || s == "" {
		return "", err
	}
	return decimal.Normalize(s)
}

// Text returns a JSON string or number as text. null yields "".
func Text(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return "", nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrMalformedWireMessage, err)
		}
		return s, nil
	}
	return string(v), nil
}

// Millis converts a millisecond epoch given as string or number.
func Millis(v json.RawMessage) (time.Time, bool) {
	s, err := Text(v)
	if err != nil || s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Truncate keeps at most n leading entries.
func Truncate[T any](levels []T, n int) []T {
	if n >= 0 && len(levels) > n {
		return levels[:n]
	}
	return levels
}

// EndedAck builds the SUBSCRIPTION_ENDED message for an unsubscribe ack. The
// ids come from the tombstone Unregister left behind, falling back to a
// stream that is still live.
func EndedAck(conn registry.ConnectionID, key registry.StreamKey, raw []byte, view registry.Reader, received time.Time) []Decoded {
	ids, ok := view.Ended(conn, key.Channel, key.Symbol)
	if !ok {
		stream, _ := view.View(conn, key.Channel, key.Symbol)
		ids = stream.CorrelationIDs
	}
	msg := models.NewMessage(models.MessageTypeSubscriptionEnded, received, ids)
	msg.Elements = []models.Element{{models.FieldInfoMessage: string(raw)}}
	return []Decoded{{EventType: models.EventTypeSubscriptionStatus, Message: msg, Ended: &key}}
}

// GroupEvents folds decoded messages into events, starting a new event
// whenever the event type changes. Order is preserved.
func GroupEvents(exchange string, decoded []Decoded) []models.Event {
	var events []models.Event
	for _, d := range decoded {
		if n := len(events); n > 0 && events[n-1].Type == d.EventType {
			events[n-1].Messages = append(events[n-1].Messages, d.Message)
			continue
		}
		events = append(events, models.Event{
			Type:     d.EventType,
			Exchange: exchange,
			Messages: []models.Message{d.Message},
		})
	}
	return events
}
