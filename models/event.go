package models

import (
	"encoding/json"
	"time"
)

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// ENUMS /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// EventType classifies what an Event carries.
type EventType string

const (
	EventTypeSubscriptionStatus EventType = "SUBSCRIPTION_STATUS"
	EventTypeSubscriptionData   EventType = "SUBSCRIPTION_DATA"
	EventTypeResponse           EventType = "RESPONSE"
	EventTypeSessionStatus      EventType = "SESSION_STATUS"
)

// MessageType identifies the payload kind of a single Message.
type MessageType string

const (
	MessageTypeSubscriptionStarted   MessageType = "SUBSCRIPTION_STARTED"
	MessageTypeSubscriptionFailure   MessageType = "SUBSCRIPTION_FAILURE"
	MessageTypeSubscriptionEnded     MessageType = "SUBSCRIPTION_ENDED"
	MessageTypeMarketDepth           MessageType = "MARKET_DATA_EVENTS_MARKET_DEPTH"
	MessageTypeTrade                 MessageType = "MARKET_DATA_EVENTS_TRADE"
	MessageTypeOrderUpdate           MessageType = "EXECUTION_MANAGEMENT_EVENTS_ORDER_UPDATE"
	MessageTypePrivateTrade          MessageType = "EXECUTION_MANAGEMENT_EVENTS_PRIVATE_TRADE"
	MessageTypeResponseError         MessageType = "RESPONSE_ERROR"
	MessageTypeSessionConnectionUp   MessageType = "SESSION_CONNECTION_UP"
	MessageTypeSessionConnectionDown MessageType = "SESSION_CONNECTION_DOWN"
	MessageTypeCreateOrder           MessageType = "CREATE_ORDER"
	MessageTypeCancelOrder           MessageType = "CANCEL_ORDER"
	MessageTypeGetOrder              MessageType = "GET_ORDER"
	MessageTypeGetOpenOrders         MessageType = "GET_OPEN_ORDERS"
	MessageTypeGetAccountBalances    MessageType = "GET_ACCOUNT_BALANCES"
	MessageTypeGetAccountPositions   MessageType = "GET_ACCOUNT_POSITIONS"
)

// RecapType tells whether a message is a snapshot or an incremental update.
type RecapType string

const (
	RecapTypeNone      RecapType = "NONE"
	RecapTypeSolicited RecapType = "SOLICITED"
)

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// EVENTS ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Element is a flat record keyed by canonical field names. Numeric values are
// canonical decimal strings.
type Element map[string]string

// Has reports whether the field is present.
func (e Element) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Get returns the value of field or "" when absent.
func (e Element) Get(field string) string {
	return e[field]
}

// Insert sets field to value, skipping empty values.
func (e Element) Insert(field, value string) {
	if value == "" {
		return
	}
	e[field] = value
}

// Message is one normalized unit of market or execution data.
type Message struct {
	Type           MessageType `json:"type"`
	RecapType      RecapType   `json:"recap_type"`
	IsReplace      bool        `json:"is_replace"`
	Time           time.Time   `json:"time"`
	TimeReceived   time.Time   `json:"time_received"`
	CorrelationIDs []string    `json:"correlation_ids"`
	Elements       []Element   `json:"elements"`
}

// NewMessage returns a message with recap NONE and a copy of the ids.
func NewMessage(typ MessageType, received time.Time, correlationIDs []string) Message {
	ids := make([]string, len(correlationIDs))
	copy(ids, correlationIDs)
	return Message{
		Type:           typ,
		RecapType:      RecapTypeNone,
		Time:           received,
		TimeReceived:   received,
		CorrelationIDs: ids,
	}
}

// NewErrorMessage builds a RESPONSE_ERROR message for the given request.
func NewErrorMessage(correlationID string, err error, received time.Time) Message {
	var ids []string
	if correlationID != "" {
		ids = []string{correlationID}
	}
	msg := NewMessage(MessageTypeResponseError, received, ids)
	msg.Elements = []Element{{FieldErrorMessage: err.Error()}}
	return msg
}

// Event groups the messages produced from one unit of inbound traffic.
type Event struct {
	Type     EventType `json:"type"`
	Exchange string    `json:"exchange"`
	Messages []Message `json:"messages"`
}

func (e Event) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return string(e.Type)
	}
	return string(data)
}
