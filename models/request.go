package models

import (
	"fmt"
	"sort"
	"strings"
)

// Operation names a request the adapter can encode.
type Operation string

const (
	OperationCreateOrder         Operation = "CREATE_ORDER"
	OperationCancelOrder         Operation = "CANCEL_ORDER"
	OperationGetOrder            Operation = "GET_ORDER"
	OperationGetOpenOrders       Operation = "GET_OPEN_ORDERS"
	OperationGetAccountBalances  Operation = "GET_ACCOUNT_BALANCES"
	OperationGetAccountPositions Operation = "GET_ACCOUNT_POSITIONS"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreateOrder, OperationCancelOrder, OperationGetOrder,
		OperationGetOpenOrders, OperationGetAccountBalances, OperationGetAccountPositions:
		return true
	}
	return false
}

// Request is an exchange-agnostic execution request.
type Request struct {
	Operation     Operation         `json:"operation"`
	Exchange      string            `json:"exchange"`
	SymbolID      string            `json:"symbol_id"`
	CorrelationID string            `json:"correlation_id"`
	Params        map[string]string `json:"params,omitempty"`
}

// Param returns the named parameter or "".
func (r Request) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// Subscription is a caller-facing subscription intent.
type Subscription struct {
	Exchange      string            `json:"exchange" yaml:"exchange"`
	SymbolID      string            `json:"symbol_id" yaml:"instrument"`
	Field         string            `json:"field" yaml:"field"`
	Options       map[string]string `json:"options,omitempty" yaml:"options"`
	CorrelationID string            `json:"correlation_id" yaml:"correlation_id"`
}

// Key is the identity of the intent. Two intents with equal keys are the same
// subscription.
func (s Subscription) Key() string {
	opts := make([]string, 0, len(s.Options))
	for k, v := range s.Options {
		opts = append(opts, k+"="+v)
	}
	sort.Strings(opts)
	return fmt.Sprintf("%s|%s|%s|%s|%s", s.Exchange, s.Field, s.SymbolID, strings.Join(opts, "&"), s.CorrelationID)
}

// Option returns the named option or def when unset.
func (s Subscription) Option(name, def string) string {
	if v, ok := s.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// Validate checks that the intent names an exchange and a known field.
func (s Subscription) Validate() error {
	if s.Exchange == "" {
		return fmt.Errorf("subscription %q: exchange is required", s.CorrelationID)
	}
	switch s.Field {
	case SubscriptionFieldMarketDepth, SubscriptionFieldTrade:
		if s.SymbolID == "" {
			return fmt.Errorf("subscription %q: instrument is required for %s", s.CorrelationID, s.Field)
		}
	case SubscriptionFieldOrderUpdate, SubscriptionFieldPrivateTrade:
	default:
		return fmt.Errorf("subscription %q: unknown field %q", s.CorrelationID, s.Field)
	}
	return nil
}
