package registry

import (
	"testing"

	"tradebridge/models"
)

func TestIntentSetOrderAndDedup(t *testing.T) {
	s := NewIntentSet()
	a := models.Subscription{Exchange: "hyperliquid", SymbolID: "BTC", Field: models.SubscriptionFieldMarketDepth, CorrelationID: "a"}
	b := models.Subscription{Exchange: "hyperliquid", SymbolID: "ETH", Field: models.SubscriptionFieldTrade, CorrelationID: "b"}

	if !s.Add(a) || !s.Add(b) {
		t.Fatalf("first adds must succeed")
	}
	if s.Add(a) {
		t.Fatalf("duplicate add must report false")
	}
	list := s.List()
	if len(list) != 2 || list[0].CorrelationID != "a" || list[1].CorrelationID != "b" {
		t.Fatalf("unexpected list %+v", list)
	}

	if !s.Remove(a) || s.Remove(a) {
		t.Fatalf("remove semantics broken")
	}
	if s.Len() != 1 || s.List()[0].CorrelationID != "b" {
		t.Fatalf("unexpected state after remove %+v", s.List())
	}
}
