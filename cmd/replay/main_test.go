package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"tradebridge/exchange/hyperliquid"
	"tradebridge/models"
)

func TestReplayMarksSnapshotOnce(t *testing.T) {
	r := newReplayer(hyperliquid.New(hyperliquid.Options{}), "hyperliquid", nil)
	r.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	err := r.subscribe([]models.Subscription{
		{
			Exchange:      "hyperliquid",
			SymbolID:      "BTC",
			Field:         models.SubscriptionFieldMarketDepth,
			Options:       map[string]string{models.OptionMarketDepthMax: "1"},
			CorrelationID: "c1",
		},
		{Exchange: "okx", SymbolID: "BTC-USDT", Field: models.SubscriptionFieldTrade, CorrelationID: "other"},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	book := `{"channel":"l2Book","data":{"coin":"BTC","time":1700000000000,"levels":[[{"px":"100.50","sz":"1.0","n":1}],[{"px":"100.6","sz":"0.5","n":1}]]}}`
	in := strings.Join([]string{book, "", "not json", book}, "\n")

	var out bytes.Buffer
	if err := r.run(strings.NewReader(in), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.frames != 3 || r.dropped != 1 || r.events != 2 {
		t.Fatalf("unexpected counters frames=%d dropped=%d events=%d", r.frames, r.dropped, r.events)
	}

	dec := json.NewDecoder(&out)
	var recaps []models.RecapType
	for dec.More() {
		var ev models.Event
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if ev.Type != models.EventTypeSubscriptionData || ev.Exchange != "hyperliquid" {
			t.Fatalf("unexpected event %+v", ev)
		}
		recaps = append(recaps, ev.Messages[0].RecapType)
	}
	if len(recaps) != 2 || recaps[0] != models.RecapTypeSolicited || recaps[1] != models.RecapTypeNone {
		t.Fatalf("unexpected recap sequence %v", recaps)
	}
}
