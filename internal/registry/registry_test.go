package registry

import (
	"reflect"
	"sync"
	"testing"

	"tradebridge/models"
)

const conn ConnectionID = "conn-1"

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()
	r.Register(conn, "l2Book", "BTC", "a", nil)
	r.Register(conn, "l2Book", "BTC", "a", nil)
	r.Register(conn, "l2Book", "BTC", "b", Options{models.OptionMarketDepthMax: "5"})

	if got := r.Lookup(conn, "l2Book", "BTC"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected ids %v", got)
	}
	view, ok := r.View(conn, "l2Book", "BTC")
	if !ok || view.MaxDepth() != 5 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestLookupUnknownDoesNotMutate(t *testing.T) {
	r := New()
	if got := r.Lookup(conn, "l2Book", "ETH"); len(got) != 0 {
		t.Fatalf("expected empty lookup, got %v", got)
	}
	if _, ok := r.View(conn, "l2Book", "ETH"); ok {
		t.Fatalf("lookup created a stream")
	}
	if r.MarkSnapshotReceived(conn, "l2Book", "ETH") {
		t.Fatalf("mark on unknown stream must be a no-op")
	}
	if len(r.conns) != 0 {
		t.Fatalf("registry mutated by reads")
	}
}

func TestSnapshotFlagIsOneWay(t *testing.T) {
	r := New()
	r.Register(conn, "l2Book", "BTC", "a", nil)
	if snapshotReceived(r, "l2Book", "BTC") {
		t.Fatalf("new stream must not have a snapshot")
	}
	if !r.MarkSnapshotReceived(conn, "l2Book", "BTC") {
		t.Fatalf("first mark should flip the flag")
	}
	if r.MarkSnapshotReceived(conn, "l2Book", "BTC") {
		t.Fatalf("second mark should report no change")
	}
	r.Register(conn, "l2Book", "BTC", "b", nil)
	if !snapshotReceived(r, "l2Book", "BTC") {
		t.Fatalf("re-register must not reset the flag")
	}
}

func snapshotReceived(r *Registry, channel ChannelID, symbol SymbolID) bool {
	view, _ := r.View(conn, channel, symbol)
	return view.SnapshotReceived
}

func TestMaxDepthDefault(t *testing.T) {
	if (Stream{}).MaxDepth() != 1 {
		t.Fatalf("default depth must be 1")
	}
	if (Stream{Options: Options{models.OptionMarketDepthMax: "junk"}}).MaxDepth() != 1 {
		t.Fatalf("invalid depth must fall back to 1")
	}
}

func TestRoutesAndUnregister(t *testing.T) {
	r := New()
	r.Register(conn, "books", "BTC-USDT", "a", nil)
	r.Route(conn, "books:BTC-USDT", "books", "BTC-USDT")

	key, ok := r.Resolve(conn, "books:BTC-USDT")
	if !ok || key != (StreamKey{Channel: "books", Symbol: "BTC-USDT"}) {
		t.Fatalf("unexpected route %+v %v", key, ok)
	}

	r.Unregister(conn, "books", "BTC-USDT", "a")
	if _, ok := r.View(conn, "books", "BTC-USDT"); ok {
		t.Fatalf("stream should be dropped with its last id")
	}
	if _, ok := r.Resolve(conn, "books:BTC-USDT"); ok {
		t.Fatalf("route should be dropped with its stream")
	}
}

func TestUnregisterLeavesTombstone(t *testing.T) {
	r := New()
	r.Register(conn, "trades", "BTC", "a", nil)
	r.Register(conn, "trades", "BTC", "b", nil)

	r.Unregister(conn, "trades", "BTC", "a")
	if _, ok := r.Ended(conn, "trades", "BTC"); ok {
		t.Fatalf("a shared stream has not ended")
	}
	r.Unregister(conn, "trades", "BTC", "b")
	ids, ok := r.Ended(conn, "trades", "BTC")
	if !ok || !reflect.DeepEqual(ids, []string{"b"}) {
		t.Fatalf("unexpected tombstone %v %v", ids, ok)
	}

	r.Forget(conn, "trades", "BTC")
	if _, ok := r.Ended(conn, "trades", "BTC"); ok {
		t.Fatalf("tombstone should be forgotten")
	}
}

func TestClearIsPerConnection(t *testing.T) {
	r := New()
	r.Register("c1", "trades", "BTC", "a", nil)
	r.Register("c2", "trades", "BTC", "a", nil)
	r.Clear("c1")
	if len(r.Lookup("c1", "trades", "BTC")) != 0 {
		t.Fatalf("c1 not cleared")
	}
	if len(r.Lookup("c2", "trades", "BTC")) != 1 {
		t.Fatalf("c2 must survive")
	}
}

func TestViewIsACopy(t *testing.T) {
	r := New()
	r.Register(conn, "trades", "BTC", "a", Options{"k": "v"})
	view, _ := r.View(conn, "trades", "BTC")
	view.CorrelationIDs[0] = "mutated"
	view.Options["k"] = "mutated"
	again, _ := r.View(conn, "trades", "BTC")
	if again.CorrelationIDs[0] != "a" || again.Options["k"] != "v" {
		t.Fatalf("view leaked internal state")
	}
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Register(conn, "trades", "BTC", string(rune('a'+i)), nil)
				_ = r.Lookup(conn, "trades", "BTC")
				r.MarkSnapshotReceived(conn, "trades", "BTC")
			}
		}(i)
	}
	wg.Wait()
	if got := len(r.Lookup(conn, "trades", "BTC")); got != 8 {
		t.Fatalf("expected 8 ids, got %d", got)
	}
}
