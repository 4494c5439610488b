package status

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestHistoryKeepsMostRecent(t *testing.T) {
	h := newHistory[int](3)
	for i := 1; i <= 5; i++ {
		h.add(i)
	}
	got := h.snapshot()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("unexpected history %v", got)
	}
	got[0] = 99
	if h.snapshot()[0] != 3 {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(2)
	log := logrus.New()
	log.AddHook(store)
	log.SetLevel(logrus.DebugLevel)

	log.WithFields(logrus.Fields{"component": "session", "exchange": "okx"}).WithError(errors.New("boom")).Warn("connection lost")
	log.Debug("not kept")

	records := store.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Component != "session" || r.Exchange != "okx" || r.Level != "warning" || r.Fields["error"] != "boom" {
		t.Fatalf("unexpected record %+v", r)
	}

	store.close()
	log.Info("after close")
	if len(store.snapshot()) != 1 {
		t.Fatalf("closed store must ignore entries")
	}
}
