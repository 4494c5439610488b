package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestWithExchange(t *testing.T) {
	entry := Logger().WithComponent("session").WithExchange("hyperliquid")
	if entry.Entry.Data["exchange"] != "hyperliquid" || entry.Entry.Data["component"] != "session" {
		t.Fatalf("unexpected fields: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	if err := Logger().Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestJSONFieldNames(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("debug", "json", "stdout", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithComponent("json").Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "level", "message", "component"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing %s in %v", key, line)
		}
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestAdapterCounters(t *testing.T) {
	RecordEvent("counter-test")
	RecordEvent("counter-test")
	RecordDrop("counter-test")
	RecordReconnect("counter-test")

	got := AdapterCounters("counter-test")
	if got["events"] != 2 || got["dropped"] != 1 || got["reconnects"] != 1 || got["response_errors"] != 0 {
		t.Fatalf("unexpected counters: %v", got)
	}
}

func TestWarnCountsPerComponent(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.WithComponent("warn-test").Warn("one")
	log.WithComponent("warn-test").Warn("two")

	if got := snapshotCounters(&warns)["warn-test"]; got != 2 {
		t.Fatalf("expected 2 warnings, got %d", got)
	}
}

type captureHook struct {
	file string
}

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *captureHook) Fire(entry *logrus.Entry) error {
	if entry.Caller != nil {
		h.file = entry.Caller.File
	}
	return nil
}

func TestCallerSkipsWrappers(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	hook := &captureHook{}
	log.AddHook(hook)

	log.WithComponent("caller").WithExchange("okx").Info("hello")

	if !strings.HasSuffix(hook.file, "logger_test.go") {
		t.Fatalf("caller resolved to %q", hook.file)
	}
}
