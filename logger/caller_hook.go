package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when resolving the reported call site.
var wrapperPackages = []string{
	"github.com/sirupsen/logrus.",
	"tradebridge/logger.",
}

// callerHook points entry.Caller at the first frame outside logrus and the
// Log/Entry wrappers, so adapter logs name the session or protocol file.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := callSite(4); ok {
		entry.Caller = &frame
	}
	return nil
}

func callSite(skip int) (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isWrapper(frame) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func isWrapper(frame runtime.Frame) bool {
	if strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	for _, prefix := range wrapperPackages {
		if strings.HasPrefix(frame.Function, prefix) {
			return true
		}
	}
	return false
}
