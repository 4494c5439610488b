package transport

import (
	"net/http"
	"strings"

	"tradebridge/logger"
)

// detectLimit inspects a response for rate limit or IP ban signals. Each
// exchange words them differently.
func detectLimit(exchange string, status int, body string) (rateLimit bool, ipBan bool) {
	lower := strings.ToLower(body)
	switch strings.ToLower(exchange) {
	case "okx":
		rateLimit = strings.Contains(lower, "too many requests") || strings.Contains(lower, "50011")
		ipBan = strings.Contains(lower, "ip") && (strings.Contains(lower, "blocked") || strings.Contains(lower, "ban"))
	case "hyperliquid":
		rateLimit = strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many")
	default:
		rateLimit = strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests")
		ipBan = strings.Contains(lower, "ip") && strings.Contains(lower, "ban")
	}
	if status == http.StatusTooManyRequests {
		rateLimit = true
	}
	if status == http.StatusTeapot {
		ipBan = true
	}
	return
}

// reportLimit records rate limit and IP ban signals found in a response.
func reportLimit(log *logger.Log, exchange, path string, status int, body []byte) {
	rateLimit, ipBan := detectLimit(exchange, status, string(body))
	if !rateLimit && !ipBan {
		return
	}
	component := strings.ToLower(exchange) + "_rest"
	fields := logger.Fields{"exchange": strings.ToLower(exchange), "path": path, "status": status}
	entry := log.WithComponent(component).WithFields(fields)
	if rateLimit {
		entry.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)
		entry.Warn("rate limit exceeded")
	}
	if ipBan {
		entry.LogMetric(component, "ip_ban", int64(1), "counter", fields)
		entry.Error("ip banned")
	}
}
