package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tradebridge/logger"
	"tradebridge/models"
)

const maxResponseBytes = 8 << 20

// userAgentTransport wraps an existing RoundTripper and sets a custom
// User-Agent header on all outgoing requests.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// RESTOptions configure a RESTClient.
type RESTOptions struct {
	Exchange          string
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	BurstSize         int
}

// RESTClient sends rate limited requests to one exchange REST API.
type RESTClient struct {
	exchange string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	log      *logger.Log
}

func NewRESTClient(opts RESTOptions) *RESTClient {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := opts.BurstSize
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		exchange: opts.Exchange,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: userAgentTransport{agent: opts.UserAgent, base: http.DefaultTransport},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

// Do waits for the limiter, sends the request and returns the status and
// body. Non-2xx statuses are not errors; only failures to get a response are.
func (c *RESTClient) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (int, []byte, error) {
	log := c.log.WithComponent("rest_client").WithExchange(c.exchange).WithFields(logger.Fields{"method": method, "path": path})

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: rate limiter: %v", models.ErrTransport, err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return 0, nil, fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", models.ErrTransport, err)
	}
	logger.LogPerformanceEntry(log, "rest_client", "request", time.Since(start), logger.Fields{"status": resp.StatusCode})
	reportLimit(c.log, c.exchange, path, resp.StatusCode, data)
	return resp.StatusCode, data, nil
}
