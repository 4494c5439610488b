// Package status serves the adapter's health, session states, Prometheus
// metrics and recent logs over HTTP.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradebridge/config"
	"tradebridge/internal/metrics"
	"tradebridge/logger"
	"tradebridge/session"
)

// Reporter exposes the state of the running exchange sessions.
type Reporter interface {
	Statuses() []session.Status
}

// Server hosts the gin status endpoints.
type Server struct {
	cfg           config.StatusConfig
	log           *logger.Log
	reporter      Reporter
	metricStore   *history[metrics.Sample]
	logStore      *logStore
	stopListening func()
	sampler       *resourceSampler
	httpServer    *http.Server
}

// NewServer returns nil when the status server is disabled. queueLen reports
// the event queue depth for resource samples.
func NewServer(cfg config.StatusConfig, reporter Reporter, queueLen func() int, log *logger.Log) *Server {
	if !cfg.Enabled {
		return nil
	}
	cfg.Address = normalizeAddress(cfg.Address)

	metricStore := newHistory[metrics.Sample](cfg.History)
	logStore := newLogStore(cfg.History)
	log.AddHook(logStore)

	return &Server{
		cfg:           cfg,
		log:           log,
		reporter:      reporter,
		metricStore:   metricStore,
		logStore:      logStore,
		stopListening: metrics.Listen(metricStore.add),
		sampler:       newResourceSampler(cfg.History, cfg.SampleInterval, queueLen, log),
	}
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}
	s.sampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithComponent("status_server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("status server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	s.stopListening()
	s.logStore.close()
	s.sampler.stop()
}

// Address reports the listen address.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Ready once every exchange session is subscribed.
	router.GET("/readyz", func(c *gin.Context) {
		statuses := s.reporter.Statuses()
		code := http.StatusOK
		for _, st := range statuses {
			if st.State != session.StateSubscribed {
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"sessions": statuses})
	})

	router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.reporter.Statuses()})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/api/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"metrics": s.metricStore.snapshot()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.sampler.snapshot()})
	})

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
