// Package server exposes a Renderer over HTTP:
//
//	POST /render   {"text": "...", "format": "svg"|"png", "scale": 1.0}
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus exposition
//
// Every render failure is answered with 400 and {"message": "<step>"}.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/internal/config"
	"github.com/alnah/go-mmdrender/internal/metrics"
)

// ErrListen indicates the listener could not be opened.
var ErrListen = errors.New("failed to listen")

// readHeaderTimeout bounds slow clients sending headers.
const readHeaderTimeout = 10 * time.Second

// Renderer is the part of *mmdrender.Renderer the server needs.
type Renderer interface {
	Render(ctx context.Context, req mmdrender.Request) (*mmdrender.Result, error)
}

// Compile-time interface check.
var _ Renderer = (*mmdrender.Renderer)(nil)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router          *gin.Engine
	handler         http.Handler
	renderer        Renderer
	log             *zap.Logger
	metrics         *metrics.Metrics
	addr            string
	shutdownTimeout time.Duration
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(r Renderer, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		renderer:        r,
		log:             log,
		metrics:         m,
		addr:            cfg.Addr(),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(s.recovered))
	router.Use(RequestID())
	router.Use(AccessLog(log))
	if m != nil {
		router.Use(m.Middleware())
	}
	router.Use(CORS(cfg.CORS))

	router.GET("/healthz", s.health)
	router.HEAD("/healthz", s.health)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	render := router.Group("/render")
	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("per_client", cfg.RateLimit.PerClient))
		render.Use(RateLimit(cfg.RateLimit))
	}
	render.Use(BodyLimit(cfg.Server.MaxBodyBytes))
	render.POST("", s.render)

	s.router = router
	s.handler = gzhttp.GzipHandler(router)
	return s
}

// Handler returns the root handler, including response compression.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListen, s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.log),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("timeout", s.shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) recovered(c *gin.Context, p any) {
	s.log.Error("handler panic", zap.Any("panic", p), zap.String("request_id", requestIDFrom(c)))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Message: msgInternalError})
}
