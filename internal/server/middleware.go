package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alnah/go-mmdrender/internal/config"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey       = "request_id"
	maxRequestIDLength = 128
)

// Per-client limiter table bounds.
const (
	maxTrackedClients = 4096
	clientIdleTTL     = 3 * time.Minute
)

// RequestID reuses a sane incoming X-Request-ID or generates a UUID, and
// echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog writes one structured line per request.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestIDFrom(c)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// CORS allows the configured origins, or any origin when the list is empty.
// Credentials are never allowed: the API is stateless.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Encoding", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "X-Image-Width", "X-Image-Height"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}

// RateLimit throttles requests with a token bucket, shared by all callers or
// one per client IP.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if !cfg.PerClient {
		limiter := rate.NewLimiter(limit, cfg.Burst)
		return func(c *gin.Context) {
			if !limiter.Allow() {
				abortRateLimited(c)
				return
			}
			c.Next()
		}
	}

	clients := newClientLimiters(limit, cfg.Burst)
	return func(c *gin.Context) {
		if !clients.get(c.ClientIP(), time.Now()).Allow() {
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Message: msgRateLimited})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters maps client IPs to buckets. Idle entries are swept when the
// table is full.
type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.clients[ip]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(l.clients) >= maxTrackedClients {
		l.sweep(now)
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.clients[ip] = cl
	return cl.limiter
}

func (l *clientLimiters) sweep(now time.Time) {
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(l.clients, ip)
		}
	}
}

func (l *clientLimiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// BodyLimit caps the request body; reads past n fail with *http.MaxBytesError.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Message: msgBodyTooLarge})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
