package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/users"
)

const userKey = "user"

// timedWriter stamps X-Response-Time just before the header is written.
type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if !w.stamped && !w.ResponseWriter.Written() {
		w.stamped = true
		w.Header().Set("X-Response-Time", strconv.FormatInt(time.Since(w.start).Milliseconds(), 10))
	}
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs one line per request and sets X-Response-Time.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: start}

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// Authenticate requires a valid bearer token and stores the user in the
// context.
func (h *handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token == "" {
			h.log.Warn("authentication failed - no token provided")
			fail(c, http.StatusUnauthorized, "Access token required. Please login first.")
			return
		}

		u, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err, "Authentication failed. Please login again.")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func (h *handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if u == nil {
			fail(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !u.IsAdmin() {
			h.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Warn("admin access denied")
			fail(c, http.StatusForbidden, "Admin access required. You do not have permission to perform this action.")
			return
		}
		c.Next()
	}
}

// RateLimit rejects clients that exceeded the limiter's attempts.
func (h *handler) RateLimit(l *auth.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := l.Allow(c.ClientIP())
		if !ok {
			h.log.WithField("client_ip", c.ClientIP()).Warn("rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			fail(c, http.StatusTooManyRequests,
				fmt.Sprintf("Too many authentication attempts. Please try again in %d minutes.", int(math.Ceil(retry.Minutes()))))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *users.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*users.User)
	return u
}

func actorOf(c *gin.Context) orders.Actor {
	u := currentUser(c)
	if u == nil {
		return orders.Actor{}
	}
	return orders.Actor{UserID: u.ID, Admin: u.IsAdmin()}
}
