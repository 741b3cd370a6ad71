package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Auth        *auth.Service
	RateLimiter *auth.RateLimiter
	Catalog     *catalog.Service
	Orders      *orders.Service
	Log         logrus.FieldLogger
	Env         string
	Version     string
}

type handler struct {
	auth      *auth.Service
	catalog   *catalog.Service
	orders    *orders.Service
	validate  *validatorv10.Validate
	log       logrus.FieldLogger
	debug     bool
	env       string
	version   string
	startedAt time.Time
}

// NewRouter builds the gin engine serving every /api route.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	h := &handler{
		auth:      cfg.Auth,
		catalog:   cfg.Catalog,
		orders:    cfg.Orders,
		validate:  validation.New(),
		log:       cfg.Log,
		debug:     cfg.Env == "development",
		env:       cfg.Env,
		version:   cfg.Version,
		startedAt: time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Log))

	api := r.Group("/api")
	api.GET("/health", h.health)
	h.registerAuthRoutes(api.Group("/auth"), cfg.RateLimiter)
	h.registerProductRoutes(api.Group("/products"))
	h.registerOrderRoutes(api.Group("/orders"))

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, fmt.Sprintf("Route %s not found", c.Request.URL.Path))
	})
	return r
}

func (h *handler) health(c *gin.Context) {
	success(c, http.StatusOK, "API is running", gin.H{
		"status":      "healthy",
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"environment": h.env,
		"version":     h.version,
	})
}
