package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/users"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func (h *handler) registerAuthRoutes(g *gin.RouterGroup, limiter *auth.RateLimiter) {
	guarded := []gin.HandlerFunc{}
	if limiter != nil {
		guarded = append(guarded, h.RateLimit(limiter))
	}

	g.POST("/register", append(guarded, h.register)...)
	g.POST("/login", append(guarded, h.login)...)
	g.GET("/me", h.Authenticate(), h.me)
	g.POST("/logout", h.Authenticate(), h.logout)
}

func (h *handler) register(c *gin.Context) {
	var req validation.RegisterRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, users.RoleUser)
	if err != nil {
		h.writeError(c, err, "Failed to create account. Please try again.")
		return
	}
	success(c, http.StatusCreated, "Account created successfully", sess)
}

func (h *handler) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err, "Login failed. Please try again later.")
		return
	}
	success(c, http.StatusOK, fmt.Sprintf("Welcome back, %s!", sess.User.Username), sess)
}

func (h *handler) me(c *gin.Context) {
	success(c, http.StatusOK, "User profile retrieved successfully", currentUser(c))
}

func (h *handler) logout(c *gin.Context) {
	// tokens are stateless; the client discards its copy
	h.log.WithField("user_id", currentUser(c).ID).Info("user logged out")
	success(c, http.StatusOK, "Logged out successfully", nil)
}
