package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/envelope"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/users"
)

// statusOf maps a domain error to an HTTP status and client message.
// Unknown errors map to 500.
func statusOf(err error) (int, string) {
	var missing *orders.ProductNotFoundError
	var short *orders.InsufficientStockError

	switch {
	case errors.As(err, &missing):
		return http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", missing.ProductID)
	case errors.As(err, &short):
		return http.StatusBadRequest, short.Error()
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, catalog.ErrDuplicateName):
		return http.StatusConflict, "A product with this name already exists"
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, "Product was modified concurrently, please retry"
	case errors.Is(err, orders.ErrStatusMismatch):
		return http.StatusConflict, "Order was modified concurrently, please retry"
	case errors.Is(err, orders.ErrGuardFailed):
		return http.StatusConflict, "Request is already being processed"
	case errors.Is(err, users.ErrUsernameTaken):
		return http.StatusConflict, "Username already taken"
	case errors.Is(err, orders.ErrInvalidStatus):
		names := make([]string, 0, len(orders.Statuses))
		for _, st := range orders.Statuses {
			names = append(names, string(st))
		}
		return http.StatusBadRequest, "Invalid status. Must be one of: " + strings.Join(names, ", ")
	case errors.Is(err, orders.ErrEmptyOrder):
		return http.StatusBadRequest, "At least one item is required"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials. Please check your username and password."
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired. Please login again."
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token. Please login again."
	}
	return http.StatusInternalServerError, ""
}

// writeError writes the envelope for err. fallback is the message for
// unexpected failures, whose details are only exposed in debug mode.
func (h *handler) writeError(c *gin.Context, err error, fallback string) {
	status, message := statusOf(err)
	if status != http.StatusInternalServerError {
		fail(c, status, message)
		return
	}

	h.log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(fallback)
	resp := envelope.Fail(fallback)
	if h.debug {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
