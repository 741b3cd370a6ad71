package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func (h *handler) registerOrderRoutes(g *gin.RouterGroup) {
	g.Use(h.Authenticate())
	g.POST("", h.createOrder)
	g.POST("/", h.createOrder)
	g.GET("", h.listOrders)
	g.GET("/", h.listOrders)
	g.GET("/admin/stats", h.RequireAdmin(), h.orderStats)
	g.GET("/:id", h.getOrder)
	g.PATCH("/:id/status", h.updateOrderStatus)
}

func (h *handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	// Bind + validate request
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	in := orders.PlaceInput{
		UserID:         currentUser(c).ID,
		Items:          make([]orders.ItemRequest, 0, len(req.Items)),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		ShippingAddress: orders.Address{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			ZipCode: req.ShippingAddress.ZipCode,
			Country: req.ShippingAddress.Country,
		},
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	view, err := h.orders.Place(ctx, in)
	if err != nil {
		// a replayed Idempotency-Key returns the order it created
		var dup *orders.DuplicateRequestError
		if errors.As(err, &dup) {
			original, getErr := h.orders.Get(ctx, actorOf(c), dup.OrderID)
			if getErr != nil {
				h.writeError(c, getErr, "Failed to create order. Please try again.")
				return
			}
			c.Header("Location", fmt.Sprintf("/api/orders/%s", original.ID))
			success(c, http.StatusOK, "Order already placed", original)
			return
		}
		h.writeError(c, err, "Failed to create order. Please try again.")
		return
	}

	c.Header("Location", fmt.Sprintf("/api/orders/%s", view.ID))
	success(c, http.StatusCreated, fmt.Sprintf("Order placed successfully! Total: $%.2f", view.TotalAmount), view)
}

func (h *handler) listOrders(c *gin.Context) {
	var q validation.OrderQuery
	if err := validation.BindQuery(c, &q, h.validate); err != nil {
		return
	}
	page, err := h.orders.List(c.Request.Context(), actorOf(c), orders.ListQuery{
		Status: q.Status,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		h.writeError(c, err, "Failed to fetch orders")
		return
	}
	paginated(c, http.StatusOK, fmt.Sprintf("Found %d orders", page.Pagination.Total), page)
}

func (h *handler) getOrder(c *gin.Context) {
	view, err := h.orders.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch order")
		return
	}
	success(c, http.StatusOK, "Order retrieved successfully", view)
}

func (h *handler) updateOrderStatus(c *gin.Context) {
	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	view, err := h.orders.UpdateStatus(c.Request.Context(), actorOf(c), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err, "Failed to update order status")
		return
	}
	success(c, http.StatusOK, fmt.Sprintf("Order status updated to %s", view.Status), view)
}

func (h *handler) orderStats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to fetch order statistics")
		return
	}
	success(c, http.StatusOK, "Order statistics retrieved successfully", stats)
}
