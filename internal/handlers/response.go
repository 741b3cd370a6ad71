package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/envelope"
	"github.com/imrishuroy/go-storefront/internal/paging"
)

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope.OK(message, data))
}

func paginated[T any](c *gin.Context, status int, message string, page paging.Page[T]) {
	resp := envelope.OK(message, page.Items)
	resp.Pagination = &page.Pagination
	c.JSON(status, resp)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope.Fail(message))
}
