package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func (h *handler) registerProductRoutes(g *gin.RouterGroup) {
	g.GET("", h.listProducts)
	g.GET("/", h.listProducts)
	g.GET("/categories/list", h.listCategories)
	g.GET("/admin/low-stock", h.Authenticate(), h.RequireAdmin(), h.lowStock)
	g.GET("/:id", h.getProduct)

	admin := g.Group("", h.Authenticate(), h.RequireAdmin())
	admin.POST("", h.createProduct)
	admin.PUT("/:id", h.updateProduct)
	admin.DELETE("/:id", h.deleteProduct)
}

func (h *handler) listProducts(c *gin.Context) {
	var q validation.ProductQuery
	if err := validation.BindQuery(c, &q, h.validate); err != nil {
		return
	}
	page, err := h.catalog.List(c.Request.Context(), catalog.Query{
		Search:   q.Search,
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		h.writeError(c, err, "Failed to fetch products")
		return
	}
	paginated(c, http.StatusOK, fmt.Sprintf("Found %d products", page.Pagination.Total), page)
}

// outOfStock decorates a product that cannot currently be ordered.
type outOfStock struct {
	*catalog.Product
	Availability string `json:"availability"`
	Note         string `json:"message"`
}

func (h *handler) getProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch product")
		return
	}
	if !p.InStock() {
		success(c, http.StatusOK, "Product retrieved (currently out of stock)", outOfStock{
			Product:      p,
			Availability: "out_of_stock",
			Note:         "This product is currently out of stock",
		})
		return
	}
	success(c, http.StatusOK, "Product retrieved successfully", p)
}

func (h *handler) createProduct(c *gin.Context) {
	var req validation.CreateProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	p, err := h.catalog.Create(c.Request.Context(), catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Stock:       *req.Stock,
	})
	if err != nil {
		h.writeError(c, err, "Failed to create product")
		return
	}
	success(c, http.StatusCreated, fmt.Sprintf("Product %q created successfully", p.Name), p)
}

func (h *handler) updateProduct(c *gin.Context) {
	var req validation.UpdateProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	p, err := h.catalog.Update(c.Request.Context(), c.Param("id"), catalog.Patch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	})
	if err != nil {
		h.writeError(c, err, "Failed to update product")
		return
	}
	success(c, http.StatusOK, fmt.Sprintf("Product %q updated successfully", p.Name), p)
}

func (h *handler) deleteProduct(c *gin.Context) {
	p, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to delete product")
		return
	}
	success(c, http.StatusOK, fmt.Sprintf("Product %q deleted successfully", p.Name), nil)
}

func (h *handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to fetch categories")
		return
	}
	success(c, http.StatusOK, "Categories retrieved successfully", gin.H{"categories": categories})
}

func (h *handler) lowStock(c *gin.Context) {
	var q validation.LowStockQuery
	if err := validation.BindQuery(c, &q, h.validate); err != nil {
		return
	}
	products, err := h.catalog.LowStock(c.Request.Context(), q.Threshold)
	if err != nil {
		h.writeError(c, err, "Failed to fetch low stock products")
		return
	}
	success(c, http.StatusOK, fmt.Sprintf("Found %d products with low stock", len(products)), products)
}
