package query

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
	httperr "github.com/salestream-lab/salestream/internal/core/errors"
)

// RegisterRoutes registers all metrics API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics/conversion", s.HandleConversionRate)
	r.GET("/metrics/top-products", s.HandleTopProducts)
	r.GET("/metrics/sales-by-category", s.HandleSalesByCategory)
	r.GET("/metrics/trend", s.HandleRevenueTrend)
	r.GET("/metrics/customers/:customer_id/lifetime-value", s.HandleLifetimeValue)
}

// HandleConversionRate handles GET /metrics/conversion?from=&to=
func (s *Service) HandleConversionRate(c *gin.Context) {
	var q struct {
		From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.ConversionRate(c.Request.Context(), q.From, q.To)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTopProducts handles GET /metrics/top-products?n=&from=&to=
func (s *Service) HandleTopProducts(c *gin.Context) {
	var q struct {
		N    int       `form:"n" binding:"required"`
		From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.TopProducts(c.Request.Context(), q.N, q.From, q.To)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSalesByCategory handles GET /metrics/sales-by-category?from=&to=
// with an optional category= to include that category's hour buckets.
func (s *Service) HandleSalesByCategory(c *gin.Context) {
	var q struct {
		From     time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		To       time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		Category string    `form:"category"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.SalesByCategory(c.Request.Context(), q.Category, q.From, q.To)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRevenueTrend handles GET /metrics/trend?granularity=hour|day&count=
func (s *Service) HandleRevenueTrend(c *gin.Context) {
	var q struct {
		Granularity string `form:"granularity" binding:"required"`
		Count       int    `form:"count" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}

	gran, err := aggregation.ParseGranularity(q.Granularity)
	if err != nil {
		writeBadRequest(c, "Invalid granularity", err)
		return
	}

	resp, err := s.RevenueTrend(c.Request.Context(), gran, q.Count)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLifetimeValue handles GET /metrics/customers/:customer_id/lifetime-value
func (s *Service) HandleLifetimeValue(c *gin.Context) {
	var uri struct {
		CustomerID string `uri:"customer_id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		writeBadRequest(c, "Invalid path parameters", err)
		return
	}

	resp, err := s.CustomerLifetimeValue(c.Request.Context(), uri.CustomerID)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeBadRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpInvalidQueryError,
		Message:   message,
		Details:   err.Error(),
	})
}

func writeQueryError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid metrics query",
			Details:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Failed to compute metrics",
		Details:   err.Error(),
	})
}
