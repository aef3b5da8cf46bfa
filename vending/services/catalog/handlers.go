package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CatalogHandler contém os handlers HTTP do catálogo
type CatalogHandler struct {
	useCase *CatalogUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewCatalogHandler cria uma nova instância de CatalogHandler
func NewCatalogHandler(useCase *CatalogUseCase, tracer trace.Tracer, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		useCase: useCase,
		tracer:  tracer,
		logger:  logger,
	}
}

// RegisterRoutes registra as rotas do catálogo em r
func (h *CatalogHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/catalog/products")
	api.GET("/:id", h.GetProduct)
	api.POST("/:id/adjust", h.AdjustStock)
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "get_product")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID))

	product, err := h.useCase.Find(ctx, productID)
	if err != nil {
		h.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(product))
}

// AdjustStock aplica uma movimentação de estoque
func (h *CatalogHandler) AdjustStock(c *gin.Context) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	productID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "adjust_product_stock")
	defer span.End()
	span.SetAttributes(
		attribute.String("product_id", productID),
		attribute.Int("delta", req.Delta),
		attribute.String("reference", req.Reference),
	)

	product, err := h.useCase.Adjust(ctx, productID, req.Delta, req.Reference)
	if err != nil {
		h.writeError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(product))
}

// HealthCheck é o endpoint de health check
func (h *CatalogHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "catalog-service",
	})
}

func (h *CatalogHandler) writeError(c *gin.Context, span trace.Span, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrProductNotFound.Error()})
	case errors.Is(err, ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": ErrInsufficientStock.Error()})
	case errors.Is(err, ErrInvalidDelta):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidDelta.Error()})
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog request failed")
		h.logger.Error("catalog request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog request failed"})
	}
}
