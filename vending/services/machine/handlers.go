package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SelectRequest selects a product on a machine.
type SelectRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// InsertCoinRequest inserts one coin into a machine.
type InsertCoinRequest struct {
	Value *int `json:"value" binding:"required"`
}

// ReloadRequest adds stock for a product. Quantity is kept raw so that a
// non-numeric quantity is answered with an invalid_quantity outcome.
type ReloadRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  json.RawMessage `json:"quantity"`
}

type outcomeResponse struct {
	Outcome
	Message string `json:"message"`
}

// MachineHandler serves the machine API.
type MachineHandler struct {
	registry *MachineRegistry
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewMachineHandler creates the HTTP handlers for registry.
func NewMachineHandler(registry *MachineRegistry, tracer trace.Tracer, logger *zap.Logger) *MachineHandler {
	return &MachineHandler{
		registry: registry,
		tracer:   tracer,
		logger:   logger,
	}
}

// RegisterRoutes mounts the machine API on r.
func (h *MachineHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/machines")
	api.POST("", h.CreateMachine)
	api.GET("/:id", h.GetMachine)
	api.DELETE("/:id", h.RemoveMachine)
	api.POST("/:id/select", h.Select)
	api.POST("/:id/coins", h.InsertCoin)
	api.POST("/:id/reload", h.Reload)
}

func (h *MachineHandler) CreateMachine(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "create_machine")
	defer span.End()

	id, err := h.registry.Create()
	if err != nil {
		span.RecordError(err)
		h.writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("machine_id", id))

	c.JSON(http.StatusCreated, gin.H{"machine_id": id})
}

func (h *MachineHandler) RemoveMachine(c *gin.Context) {
	if err := h.registry.Remove(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MachineHandler) GetMachine(c *gin.Context) {
	snapshot, err := h.registry.Snapshot(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *MachineHandler) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machineID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "select_product")
	defer span.End()
	span.SetAttributes(
		attribute.String("machine_id", machineID),
		attribute.String("product_id", req.ProductID),
	)

	outcome, err := h.registry.Do(ctx, machineID, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
		return pc.Select(ctx, req.ProductID)
	})
	h.respond(c, span, outcome, err)
}

func (h *MachineHandler) InsertCoin(c *gin.Context) {
	var req InsertCoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machineID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "insert_coin")
	defer span.End()
	span.SetAttributes(
		attribute.String("machine_id", machineID),
		attribute.Int("coin", *req.Value),
	)

	outcome, err := h.registry.Do(ctx, machineID, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
		return pc.InsertCoin(ctx, *req.Value)
	})
	h.respond(c, span, outcome, err)
}

func (h *MachineHandler) Reload(c *gin.Context) {
	var req ReloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machineID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "reload_product")
	defer span.End()
	span.SetAttributes(
		attribute.String("machine_id", machineID),
		attribute.String("product_id", req.ProductID),
	)

	quantity, ok := parseQuantity(req.Quantity)
	outcome, err := h.registry.Do(ctx, machineID, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
		if !ok {
			return invalidQuantity(req.ProductID, pc.PendingTotal()), nil
		}
		return pc.Reload(ctx, req.ProductID, quantity)
	})
	h.respond(c, span, outcome, err)
}

// HealthCheck reports that the service is up.
func (h *MachineHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "machine-service",
	})
}

func (h *MachineHandler) respond(c *gin.Context, span trace.Span, outcome Outcome, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))
	c.JSON(http.StatusOK, outcomeResponse{Outcome: outcome, Message: describeOutcome(outcome)})
}

func (h *MachineHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMachineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrTooManyMachines):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": ErrTooManyMachines.Error()})
		return
	}
	h.logger.Error("machine event failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
}

// parseQuantity accepts a JSON integer. A missing quantity means one unit.
func parseQuantity(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, true
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func describeOutcome(o Outcome) string {
	switch o.Kind {
	case OutcomeAwaitingFunds:
		return "Please insert some money first"
	case OutcomeInsufficientFunds:
		return fmt.Sprintf("Insufficient funds to purchase this item. Please add another %d", o.Shortfall)
	case OutcomeSaleCompleted:
		if len(o.ChangeCoins) == 0 {
			return "Sale completed!"
		}
		coins := make([]string, len(o.ChangeCoins))
		for i, coin := range o.ChangeCoins {
			coins[i] = strconv.Itoa(int(coin))
		}
		return "Sale completed! Returning change as follows: " + strings.Join(coins, ", ")
	case OutcomeOutOfStock:
		return "Out of stock"
	case OutcomeProductNotFound:
		return "That code does not exist in our system."
	case OutcomeInvalidCoin:
		return "We only accept " + joinCoins(AcceptedCoins)
	case OutcomeNoSelectionYet:
		return "Please select a product first"
	case OutcomeInvalidQuantity:
		return "You need to specify a quantity greater than 0"
	case OutcomeCoinAccepted:
		return fmt.Sprintf("Inserted %d so far", o.PendingTotal)
	case OutcomeStockReloaded:
		return fmt.Sprintf("Reloaded, %d now in stock", o.Quantity)
	}
	return string(o.Kind)
}
