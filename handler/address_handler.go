package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/middleware"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/response"
	"github.com/hsit/hsit-server/service"
)

type AddressHandler struct {
	assignment *service.AssignmentService
	pool       *service.KeyPoolService
	reconcile  *service.ReconcileService
}

func NewAddressHandler(assignment *service.AssignmentService, pool *service.KeyPoolService, reconcile *service.ReconcileService) *AddressHandler {
	return &AddressHandler{assignment: assignment, pool: pool, reconcile: reconcile}
}

// GET /api/crypto/addresses
func (h *AddressHandler) GetAddresses(c *gin.Context) {
	triple, err := h.assignment.GetOrAssignAddresses(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(triple))
}

type assignRequest struct {
	UserID uint64 `json:"user_id" binding:"required"`
}

// POST /api/addresses/assign (admin)
func (h *AddressHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(400, err.Error()))
		return
	}
	triple, err := h.assignment.GetOrAssignAddresses(c.Request.Context(), req.UserID)
	if err != nil {
		writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(triple))
}

// POST /api/addresses/bulk-assign (admin) — full reconciliation pass.
func (h *AddressHandler) BulkAssign(c *gin.Context) {
	report, err := h.reconcile.ReconcileAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(report))
}

// POST /api/addresses/import?currency=BTC (admin) — CSV body, one
// "address[,privateKey]" per line.
func (h *AddressHandler) Import(c *gin.Context) {
	currency := model.Currency(strings.ToUpper(c.Query("currency")))
	switch currency {
	case model.CurrencyBTC, model.CurrencyETH, model.CurrencyUSDT, model.CurrencyUBT:
	default:
		c.JSON(http.StatusBadRequest, response.Error(400, "unknown currency"))
		return
	}
	result, err := h.pool.ImportCSV(c.Request.Context(), c.Request.Body, currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(400, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// GET /api/addresses/stats (admin)
func (h *AddressHandler) Stats(c *gin.Context) {
	stats, err := h.pool.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(stats))
}

// writeAssignError keeps pool exhaustion operator-visible and distinct
// from generic failures.
func writeAssignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrPoolExhausted):
		c.JSON(http.StatusServiceUnavailable, response.Error(503, "deposit addresses unavailable, contact support"))
	case errors.Is(err, apperr.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response.Error(404, apperr.ErrUserNotFound.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
	}
}
