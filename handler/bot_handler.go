package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/middleware"
	"github.com/hsit/hsit-server/response"
	"github.com/hsit/hsit-server/service"
)

type BotHandler struct {
	bots *service.BotService
}

func NewBotHandler(bots *service.BotService) *BotHandler {
	return &BotHandler{bots: bots}
}

// GET /api/bots
func (h *BotHandler) ListProducts(c *gin.Context) {
	products, err := h.bots.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(products))
}

// GET /api/bots/purchases
func (h *BotHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.bots.ListPurchases(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(purchases))
}

type purchaseRequest struct {
	ProductID uint64 `json:"product_id" binding:"required"`
}

// POST /api/bots/purchase
func (h *BotHandler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(400, err.Error()))
		return
	}
	purchase, err := h.bots.Purchase(c.Request.Context(), middleware.UserID(c), req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrProductNotFound):
			c.JSON(http.StatusNotFound, response.Error(404, err.Error()))
		case errors.Is(err, apperr.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, response.Error(402, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, response.Success(purchase))
}

// POST /api/bots/purchases/:id/complete (admin)
func (h *BotHandler) Complete(c *gin.Context) {
	purchaseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(400, "invalid purchase id"))
		return
	}
	purchase, err := h.bots.Complete(c.Request.Context(), purchaseID)
	if err != nil {
		if errors.Is(err, apperr.ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, response.Error(404, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(purchase))
}
