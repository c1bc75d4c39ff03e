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

type WheelHandler struct {
	wheel *service.WheelService
}

func NewWheelHandler(wheel *service.WheelService) *WheelHandler {
	return &WheelHandler{wheel: wheel}
}

// POST /api/wheel/spin
func (h *WheelHandler) Spin(c *gin.Context) {
	spin, err := h.wheel.Spin(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			c.JSON(http.StatusPaymentRequired, response.Error(402, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(spin))
}

// GET /api/wheel/history?limit=50
func (h *WheelHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	spins, err := h.wheel.History(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(spins))
}
