package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hsit/hsit-server/middleware"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/response"
	"github.com/hsit/hsit-server/service"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	ledger     *service.LedgerService
	assignment *service.AssignmentService
}

func NewLedgerHandler(ledger *service.LedgerService, assignment *service.AssignmentService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, assignment: assignment}
}

// GET /api/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"balance": balance}))
}

// GET /api/ledger?page=1&size=20
func (h *LedgerHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	list, total, err := h.ledger.History(c.Request.Context(), middleware.UserID(c), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"total": total, "records": list}))
}

type creditDepositRequest struct {
	UserID  uint64 `json:"user_id" binding:"required"`
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	TxID    string `json:"tx_id"`
}

// POST /api/deposits/credit (admin) — deposits are credited manually; the
// address must verifiably belong to the user being credited.
func (h *LedgerHandler) CreditDeposit(c *gin.Context) {
	var req creditDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(400, err.Error()))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, response.Error(400, "amount must be a positive decimal"))
		return
	}
	if !h.assignment.VerifyAddressBelongsToUser(c.Request.Context(), req.Address, req.UserID) {
		c.JSON(http.StatusConflict, response.Error(409, "address does not belong to that user"))
		return
	}
	note := "manual deposit to " + req.Address
	if req.TxID != "" {
		note += " (tx " + req.TxID + ")"
	}
	entry, err := h.ledger.Credit(c.Request.Context(), req.UserID, model.LedgerDeposit, amount, note)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(entry))
}
