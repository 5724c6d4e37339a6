package handlers

import (
	"github.com/gin-gonic/gin"

	"telehealth-server/internal/services"
	"telehealth-server/internal/utils"
)

// PayoutHandler handles earnings and payout requests.
type PayoutHandler struct {
	Payouts *services.PayoutService
	Ledger  *services.LedgerService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payouts *services.PayoutService, ledger *services.LedgerService) *PayoutHandler {
	return &PayoutHandler{Payouts: payouts, Ledger: ledger}
}

// RequestPayoutRequest represents the request body for a payout request.
type RequestPayoutRequest struct {
	PaypalEmail string `json:"paypalEmail" binding:"required,email"`
}

// RequestPayout converts the calling doctor's whole balance into a payout
// request.
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	var req RequestPayoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	caller, ok := callerID(c)
	if !ok {
		return
	}
	payout, err := h.Payouts.RequestPayout(c.Request.Context(), caller, req.PaypalEmail)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Payout requested successfully", payout)
}

// GetPayouts lists the calling doctor's payouts, newest first.
func (h *PayoutHandler) GetPayouts(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	payouts, err := h.Payouts.ListPayouts(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Payouts retrieved successfully", payouts)
}

// GetEarnings returns the calling doctor's earnings summary.
func (h *PayoutHandler) GetEarnings(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	summary, err := h.Ledger.EarningsSummary(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Earnings retrieved successfully", summary)
}

// GetCredits returns the caller's balance and ledger history.
func (h *PayoutHandler) GetCredits(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	balance, err := h.Ledger.Balance(c.Request.Context(), caller)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Credits retrieved successfully", balance)
}
