package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/internal/engine"
)

type CycleHandler struct {
	Engine *engine.Engine
}

func NewCycleHandler(eng *engine.Engine) *CycleHandler {
	return &CycleHandler{Engine: eng}
}

func (h *CycleHandler) TurnOrder(c *gin.Context) {
	order, err := h.Engine.CalculateTurnOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PaymentStatus reports the ledger for one cycle; ?cycle= defaults to the
// group's current cycle.
func (h *CycleHandler) PaymentStatus(c *gin.Context) {
	cycle := 0
	if raw := c.Query("cycle"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cycle must be a positive integer"})
			return
		}
		cycle = parsed
	}

	status, err := h.Engine.CheckPaymentStatus(c.Request.Context(), c.Param("id"), cycle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *CycleHandler) Completion(c *gin.Context) {
	completion, err := h.Engine.ValidateGroupCompletion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (h *CycleHandler) OpenCycle(c *gin.Context) {
	created, err := h.Engine.OpenCycle(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions_created": created})
}

func (h *CycleHandler) ProcessCycle(c *gin.Context) {
	result, err := h.Engine.ProcessCycle(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CycleHandler) RecordContribution(c *gin.Context) {
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	contribution, err := h.Engine.RecordContribution(c.Request.Context(),
		c.Param("id"), c.Param("contributionId"), callerID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contribution)
}

func (h *CycleHandler) SweepOverdue(c *gin.Context) {
	swept, err := h.Engine.SweepOverdue(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swept": swept})
}

func (h *CycleHandler) SendReminders(c *gin.Context) {
	report, err := h.Engine.SendPaymentReminders(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *CycleHandler) ListPayouts(c *gin.Context) {
	payouts, err := h.Engine.ListPayouts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

func (h *CycleHandler) MarkPayoutProcessing(c *gin.Context) {
	payout, err := h.Engine.MarkPayoutProcessing(c.Request.Context(),
		c.Param("id"), c.Param("payoutId"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (h *CycleHandler) CompletePayout(c *gin.Context) {
	payout, err := h.Engine.CompletePayout(c.Request.Context(),
		c.Param("id"), c.Param("payoutId"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (h *CycleHandler) FailPayout(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	payout, err := h.Engine.FailPayout(c.Request.Context(),
		c.Param("id"), c.Param("payoutId"), callerID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (h *CycleHandler) RetryPayout(c *gin.Context) {
	payout, err := h.Engine.RetryPayout(c.Request.Context(),
		c.Param("id"), c.Param("payoutId"), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}
