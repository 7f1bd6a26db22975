package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/money"
	revenueservice "github.com/cardanoagents/enhanced-client/internal/revenue/service"
)

// RevenueHandler exposes the Revenue Distributor (C5) over HTTP.
type RevenueHandler struct {
	svc    *revenueservice.RevenueService
	logger *zap.Logger
}

func NewRevenueHandler(svc *revenueservice.RevenueService, logger *zap.Logger) *RevenueHandler {
	return &RevenueHandler{svc: svc, logger: logger}
}

func (h *RevenueHandler) Register(rg *gin.RouterGroup) {
	rev := rg.Group("/revenue")
	{
		rev.POST("/distributions", h.DistributeRevenue)
		rev.POST("/claims", h.ClaimRewards)
		rev.GET("/pending/:recipient", h.GetPending)
		rev.PUT("/shares/:recipient", h.RegisterShare)
	}
}

type distributeRevenueRequest struct {
	Total    string `json:"total" binding:"required"`
	PeriodID string `json:"period_id" binding:"required"`
}

func (h *RevenueHandler) DistributeRevenue(c *gin.Context) {
	var req distributeRevenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	total, err := money.Parse(req.Total)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total amount: " + err.Error()})
		return
	}

	report, err := h.svc.DistributeRevenue(c.Request.Context(), total, req.PeriodID)
	if err != nil {
		writeError(c, err)
		return
	}
	outcome := "distributed"
	if report.EmptyPool {
		outcome = "empty_pool"
	}
	RecordDistribution(outcome)
	c.JSON(http.StatusOK, report)
}

type claimRewardsRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

func (h *RevenueHandler) ClaimRewards(c *gin.Context) {
	var req claimRewardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.ClaimRewards(c.Request.Context(), req.Recipient)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RevenueHandler) GetPending(c *gin.Context) {
	pending, err := h.svc.GetPending(c.Request.Context(), c.Param("recipient"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient": c.Param("recipient"), "pending": pending.String()})
}

type registerShareRequest struct {
	ParticipationTokens uint64 `json:"participation_tokens"`
	Active              bool   `json:"active"`
}

func (h *RevenueHandler) RegisterShare(c *gin.Context) {
	var req registerShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RegisterShare(c.Request.Context(), c.Param("recipient"), req.ParticipationTokens, req.Active); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
