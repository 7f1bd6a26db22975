package facade

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
	escrowservice "github.com/cardanoagents/enhanced-client/internal/escrow/service"
	"github.com/cardanoagents/enhanced-client/internal/money"
)

// EscrowHandler exposes the Escrow Engine (C4) over HTTP.
type EscrowHandler struct {
	svc    *escrowservice.EscrowService
	logger *zap.Logger
}

func NewEscrowHandler(svc *escrowservice.EscrowService, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{svc: svc, logger: logger}
}

func (h *EscrowHandler) Register(rg *gin.RouterGroup) {
	escrows := rg.Group("/escrows")
	{
		escrows.POST("", h.CreateEscrow)
		escrows.GET("/:escrowId", h.GetEscrow)
		escrows.POST("/:escrowId/release", h.ReleaseEscrow)
		escrows.POST("/:escrowId/refund", h.RefundExpired)
		escrows.POST("/:escrowId/dispute", h.Dispute)
		escrows.POST("/:escrowId/arbitrate", h.Arbitrate)
	}
}

type createEscrowRequest struct {
	RequesterAddress string             `json:"requester_address" binding:"required"`
	AgentID          string             `json:"agent_id" binding:"required"`
	ServiceHash      string             `json:"service_hash" binding:"required"`
	Payment          string             `json:"payment" binding:"required"`
	Deadline         time.Time          `json:"deadline" binding:"required"`
	TaskDescription  string             `json:"task_description"`
	Pricing          model.PricingModel `json:"pricing" binding:"required"`
}

func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	var req createEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := money.Parse(req.Payment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment amount: " + err.Error()})
		return
	}

	sr, err := h.svc.CreateEscrow(c.Request.Context(), req.RequesterAddress, req.AgentID, req.ServiceHash, payment, req.Deadline, req.TaskDescription, req.Pricing)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sr)
}

func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	sr, err := h.svc.GetEscrow(c.Request.Context(), c.Param("escrowId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

type releaseEscrowRequest struct {
	Proof model.ExecutionProof `json:"proof" binding:"required"`
}

func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
	var req releaseEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settlement, err := h.svc.ReleaseEscrow(c.Request.Context(), c.Param("escrowId"), req.Proof)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordEscrowOutcome(string(settlement.Status))
	c.JSON(http.StatusOK, settlement)
}

func (h *EscrowHandler) RefundExpired(c *gin.Context) {
	settlement, err := h.svc.RefundExpired(c.Request.Context(), c.Param("escrowId"))
	if err != nil {
		writeError(c, err)
		return
	}
	RecordEscrowOutcome(string(settlement.Status))
	c.JSON(http.StatusOK, settlement)
}

type disputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *EscrowHandler) Dispute(c *gin.Context) {
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Dispute(c.Request.Context(), c.Param("escrowId"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type arbitrateRequest struct {
	Resolution model.Status `json:"resolution" binding:"required"`
	Arbitrator string       `json:"arbitrator" binding:"required"`
}

func (h *EscrowHandler) Arbitrate(c *gin.Context) {
	var req arbitrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settlement, err := h.svc.Arbitrate(c.Request.Context(), c.Param("escrowId"), req.Resolution, req.Arbitrator)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordEscrowOutcome(string(settlement.Status))
	c.JSON(http.StatusOK, settlement)
}
