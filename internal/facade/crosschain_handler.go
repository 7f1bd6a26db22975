package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/crosschain"
)

// CrossChainHandler exposes the Cross-Chain Directory (C6a) over HTTP.
type CrossChainHandler struct {
	svc    *crosschain.Service
	logger *zap.Logger
}

func NewCrossChainHandler(svc *crosschain.Service, logger *zap.Logger) *CrossChainHandler {
	return &CrossChainHandler{svc: svc, logger: logger}
}

func (h *CrossChainHandler) Register(rg *gin.RouterGroup) {
	cc := rg.Group("/cross-chain")
	{
		cc.POST("/registrations", h.RegisterCrossChainService)
		cc.GET("/registrations/:crossChainId", h.Get)
		cc.GET("/agents/:agentId/registrations", h.ListByAgent)
	}
}

type registerCrossChainRequest struct {
	AgentID  string               `json:"agent_id" binding:"required"`
	Networks []crosschain.Network `json:"networks" binding:"required"`
}

func (h *CrossChainHandler) RegisterCrossChainService(c *gin.Context) {
	var req registerCrossChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg, err := h.svc.RegisterCrossChainService(c.Request.Context(), req.AgentID, req.Networks)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (h *CrossChainHandler) Get(c *gin.Context) {
	reg, err := h.svc.Get(c.Request.Context(), c.Param("crossChainId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *CrossChainHandler) ListByAgent(c *gin.Context) {
	regs, err := h.svc.ListByAgent(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}
