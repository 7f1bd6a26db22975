package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
)

// ComplianceHandler exposes the Attribute-Based Compliance Gate (C6b) for
// administrative binding and revocation. Evaluate itself is never called
// directly over HTTP — every other handler invokes it in-process before
// mutating state.
type ComplianceHandler struct {
	gate   *complianceservice.Gate
	logger *zap.Logger
}

func NewComplianceHandler(gate *complianceservice.Gate, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{gate: gate, logger: logger}
}

func (h *ComplianceHandler) Register(rg *gin.RouterGroup) {
	compliance := rg.Group("/compliance")
	{
		compliance.POST("/subjects/:subject/attributes", h.Bind)
		compliance.DELETE("/subjects/:subject", h.Forget)
	}
}

type bindAttributesRequest struct {
	Attributes map[string]string `json:"attributes" binding:"required"`
}

func (h *ComplianceHandler) Bind(c *gin.Context) {
	var req bindAttributesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	credentialID, err := h.gate.Bind(c.Request.Context(), c.Param("subject"), req.Attributes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"credential_id": credentialID})
}

func (h *ComplianceHandler) Forget(c *gin.Context) {
	if err := h.gate.Forget(c.Request.Context(), c.Param("subject")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
