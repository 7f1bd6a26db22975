package facade

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/dns"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/registry/model"
	registryservice "github.com/cardanoagents/enhanced-client/internal/registry/service"
)

// RegistryHandler exposes the Staked Agent Registry (C3) over HTTP.
type RegistryHandler struct {
	svc    *registryservice.RegistryService
	logger *zap.Logger
}

func NewRegistryHandler(svc *registryservice.RegistryService, logger *zap.Logger) *RegistryHandler {
	return &RegistryHandler{svc: svc, logger: logger}
}

// Register mounts /agents routes on the given router group.
func (h *RegistryHandler) Register(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.POST("", h.RegisterAgent)
		agents.GET("", h.FindAgents)
		agents.GET("/:agentId", h.GetAgent)
		agents.PATCH("/:agentId", h.UpdateAgent)
		agents.DELETE("/:agentId", h.DeregisterAgent)
		agents.POST("/:agentId/executions", h.RecordExecutionOutcome)
		agents.POST("/:agentId/domain-challenge", h.RequestDomainChallenge)
		agents.POST("/:agentId/domain-challenge/confirm", h.ConfirmDomainChallenge)
	}
}

type registerAgentRequest struct {
	AgentID          string   `json:"agent_id" binding:"required"`
	OwnerAddress     string   `json:"owner_address" binding:"required"`
	MetadataURI      string   `json:"metadata_uri"`
	Capabilities     []string `json:"capabilities" binding:"required"`
	Stake            string   `json:"stake" binding:"required"`
	FrameworkVersion string   `json:"framework_version"`
}

func (h *RegistryHandler) RegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stake, err := money.Parse(req.Stake)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stake amount: " + err.Error()})
		return
	}

	reg, err := h.svc.RegisterAgent(c.Request.Context(), req.AgentID, req.OwnerAddress, req.MetadataURI, req.Capabilities, stake, req.FrameworkVersion)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reg)
}

func (h *RegistryHandler) GetAgent(c *gin.Context) {
	view, err := h.svc.GetAgent(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *RegistryHandler) FindAgents(c *gin.Context) {
	caps := c.QueryArray("capability")
	minRep := 0.0
	if v := c.Query("min_reputation"); v != "" {
		if parsed, err := parseFloat(v); err == nil {
			minRep = parsed
		}
	}
	maxResults := 50
	if v := c.Query("max_results"); v != "" {
		if parsed, err := parseInt(v); err == nil && parsed > 0 {
			maxResults = parsed
		}
	}

	views, err := h.svc.FindAgents(c.Request.Context(), caps, minRep, maxResults)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": views, "count": len(views)})
}

type updateAgentRequest struct {
	MetadataURI      *string  `json:"metadata_uri"`
	Capabilities     []string `json:"capabilities"`
	FrameworkVersion *string  `json:"framework_version"`
}

func (h *RegistryHandler) UpdateAgent(c *gin.Context) {
	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.UpdateAgentProfile(c.Request.Context(), c.Param("agentId"), model.UpdateRequest{
		MetadataURI:      req.MetadataURI,
		Capabilities:     req.Capabilities,
		FrameworkVersion: req.FrameworkVersion,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *RegistryHandler) DeregisterAgent(c *gin.Context) {
	ret, err := h.svc.DeregisterAgent(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

type recordExecutionRequest struct {
	Success bool       `json:"success"`
	At      *time.Time `json:"at"`
}

func (h *RegistryHandler) RecordExecutionOutcome(c *gin.Context) {
	var req recordExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = *req.At
	}

	if err := h.svc.RecordExecutionOutcome(c.Request.Context(), c.Param("agentId"), req.Success, at); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type domainChallengeRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// RequestDomainChallenge issues a DNS-01 style challenge for the domain an
// owner is claiming in an agent's metadata_uri. The challenge is stateless —
// the caller must echo it back unchanged to /confirm once the TXT record is
// published, since nothing is persisted server-side between the two calls.
func (h *RegistryHandler) RequestDomainChallenge(c *gin.Context) {
	var req domainChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.svc.RequestDomainChallenge(req.Domain)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"domain":     challenge.Domain,
		"txt_host":   challenge.TXTHost(),
		"txt_record": challenge.TXTRecord,
		"expires_at": challenge.ExpiresAt,
	})
}

type confirmDomainChallengeRequest struct {
	Domain    string    `json:"domain" binding:"required"`
	TXTRecord string    `json:"txt_record" binding:"required"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

func (h *RegistryHandler) ConfirmDomainChallenge(c *gin.Context) {
	var req confirmDomainChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge := &dns.Challenge{
		Domain:    req.Domain,
		TXTRecord: req.TXTRecord,
		ExpiresAt: req.ExpiresAt,
	}

	if err := h.svc.ConfirmDomainChallenge(c.Request.Context(), challenge); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": c.Param("agentId"), "domain": req.Domain, "verified": true})
}
