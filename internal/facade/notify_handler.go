package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/notify"
)

// NotifyHandler exposes event-notification subscription management over
// HTTP. Subjects authenticate implicitly via the address they supply —
// this domain has no end-user session layer (spec.md has no user accounts).
type NotifyHandler struct {
	svc    *notify.Service
	logger *zap.Logger
}

func NewNotifyHandler(svc *notify.Service, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{svc: svc, logger: logger}
}

func (h *NotifyHandler) Register(rg *gin.RouterGroup) {
	sub := rg.Group("/subscriptions")
	{
		sub.POST("", h.Subscribe)
		sub.GET("", h.ListBySubject)
		sub.DELETE("/:id", h.Unsubscribe)
		sub.GET("/:id/dead-letters", h.ListDeadLetters)
		sub.POST("/:id/dead-letters/:dead_letter_id/replay", h.ReplayDeadLetter)
	}
}

func (h *NotifyHandler) Subscribe(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject query parameter is required"})
		return
	}

	var req notify.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Subscribe(c.Request.Context(), subject, &req)
	if err != nil {
		h.logger.Error("create subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription": sub,
		"secret":       sub.Secret,
		"note":         "store the secret securely, it will not be shown again",
	})
}

func (h *NotifyHandler) ListBySubject(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject query parameter is required"})
		return
	}

	subs, err := h.svc.ListBySubject(c.Request.Context(), subject)
	if err != nil {
		h.logger.Error("list subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []*notify.Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

func (h *NotifyHandler) Unsubscribe(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject query parameter is required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	if err := h.svc.Unsubscribe(c.Request.Context(), subject, id); err != nil {
		h.logger.Error("delete subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDeadLetters returns events that exhausted retries against the
// subscription, for operator inspection or manual replay.
func (h *NotifyHandler) ListDeadLetters(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	letters, err := h.svc.ListDeadLetters(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list dead letters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}
	if letters == nil {
		letters = []*notify.DeadLetter{}
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": letters, "count": len(letters)})
}

// ReplayDeadLetter resubmits a dead-lettered event to its subscription.
func (h *NotifyHandler) ReplayDeadLetter(c *gin.Context) {
	deadLetterID, err := uuid.Parse(c.Param("dead_letter_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dead letter id"})
		return
	}

	if err := h.svc.ReplayDeadLetter(c.Request.Context(), deadLetterID); err != nil {
		if err == notify.ErrDeadLetterNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
			return
		}
		h.logger.Warn("replay dead letter", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
