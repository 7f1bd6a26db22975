package facade

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cardanoagents/enhanced-client/internal/coreerr"
)

// writeError maps a coreerr.Kind to its HTTP status and writes the JSON
// error body. Unrecognised errors (not a *coreerr.Error) map to 500.
func writeError(c *gin.Context, err error) {
	kind, ok := coreerr.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := statusForKind(kind)
	body := gin.H{"error": err.Error(), "kind": string(kind)}
	if kind == coreerr.KindRateLimited {
		var ce *coreerr.Error
		if errors.As(err, &ce) && ce.RetryAfter != "" {
			c.Header("Retry-After", ce.RetryAfter)
		}
	}
	c.JSON(status, body)
}

func statusForKind(kind coreerr.Kind) int {
	switch kind {
	case coreerr.KindNotFound:
		return http.StatusNotFound
	case coreerr.KindInsufficientStake,
		coreerr.KindNegativeAmount,
		coreerr.KindInvalidAddressFormat,
		coreerr.KindEmptyCapabilities,
		coreerr.KindDeadlineInPast,
		coreerr.KindInvalidField,
		coreerr.KindInvalidProof,
		coreerr.KindAgentMismatch:
		return http.StatusBadRequest
	case coreerr.KindUnauthorized:
		return http.StatusUnauthorized
	case coreerr.KindComplianceDenied:
		return http.StatusForbidden
	case coreerr.KindComplianceRequireInfo:
		return http.StatusUnprocessableEntity
	case coreerr.KindAlreadySettled,
		coreerr.KindAlreadyRegistered,
		coreerr.KindExpiredEscrow,
		coreerr.KindReplayedProof:
		return http.StatusConflict
	case coreerr.KindRateLimited, coreerr.KindQueueFull:
		return http.StatusTooManyRequests
	case coreerr.KindTransportTimeout, coreerr.KindTransportFailed:
		return http.StatusBadGateway
	case coreerr.KindStorageCorruption:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
