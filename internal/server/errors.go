package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/x402-foundation/swapgate/internal/types"
)

// statusForCode maps error codes to HTTP statuses. Protocol-expected
// failures stay in the 4xx range; 5xx is reserved for unexpected faults.
func statusForCode(code string) int {
	switch code {
	case types.ErrCodeValidation, types.ErrCodeInvalidEvidence,
		types.ErrCodeUnknownAsset, types.ErrCodeExecutionFailed:
		return http.StatusBadRequest
	case types.ErrCodePaymentRequired, types.ErrCodePaymentRejected:
		return http.StatusPaymentRequired
	case types.ErrCodeStaleQuote:
		return http.StatusGone
	case types.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body for any handler failure.
func respondError(c *gin.Context, err error) {
	var gwErr *types.GatewayError
	if errors.As(err, &gwErr) {
		c.JSON(statusForCode(gwErr.Code), gin.H{
			"error":   gwErr.Message,
			"code":    gwErr.Code,
			"details": gwErr.Details,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  types.ErrCodeInternal,
	})
}
