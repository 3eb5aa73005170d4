package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/kit"
	"github.com/open-rails/purchasekit/purchase"
)

type purchaseVerifyRequest struct {
	TransactionID string `json:"transaction_id"`
	ReceiptData   string `json:"receipt_data"`
}

// HandlePurchaseVerifyPOST drives the verification round trip and renders
// exactly one classification per attempt: success, retryable network
// failure, or a terminal rejection pointing at restore-purchases.
func HandlePurchaseVerifyPOST(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req purchaseVerifyRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				ginutil.BadRequest(c, "invalid_body")
				return
			}
		}

		out, err := k.VerifyAndApply(c.Request.Context(), req.TransactionID, req.ReceiptData)
		switch {
		case errors.Is(err, purchase.ErrNoAttempt):
			ginutil.Conflict(c, "no_pending_purchase")
			return
		case errors.Is(err, purchase.ErrBusy):
			ginutil.Conflict(c, "verification_in_flight")
			return
		case err != nil:
			ginutil.ServerErr(c, "verify_failed")
			return
		}

		switch out.State {
		case purchase.StateVerified:
			ginutil.OK(c, gin.H{"state": out.State})
		case purchase.StateFailed:
			body := gin.H{
				"state":         out.State,
				"error_code":    out.ErrorCode,
				"error_message": out.ErrorMessage,
				"retryable":     out.Retryable,
			}
			if !out.Retryable {
				body["suggestion"] = "restore_purchases"
			}
			ginutil.OK(c, body)
		default:
			// A racing cancel can land here; reflect whatever state won.
			ginutil.OK(c, gin.H{"state": out.State})
		}
	}
}
