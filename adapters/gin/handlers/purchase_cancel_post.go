package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/kit"
	"github.com/open-rails/purchasekit/purchase"
)

// HandlePurchaseCancelPOST aborts the in-flight purchase. Cancellation is
// silent: no error payload, just the resulting state.
func HandlePurchaseCancelPOST(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := k.Flow().Cancel()
		if errors.Is(err, purchase.ErrNotCancellable) {
			ginutil.Conflict(c, "nothing_to_cancel")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "cancel_failed")
			return
		}
		ginutil.OK(c, gin.H{"state": k.Flow().State()})
	}
}
