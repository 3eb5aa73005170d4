package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/kit"
	"github.com/open-rails/purchasekit/purchase"
)

func HandlePurchaseResetPOST(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := k.Flow().Reset()
		if errors.Is(err, purchase.ErrNotResettable) {
			ginutil.Conflict(c, "purchase_in_flight")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "reset_failed")
			return
		}
		ginutil.OK(c, gin.H{"state": k.Flow().State()})
	}
}
