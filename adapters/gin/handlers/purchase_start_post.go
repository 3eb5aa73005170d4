package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/kit"
	"github.com/open-rails/purchasekit/purchase"
)

type purchaseStartRequest struct {
	ProductID      string `json:"product_id"`
	EntitlementKey string `json:"entitlement_key"`
}

func HandlePurchaseStartPOST(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req purchaseStartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_body")
			return
		}
		if strings.TrimSpace(req.ProductID) == "" || strings.TrimSpace(req.EntitlementKey) == "" {
			ginutil.BadRequest(c, "missing_product_or_key")
			return
		}

		ik, err := k.Flow().Start(req.ProductID, entitlements.ParseKey(req.EntitlementKey))
		if errors.Is(err, purchase.ErrBusy) {
			ginutil.Conflict(c, "purchase_in_flight")
			return
		}
		if err != nil {
			ginutil.ServerErr(c, "start_failed")
			return
		}
		ginutil.OK(c, gin.H{
			"state":           k.Flow().State(),
			"idempotency_key": ik,
		})
	}
}
