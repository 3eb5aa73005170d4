package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/kit"
)

func HandleEntitlementKeyGET(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("key"))
		if raw == "" {
			ginutil.BadRequest(c, "missing_key")
			return
		}
		key := entitlements.ParseKey(raw)
		ginutil.OK(c, gin.H{
			"key":   key.String(),
			"owned": k.Gate().HasEntitlement(key),
		})
	}
}
