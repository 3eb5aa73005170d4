// Package purchasegin mounts the purchasekit HTTP surface onto a gin
// router. The routes are the wire form of the presentation contract: the
// host UI forwards user intent here and renders whatever state comes back.
package purchasegin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/gin/handlers"
	"github.com/open-rails/purchasekit/kit"
)

// Register mounts all purchasekit routes under r.
func Register(r gin.IRouter, k *kit.Kit) {
	r.GET("/entitlements", handlers.HandleEntitlementsGET(k))
	r.GET("/entitlements/:key", handlers.HandleEntitlementKeyGET(k))
	r.POST("/purchase/start", handlers.HandlePurchaseStartPOST(k))
	r.POST("/purchase/verify", handlers.HandlePurchaseVerifyPOST(k))
	r.POST("/purchase/cancel", handlers.HandlePurchaseCancelPOST(k))
	r.POST("/purchase/reset", handlers.HandlePurchaseResetPOST(k))
	r.POST("/purchase/restore", handlers.HandlePurchaseRestorePOST(k))
}
