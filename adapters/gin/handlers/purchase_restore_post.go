package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/kit"
)

// HandlePurchaseRestorePOST is the manual reconciliation path surfaced
// after a terminal verification failure: pull a fresh snapshot and let the
// gating layer re-evaluate from server truth.
func HandlePurchaseRestorePOST(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := k.Cache().Refresh(c.Request.Context(), "restore_purchases"); err != nil {
			ginutil.ServerErr(c, "restore_failed")
			return
		}
		snap := k.Cache().Snapshot()
		version := int64(-1)
		if snap != nil {
			version = snap.Version
		}
		ginutil.OK(c, gin.H{"ok": true, "version": version})
	}
}
