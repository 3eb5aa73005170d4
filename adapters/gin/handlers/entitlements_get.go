package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/kit"
)

type entitlementRow struct {
	Status    entitlements.Status `json:"status"`
	Owned     bool                `json:"owned"`
	ExpiresAt string              `json:"expires_at,omitempty"`
}

func HandleEntitlementsGET(k *kit.Kit) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := k.Cache().Snapshot()
		if snap == nil {
			// Nothing hydrated or fetched yet: empty but valid answer.
			ginutil.OK(c, gin.H{"version": -1, "entitlements": gin.H{}})
			return
		}

		rows := make(map[string]entitlementRow, len(snap.Entitlements))
		for wire, row := range snap.Entitlements {
			r := entitlementRow{
				Status: row.Status,
				Owned:  snap.IsOwned(entitlements.ParseKey(wire)),
			}
			if row.ExpiresAt != nil {
				r.ExpiresAt = row.ExpiresAt.Format(time.RFC3339)
			}
			rows[wire] = r
		}
		ginutil.OK(c, gin.H{
			"username":     snap.Username,
			"version":      snap.Version,
			"server_time":  snap.ServerTime,
			"entitlements": rows,
		})
	}
}
