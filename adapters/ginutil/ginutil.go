// Package ginutil holds the response helpers shared by the gin handlers.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 with the given body.
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// BadRequest writes a 400 with a machine-readable error code.
func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

// Conflict writes a 409 with a machine-readable error code.
func Conflict(c *gin.Context, code string) {
	c.JSON(http.StatusConflict, gin.H{"error": code})
}

// ServerErr writes a 500 with a machine-readable error code.
func ServerErr(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}
