// Package rest exposes the HTTP surface: the PIR ingress, the
// evaluator RPC and the editor APIs for nodesets, cause reasons,
// settings and the action log.
package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}

// bindJSON binds the request body and answers 400 on failure. Returns
// false when the handler should stop.
func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
