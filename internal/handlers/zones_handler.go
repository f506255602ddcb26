package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type listZonesRequest struct {
	UserID string `json:"userId"`
}

// ListZones handles POST /api/zones/list.
func (h *Handlers) ListZones(c *gin.Context) {
	var body listZonesRequest
	_ = c.ShouldBindJSON(&body)

	if body.UserID == "" {
		_ = c.Error(invalid("Missing userId."))
		return
	}

	token, err := h.credentials.Resolve(c.Request.Context(), body.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	zones, err := h.api.ListZones(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zones": zones})
}
