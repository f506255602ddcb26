package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
)

type saveCredentialsRequest struct {
	UserID   string `json:"userId"`
	APIToken string `json:"apiToken"`
}

// SaveCredentials handles POST /api/credentials/save.
func (h *Handlers) SaveCredentials(c *gin.Context) {
	var body saveCredentialsRequest
	_ = c.ShouldBindJSON(&body)

	token := strings.TrimSpace(body.APIToken)
	if body.UserID == "" || token == "" {
		_ = c.Error(invalid("Missing userId or apiToken."))
		return
	}

	if err := h.credentials.SaveToken(c.Request.Context(), body.UserID, token); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type validateRequest struct {
	APIToken string `json:"apiToken"`
	ZoneID   string `json:"zoneId"`
}

// ValidateCredentials handles POST /api/credentials/validate. Rejections by Cloudflare are
// reported with status 200 and valid=false.
func (h *Handlers) ValidateCredentials(c *gin.Context) {
	var body validateRequest
	_ = c.ShouldBindJSON(&body)

	token := strings.TrimSpace(body.APIToken)
	zoneID := strings.TrimSpace(body.ZoneID)
	if token == "" || zoneID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "apiToken and zoneId are required"})
		return
	}

	res, err := h.api.ValidateToken(c.Request.Context(), token, zoneID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	metrics.IncTokenValidation(res.Valid)
	c.JSON(http.StatusOK, res)
}
