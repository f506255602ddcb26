package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
)

var errOAuthNotConfigured = errors.New("Missing Cloudflare OAuth configuration.")

type oauthStartRequest struct {
	UserID   string `json:"userId"`
	ReturnTo string `json:"returnTo"`
}

// OAuthStart handles POST /api/oauth/start and returns the consent URL.
func (h *Handlers) OAuthStart(c *gin.Context) {
	var body oauthStartRequest
	_ = c.ShouldBindJSON(&body)

	if body.UserID == "" {
		_ = c.Error(invalid("Missing userId."))
		return
	}
	if !h.oauth.Configured() {
		_ = c.Error(errOAuthNotConfigured)
		return
	}

	state, err := h.state.Encode(oauth.State{
		UserID:   body.UserID,
		ReturnTo: oauth.SafeReturnTo(body.ReturnTo, h.defaultReturnTo),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.oauth.AuthorizeURL(state)})
}

// OAuthCallback handles GET /api/oauth/callback, stores the token pair and redirects back
// to the page the flow started from.
func (h *Handlers) OAuthCallback(c *gin.Context) {
	code := c.Query("code")
	rawState := c.Query("state")
	if code == "" || rawState == "" {
		_ = c.Error(invalid("Missing code or state."))
		return
	}
	if !h.oauth.Configured() {
		_ = c.Error(errOAuthNotConfigured)
		return
	}

	state, err := h.state.Decode(rawState)
	if err != nil {
		_ = c.Error(err)
		return
	}

	tok, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.credentials.SaveOAuth(c.Request.Context(), state.UserID, tok); err != nil {
		_ = c.Error(err)
		return
	}

	returnTo := oauth.SafeReturnTo(state.ReturnTo, h.defaultReturnTo)
	c.Redirect(http.StatusFound, oauth.ConnectedURL(returnTo))
}
