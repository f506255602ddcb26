package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lablabs/cloudflare-analytics-export/internal/analytics"
	"github.com/lablabs/cloudflare-analytics-export/internal/client"
	"github.com/lablabs/cloudflare-analytics-export/internal/credentials"
	"github.com/lablabs/cloudflare-analytics-export/internal/logging"
	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

const (
	msgInvalidRange   = "Invalid date range: from must be before to."
	msgPlanAccess     = "Your Cloudflare plan does not include access to the requested analytics data. Try a shorter date range or fewer metrics."
	msgPlanRetention  = "Your Cloudflare plan does not retain analytics data that far back. Choose a more recent date range."
	msgInvalidState   = "Invalid or expired OAuth state. Start the connection again."
	msgInternalFailed = "Request failed."
)

// planLimitations rewrites upstream messages that mean the account tier lacks the data.
var planLimitations = []struct {
	pattern string
	message string
}{
	{"does not have access", msgPlanAccess},
	{"not authorized to access", msgPlanAccess},
	{"cannot request data older than", msgPlanRetention},
}

// ErrorHandler middleware handles errors and logs them
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			status, message := classify(err)

			fields := map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": status,
				"error":  err.Error(),
			}
			if id, ok := c.Get("request_id"); ok {
				fields["request_id"] = id
			}
			if status >= http.StatusInternalServerError {
				logging.Error("Request error", fields)
			} else {
				logging.Warn("Request rejected", fields)
			}

			if !c.Writer.Written() {
				c.JSON(status, gin.H{"error": message})
			}
		}
	}
}

// classify maps an error to the HTTP status and the message shown to the caller.
func classify(err error) (int, string) {
	var validation *ValidationError
	var refresh *credentials.RefreshFailedError
	var upstream *client.UpstreamError
	var tokenErr *oauth.TokenError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, analytics.ErrInvalidRange):
		return http.StatusBadRequest, msgInvalidRange
	case errors.Is(err, credentials.ErrCredentialNotFound):
		return http.StatusBadRequest, credentials.ErrCredentialNotFound.Error()
	case errors.Is(err, credentials.ErrCredentialExpired):
		return http.StatusBadRequest, credentials.ErrCredentialExpired.Error()
	case errors.Is(err, oauth.ErrInvalidState):
		return http.StatusBadRequest, msgInvalidState
	case errors.As(err, &refresh):
		return http.StatusInternalServerError, refresh.Error()
	case errors.As(err, &upstream):
		metrics.IncUpstreamError(upstream.Status)
		return http.StatusInternalServerError, upstreamMessage(upstream)
	case errors.As(err, &tokenErr):
		return http.StatusInternalServerError, tokenErr.Error()
	case errors.Is(err, errOAuthNotConfigured):
		return http.StatusInternalServerError, errOAuthNotConfigured.Error()
	}

	// Anything else is internal; the detail is only logged.
	return http.StatusInternalServerError, msgInternalFailed
}

func upstreamMessage(err *client.UpstreamError) string {
	msg := err.Error()
	lower := strings.ToLower(msg + " " + err.Body)
	for _, p := range planLimitations {
		if strings.Contains(lower, p.pattern) {
			return p.message
		}
	}
	return msg
}
