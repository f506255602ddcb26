package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	logging "github.com/sirupsen/logrus"

	"github.com/lablabs/cloudflare-analytics-export/internal/config"
)

// TokenResponse represents the OAuth token response from Cloudflare.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Scope            string `json:"scope,omitempty"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenError is returned when the token endpoint rejects a grant.
type TokenError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return fmt.Sprintf("token endpoint returned %s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("token endpoint returned status %d", e.Status)
}

// Client performs the authorization code and refresh grants.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	authorizeURL string
	tokenURL     string
	scopes       string
	configured   bool
	httpClient   *http.Client
}

// NewClient creates a Client from cfg. A nil httpClient uses http.DefaultClient.
func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		authorizeURL: cfg.OAuthAuthorizeURL,
		tokenURL:     cfg.OAuthTokenURL,
		scopes:       cfg.OAuthScopes,
		configured:   cfg.OAuthConfigured(),
		httpClient:   httpClient,
	}
}

// Configured reports whether the client credentials needed for any grant are set.
func (c *Client) Configured() bool {
	return c.configured
}

// AuthorizeURL returns the consent page URL carrying state.
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", c.scopes)
	params.Set("state", state)
	return c.authorizeURL + "?" + params.Encode()
}

// Exchange trades an authorization code for a token pair.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI)
	return c.grant(ctx, data)
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	return c.grant(ctx, data)
}

func (c *Client) grant(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.WithField("error", err.Error()).Warn("failed to close token response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenResp TokenResponse
	decodeErr := json.Unmarshal(body, &tokenResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || tokenResp.Error != "" {
		logging.WithFields(logging.Fields{
			"status":     resp.StatusCode,
			"grant_type": data.Get("grant_type"),
			"error":      tokenResp.Error,
		}).Warn("Token endpoint rejected grant")
		return nil, &TokenError{Status: resp.StatusCode, Code: tokenResp.Error, Description: tokenResp.ErrorDescription}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", decodeErr)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carries no access token")
	}
	return &tokenResp, nil
}
