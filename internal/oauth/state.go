package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24
	// StateTTL bounds how long a consent round trip may take.
	StateTTL = 15 * time.Minute
)

// ErrInvalidState is returned for state tokens that were tampered with, sealed under
// another key or have expired.
var ErrInvalidState = errors.New("invalid OAuth state")

// State is carried through the consent redirect.
type State struct {
	UserID   string `json:"userId"`
	ReturnTo string `json:"returnTo"`
	IssuedAt int64  `json:"iat"`
}

// StateCodec seals and opens State values so the callback can trust them.
type StateCodec struct {
	key [32]byte
	now func() time.Time
}

// NewStateCodec derives the sealing key from secret.
func NewStateCodec(secret string) *StateCodec {
	return &StateCodec{key: sha256.Sum256([]byte(secret)), now: time.Now}
}

// Encode seals s into a URL-safe token.
func (c *StateCodec) Encode(s State) (string, error) {
	s.IssuedAt = c.now().Unix()
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], payload, &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token produced by Encode.
func (c *StateCodec) Decode(token string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return State{}, ErrInvalidState
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	payload, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return State{}, ErrInvalidState
	}

	var s State
	if err := json.Unmarshal(payload, &s); err != nil || s.UserID == "" {
		return State{}, ErrInvalidState
	}
	if c.now().Sub(time.Unix(s.IssuedAt, 0)) > StateTTL {
		return State{}, fmt.Errorf("%w: expired", ErrInvalidState)
	}
	return s, nil
}

// SafeReturnTo returns returnTo when it is a same-origin path and fallback otherwise.
func SafeReturnTo(returnTo, fallback string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.Contains(returnTo, `\`) {
		return fallback
	}
	// Browsers drop tabs and newlines, which would turn "/\t/host" into "//host".
	if strings.ContainsFunc(returnTo, unicode.IsControl) {
		return fallback
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return returnTo
}

// ConnectedURL is the post-consent redirect target.
func ConnectedURL(returnTo string) string {
	sep := "?"
	if strings.Contains(returnTo, "?") {
		sep = "&"
	}
	return returnTo + sep + "cf=connected"
}
