// Package session issues and verifies the short-lived HMAC tokens that let
// a live viewer attach to an in-progress conversation.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TokenTTL is the absolute validity window from issuance.
const TokenTTL = 60 * time.Second

// ErrNoSecret is returned when issuance is attempted without a configured
// secret. Verification with no secret fails closed.
var ErrNoSecret = errors.New("session token secret is not configured")

// ErrInvalidToken covers every verification failure: malformed token, bad
// signature, or expiry.
var ErrInvalidToken = errors.New("invalid session token")

// Payload is the signed content of a viewer token. Tokens are never
// persisted; validity is purely cryptographic and time-bounded.
type Payload struct {
	UserID    string `json:"user_id"`
	OrgID     string `json:"org_id"`
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"exp"` // unix seconds
}

// Issuer signs and verifies viewer tokens with a server secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an issuer over the given secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue returns "base64url(payload).base64url(hmac)" with a 60-second
// absolute expiry.
func (i *Issuer) Issue(userID, orgID, sessionID string) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrNoSecret
	}

	payload := Payload{
		UserID:    userID,
		OrgID:     orgID,
		SessionID: sessionID,
		ExpiresAt: i.now().Add(TokenTTL).Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling token payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + i.sign(encoded), nil
}

// Verify checks the signature in constant time and the expiry, and only
// then parses and returns the payload.
func (i *Issuer) Verify(token string) (*Payload, error) {
	if len(i.secret) == 0 {
		return nil, ErrInvalidToken
	}

	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, ErrInvalidToken
	}

	expected := i.sign(encoded)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrInvalidToken
	}
	if payload.ExpiresAt < i.now().Unix() {
		return nil, ErrInvalidToken
	}
	return &payload, nil
}

func (i *Issuer) sign(encoded string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
