package security

import (
	"crypto"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a client token is malformed, expired, or not issued for this service.
var ErrInvalidToken = errors.New("invalid token")

// ClientClaims are the claims carried by tokens issued to API clients that call
// the registration endpoints (e.g. the mobile app backend).
type ClientClaims struct {
	jwt.RegisteredClaims
	ClientName string `json:"client_name,omitempty"`
}

// ClientVerifier validates RS256/ES256 bearer tokens presented by API clients.
type ClientVerifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewClientVerifier returns a verifier for tokens signed by the holder of publicKey.
func NewClientVerifier(publicKey crypto.PublicKey, issuer, audience string) *ClientVerifier {
	return &ClientVerifier{publicKey: publicKey, issuer: issuer, audience: audience}
}

// Verify checks signature, expiry, issuer and audience and returns the client's subject.
func (v *ClientVerifier) Verify(tokenString string) (subject string, err error) {
	if v == nil || v.publicKey == nil || tokenString == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{KeyAlg(v.publicKey)}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &ClientClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ClientClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
