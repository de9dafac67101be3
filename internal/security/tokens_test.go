package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signClientToken(t *testing.T, key *rsa.PrivateKey, iss, aud string, exp time.Time) string {
	t.Helper()
	claims := ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mobile-backend",
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		ClientName: "Mobile backend",
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func publicKeyPEM(t *testing.T, pub any) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestClientVerifier_Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewClientVerifier(&key.PublicKey, "pnc-auth", "registration")
	future := time.Now().Add(time.Hour)

	sub, err := v.Verify(signClientToken(t, key, "pnc-auth", "registration", future))
	require.NoError(t, err)
	assert.Equal(t, "mobile-backend", sub)

	cases := map[string]string{
		"wrong issuer":   signClientToken(t, key, "someone-else", "registration", future),
		"wrong audience": signClientToken(t, key, "pnc-auth", "billing", future),
		"expired":        signClientToken(t, key, "pnc-auth", "registration", time.Now().Add(-time.Minute)),
		"wrong key":      signClientToken(t, other, "pnc-auth", "registration", future),
		"garbage":        "not.a.token",
		"empty":          "",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestClientVerifier_RejectsHMAC(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewClientVerifier(&key.PublicKey, "", "")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("shared"))
	require.NoError(t, err)

	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClientVerifier_OnlyAcceptsKeyAlgorithm(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewClientVerifier(&key.PublicKey, "pnc-auth", "registration")

	claims := jwt.RegisteredClaims{
		Issuer:    "pnc-auth",
		Audience:  jwt.ClaimStrings{"registration"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	rs384, err := jwt.NewWithClaims(jwt.SigningMethodRS384, claims).SignedString(key)
	require.NoError(t, err)
	_, err = v.Verify(rs384)
	assert.ErrorIs(t, err, ErrInvalidToken)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	es256, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(ecKey)
	require.NoError(t, err)
	_, err = v.Verify(es256)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClientVerifier_ExpiryRequired(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewClientVerifier(&key.PublicKey, "", "")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{Subject: "mobile-backend"}).SignedString(key)
	require.NoError(t, err)
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClientVerifier_Nil(t *testing.T) {
	var v *ClientVerifier
	_, err := v.Verify("x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParsePublicKey(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub, err := ParsePublicKey(publicKeyPEM(t, &rsaKey.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, "RS256", KeyAlg(pub))

	pub, err = ParsePublicKey(publicKeyPEM(t, &ecKey.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, "ES256", KeyAlg(pub))

	path := filepath.Join(t.TempDir(), "client.pub")
	require.NoError(t, os.WriteFile(path, []byte(publicKeyPEM(t, &rsaKey.PublicKey)), 0o600))
	pub, err = ParsePublicKey(path)
	require.NoError(t, err)
	assert.Equal(t, "RS256", KeyAlg(pub))
}

func TestParsePublicKey_Invalid(t *testing.T) {
	_, err := ParsePublicKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePublicKey("-----BEGIN PUBLIC KEY-----\\ngarbage\\n-----END PUBLIC KEY-----")
	assert.Error(t, err)

	_, err = ParsePublicKey(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestLoadPEM_ExpandsEscapedNewlines(t *testing.T) {
	b, err := LoadPEM(`-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----`)
	require.NoError(t, err)
	assert.Contains(t, string(b), "\nAAAA\n")
}
