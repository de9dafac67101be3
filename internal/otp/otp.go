// Package otp generates one-time passcodes, temporary passwords and RFID tokens.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Alphabet is the set of characters a code is drawn from.
type Alphabet string

const (
	// Digits is used for registration and resend codes.
	Digits Alphabet = "0123456789"
	// LowerAlphanumeric is used for temporary login passwords.
	LowerAlphanumeric Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

const (
	CodeLength              = 6
	TemporaryPasswordLength = 8
	RFIDLength              = 12
)

// ErrInvalidLength is returned for non-positive lengths or an empty alphabet.
var ErrInvalidLength = errors.New("otp: length and alphabet must be non-empty")

// Generate returns a string of exactly length characters drawn uniformly from
// alphabet using crypto/rand.
func Generate(length int, alphabet Alphabet) (string, error) {
	if length <= 0 || len(alphabet) == 0 {
		return "", ErrInvalidLength
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// NewCode returns a 6-digit numeric OTP (e.g. "042917").
func NewCode() (string, error) {
	return Generate(CodeLength, Digits)
}

// NewTemporaryPassword returns an 8-character lowercase alphanumeric one-time login password.
func NewTemporaryPassword() (string, error) {
	return Generate(TemporaryPasswordLength, LowerAlphanumeric)
}

// NewRFID returns a 12-character uppercase token taken from a random UUID with dashes stripped.
func NewRFID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:RFIDLength])
}

// Hash returns the hex SHA-256 of code. Codes are stored hashed; the store compares hashes.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Generator produces the per-request secrets needed by the registration flows.
type Generator interface {
	Code() (string, error)
	TemporaryPassword() (string, error)
	RFID() string
}

// Random is the crypto/rand backed Generator.
type Random struct{}

func (Random) Code() (string, error)              { return NewCode() }
func (Random) TemporaryPassword() (string, error) { return NewTemporaryPassword() }
func (Random) RFID() string                       { return NewRFID() }
