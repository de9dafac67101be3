package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// FieldKeySize is the required length of the field encryption master key.
	FieldKeySize = 32
	nonceSize    = 12
)

var (
	// ErrInvalidFieldKey is returned when the master key is missing or has the wrong length.
	ErrInvalidFieldKey = errors.New("field encryption key must be 32 bytes")
	// ErrMalformedCiphertext is returned when a ciphertext cannot be decoded or is too short.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// CryptoError reports a failed field encryption or decryption. Op is "encrypt" or "decrypt".
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("security: %s field: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// Codec encrypts personally identifiable fields before they are persisted and
// decrypts them when they are read back for outbound messages.
//
// Encryption is deterministic: the GCM nonce is an HMAC-SHA256 of the plaintext
// under a separate subkey, so equal plaintexts map to equal ciphertexts and the
// store can keep unique indexes on encrypted columns. Both subkeys are derived
// from the master key with HKDF.
type Codec struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewCodec returns a Codec for the given 32-byte master key.
func NewCodec(masterKey []byte) (*Codec, error) {
	if len(masterKey) != FieldKeySize {
		return nil, &CryptoError{Op: "init", Err: ErrInvalidFieldKey}
	}
	encKey, err := deriveKey(masterKey, "field-encryption")
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	macKey, err := deriveKey(masterKey, "field-nonce")
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	return &Codec{aead: aead, macKey: macKey}, nil
}

// Encrypt returns base64(nonce || ciphertext) for plaintext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", &CryptoError{Op: "encrypt", Err: ErrInvalidFieldKey}
	}
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(plaintext))
	nonce := mac.Sum(nil)[:nonceSize]

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Tampered or foreign ciphertexts fail authentication.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", &CryptoError{Op: "decrypt", Err: ErrInvalidFieldKey}
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: ErrMalformedCiphertext}
	}
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", &CryptoError{Op: "decrypt", Err: ErrMalformedCiphertext}
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}
	return string(plaintext), nil
}

// DecodeFieldKey decodes a base64 master key from configuration and checks its length.
func DecodeFieldKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFieldKey, err)
	}
	if len(key) != FieldKeySize {
		return nil, ErrInvalidFieldKey
	}
	return key, nil
}

func deriveKey(master []byte, info string) ([]byte, error) {
	key := make([]byte, FieldKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}
