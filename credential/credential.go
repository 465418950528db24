// Package credential generates and verifies entrance credentials: the
// globally unique identifier, the QR payload and the short manual code.
//
// The QR payload is a credential, not a lookup key: it embeds a random
// secret alongside the identifier, so a copied or guessed identifier cannot
// be scanned as valid. Only a digest of the secret is ever persisted.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

var ErrMalformedPayload = errors.New("malformed credential payload")

const secretLen = 32

// Manual codes avoid 0/O/1/I so they survive being read out loud and typed
// on a phone at a noisy entrance.
const manualCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const ManualCodeLen = 8

// NewUniqueID returns a namespaced, time-ordered, random-suffixed
// identifier, e.g. REG-01J8G2M5ZT3Q9X7K4W1VB6NCDE. Callers still
// collision-check against storage before accepting it.
func NewUniqueID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, ulid.Make().String())
}

// NewSecret returns the random QR secret for one credential.
func NewSecret() ([]byte, error) {
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate qr secret: %w", err)
	}
	return secret, nil
}

// HashSecret is the only form of the secret that touches storage.
func HashSecret(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// MatchSecret compares a presented secret against the stored digest in
// constant time.
func MatchSecret(secret []byte, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(storedHash)) == 1
}

// EncodePayload builds the string embedded in the QR image.
func EncodePayload(uniqueID string, secret []byte) string {
	return uniqueID + "." + base64.RawURLEncoding.EncodeToString(secret)
}

// DecodePayload splits a scanned payload back into identifier and secret.
func DecodePayload(payload string) (string, []byte, error) {
	uniqueID, encoded, ok := strings.Cut(payload, ".")
	if !ok || uniqueID == "" {
		return "", nil, ErrMalformedPayload
	}

	secret, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(secret) != secretLen {
		return "", nil, ErrMalformedPayload
	}

	return uniqueID, secret, nil
}

// NewManualCode returns a fixed-length human-typeable code, generated
// independently of the QR secret.
func NewManualCode() (string, error) {
	buf := make([]byte, ManualCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate manual code: %w", err)
	}

	code := make([]byte, ManualCodeLen)
	for i, b := range buf {
		code[i] = manualCodeAlphabet[int(b)%len(manualCodeAlphabet)]
	}

	return string(code), nil
}

// NewPaymentReference returns the opaque reference handed to the payment
// gateway and used for idempotent reconciliation.
func NewPaymentReference() string {
	return "PAY-" + ulid.Make().String()
}

// NewConfirmToken returns a one-time staff-confirmation token. Tokens live
// in the shared cache with a TTL, never in process memory.
func NewConfirmToken() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirm token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
