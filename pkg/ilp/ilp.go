// Package ilp implements the fulfilment/condition check binding a transfer to its quote.
//
// A condition is the base64url encoded SHA-256 digest of the 32 byte preimage whose
// base64url encoding is the fulfilment.
package ilp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const preimageSize = 32

// Packet is the default ports.PaymentPacket.
type Packet struct{}

// ValidateFulfilment reports whether fulfilment is the preimage of condition.
func (Packet) ValidateFulfilment(fulfilment, condition string) bool {
	preimage, err := decode(fulfilment)
	if err != nil || len(preimage) != preimageSize {
		return false
	}
	want, err := decode(condition)
	if err != nil || len(want) != sha256.Size {
		return false
	}
	got := sha256.Sum256(preimage)
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

// Condition derives the condition of a fulfilment.
func Condition(fulfilment string) (string, error) {
	preimage, err := decode(fulfilment)
	if err != nil {
		return "", fmt.Errorf("invalid fulfilment: %w", err)
	}
	if len(preimage) != preimageSize {
		return "", fmt.Errorf("invalid fulfilment: expected %d bytes, got %d", preimageSize, len(preimage))
	}
	sum := sha256.Sum256(preimage)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Generate returns a fresh fulfilment and its condition.
func Generate() (fulfilment, condition string, err error) {
	preimage := make([]byte, preimageSize)
	if _, err := rand.Read(preimage); err != nil {
		return "", "", fmt.Errorf("failed to generate preimage: %w", err)
	}
	fulfilment = base64.RawURLEncoding.EncodeToString(preimage)
	sum := sha256.Sum256(preimage)
	return fulfilment, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// decode accepts base64url with or without padding.
func decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
