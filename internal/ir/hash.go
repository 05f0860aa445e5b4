package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for param-set identity.
// Version suffix enables future algorithm migration.
const DomainParamSet = "sweep/paramset/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ParamSetHash computes a content-addressed identity for a parameter set.
// Key order never affects the result.
func ParamSetHash(params Object) (string, error) {
	canonical, err := MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("ParamSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainParamSet, canonical), nil
}

// MustParamSetHash is like ParamSetHash but panics on error.
// Use only in tests or when params are known to be valid.
func MustParamSetHash(params Object) string {
	h, err := ParamSetHash(params)
	if err != nil {
		panic(err)
	}
	return h
}
