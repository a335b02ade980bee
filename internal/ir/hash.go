package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainEntry = "tead/entry/v1"
	DomainCase  = "tead/case/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content digest of an entry.
// ID and Timestamp are excluded: two recordings of the same call with the
// same graphs share a digest, which is what duplicate suppression keys on.
func Digest(e Entry) (string, error) {
	n := &Dict{Fields: []Field{
		F("target", String(e.Target)),
		F("args", orNull(e.Args)),
		F("kwargs", orNull(e.Kwargs)),
		F("result", orNull(e.Result)),
	}}

	canonical, err := MarshalCanonical(n)
	if err != nil {
		return "", fmt.Errorf("digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// HashCanonical hashes arbitrary canonical bytes under the case domain.
// Used to key rendered test cases after alias-insensitive canonicalization.
func HashCanonical(data []byte) string {
	return hashWithDomain(DomainCase, data)
}

// MustDigest is like Digest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDigest(e Entry) string {
	d, err := Digest(e)
	if err != nil {
		panic(err)
	}
	return d
}

func orNull(n Node) Node {
	if n == nil {
		return Null{}
	}
	return n
}
