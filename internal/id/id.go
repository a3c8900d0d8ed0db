// Package id generates the identifiers the client hands out itself: SSE and
// page client ids (nanoid) and cache worker versions (uuid). Record ids are
// never generated here; the backend assigns them and detached reviews draw
// theirs from the local store sequence.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes of generated ids.
const (
	PrefixSSEClient  = "sse"
	PrefixPageClient = "page"
	PrefixWorker     = "sw"
)

// Generate creates a prefixed nanoid, e.g. "sse-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system has no entropy left.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// WorkerID returns a unique cache worker id.
func WorkerID() string {
	return PrefixWorker + "-" + uuid.NewString()
}

// WorkerVersion derives a fresh cache version from base, e.g. "v1-3f2a9c1e".
// Cache names built from it never collide with those of earlier workers.
func WorkerVersion(base string) string {
	short, _, _ := strings.Cut(uuid.NewString(), "-")
	if base == "" {
		return short
	}
	return base + "-" + short
}
