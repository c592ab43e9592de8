// Package vectorstore provides the Qdrant-backed vector index.
package vectorstore

import (
	"errors"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyPoints indicates an upsert with no points.
	ErrEmptyPoints = errors.New("empty or nil points")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return errors.New("collection name cannot be empty")
	}
	if !collectionNamePattern.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}

// Match is a single retrieval hit from the index.
type Match struct {
	// ID is the point identifier preserved in the payload.
	ID string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the point payload. Document text lives under the
	// "text", "content" or "page_content" key depending on the ingester
	// that wrote it.
	Metadata map[string]interface{}
}

// Point is a vector plus payload to be stored in the index.
type Point struct {
	// ID is the unique identifier; non-UUID ids are preserved in the
	// payload and remapped to generated UUIDs for Qdrant.
	ID string

	// Vector is the embedding for the payload text.
	Vector []float32

	// Metadata contains the payload. Supported value types: string, int,
	// int64, float64, bool.
	Metadata map[string]interface{}
}
