// Package cache stores retrieval results and embeddings between runs.
// Backend calls (embedding, search) dominate pipeline latency, so
// repeated requests for the same facts are answered from here.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a request payload
func CacheKey(payload string) string {
	hash := sha256.Sum256([]byte(payload))
	return "plaintgen:v1:" + hex.EncodeToString(hash[:])
}

// RetrieveKey builds the key for a retrieval request. The query text,
// case-type filter, and result count all shape the result set, so all
// three go into the key.
func RetrieveKey(query, caseType string, topK int) string {
	return CacheKey(fmt.Sprintf("retrieve:%s:%s:%d", query, caseType, topK))
}

// EmbedKey builds the key for an embedding request.
func EmbedKey(model, text string) string {
	return CacheKey("embed:" + model + ":" + text)
}

// GetJSON reads a cached value and decodes it into out. A decode
// failure counts as a miss; stale encodings age out rather than error.
func GetJSON(c Cache, key string, out any) bool {
	if c == nil {
		return false
	}
	data, found := c.Get(key)
	if !found {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
