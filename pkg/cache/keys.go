package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// RequestKey builds a stable FNV-64a key over the normalized query text, the
// owner id, the relevant parameters and a coarse time bucket. Two requests
// that differ only in whitespace or casing share a key; requests in different
// buckets never do, so a stale window cannot leak across days.
func RequestKey(text, ownerID string, params []string, now time.Time, bucket time.Duration) string {
	h := fnv.New64a()

	h.Write([]byte(Normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte(ownerID))
	h.Write([]byte{0})

	sorted := make([]string, len(params))
	copy(sorted, params)
	sort.Strings(sorted)
	for _, p := range sorted {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}

	if bucket > 0 {
		fmt.Fprintf(h, "%d", now.Truncate(bucket).Unix())
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// EmbeddingKey keys the embedding namespace. Embeddings are pure functions of
// the text, so neither owner nor time takes part.
func EmbeddingKey(text string) string {
	h := fnv.New64a()
	h.Write([]byte(Normalize(text)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Normalize lowercases and collapses internal whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
