package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key derives a deterministic cache key from an operation name and its
// normalized input parts. Callers must pass only semantically relevant
// fields, never volatile ones like timestamps or request ids.
func Key(operation string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(operation))
	for _, part := range parts {
		h.Write([]byte{0x1f})
		h.Write([]byte(part))
	}
	return operation + ":" + hex.EncodeToString(h.Sum(nil))
}

// NormalizeSet folds a string set for hashing: trimmed, lower-cased,
// deduplicated and sorted so element order never changes the key.
func NormalizeSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		folded := strings.ToLower(strings.TrimSpace(v))
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, folded)
	}
	sort.Strings(out)
	return out
}

// NormalizeText collapses runs of whitespace and lower-cases free text so
// formatting differences do not fragment the cache.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// JoinSet renders a normalized set as a single key part.
func JoinSet(values []string) string {
	return strings.Join(NormalizeSet(values), ",")
}
