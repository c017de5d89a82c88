// Package hashutil centralizes the string-hashing primitive used across the
// MIX-related packages: portable mixer shard routing (get_hash), LSH
// feature-name projection seeding, and bucket-signature hashing.
//
// Routing keys are hashed with xxhash rather than FNV-1a, matching the
// hash function widely used elsewhere in the Go ecosystem for this kind
// of non-cryptographic string hashing (e.g. erigon, go-ethereum).
package hashutil

import "github.com/cespare/xxhash/v2"

// String returns a 64-bit hash of s, used wherever a generic hash(...) is
// needed without mandating a specific function: feature-name hashing and
// consistent routing hashes alike.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Seed32 folds String's 64-bit output into a uint32 suitable for seeding a
// deterministic PRNG, e.g. a feature name's per-table projection vector.
func Seed32(s string) uint32 {
	h := String(s)
	return uint32(h ^ (h >> 32))
}

// Mod returns String(s) % n as an int, used for modulo-based routing. It
// panics if n <= 0, mirroring an invalid shard count being a programmer
// error rather than a runtime condition to recover from.
func Mod(s string, n int) int {
	if n <= 0 {
		panic("hashutil: Mod called with non-positive n")
	}
	return int(String(s) % uint64(n))
}
