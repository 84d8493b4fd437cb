// Package minhash implements the fixed-seed, fixed-dictionary MinHash
// engine from spec.md §4.6: a read-only-after-init engine that
// tokenizes strings into a bounded integer dictionary and estimates
// Jaccard similarity between signatures. There is no package-level
// instance: New returns a fresh Engine on every call, and Engines built
// from the same (L, D, S) produce identical signatures.
//
// No MinHash/Jaccard implementation appears anywhere in the retrieval
// pack this module was grounded on; this is built directly from the
// algorithm in spec.md, using github.com/cespare/xxhash/v2 — which
// does appear in the pack — as the underlying 32-bit token hash
// (hash32), folding its 64-bit digest down. The choice is documented
// rather than a port of any specific legacy hash, per spec.md §9's
// Open Question on hash32.
package minhash

import (
	"github.com/cespare/xxhash/v2"
)

// Engine is a fixed MinHash configuration: signature length L,
// dictionary size D, and seed S. Construct one per deployment and
// reuse it for every Signature/Similarity call — it holds no mutable
// state after New returns, so it is safe to share across goroutines.
type Engine struct {
	length         int
	dictionarySize uint64
	seed           int64
	perm           []uint64 // per-function multiplicative salt, derived from seed
}

// New builds an Engine with signature length L, dictionary size D and
// seed S. A non-positive L or D falls back to 128 or 50000.
func New(length int, dictionarySize int, seed int64) *Engine {
	if length <= 0 {
		length = 128
	}
	if dictionarySize <= 0 {
		dictionarySize = 50000
	}

	e := &Engine{
		length:         length,
		dictionarySize: uint64(dictionarySize),
		seed:           seed,
		perm:           make([]uint64, length),
	}

	// Derive L deterministic odd multiplicative salts from the seed
	// using a splitmix64-style stepping function, so every hash
	// function in the family is reproducible from (seed, index) alone.
	state := uint64(seed)
	for i := 0; i < length; i++ {
		state += 0x9E3779B97F4A7C15
		z := state
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z = z ^ (z >> 31)
		e.perm[i] = z | 1 // keep odd, so it stays invertible mod 2^64
	}
	return e
}

// Length returns the engine's signature length L.
func (e *Engine) Length() int { return e.length }

// DictionarySize returns the engine's dictionary size D.
func (e *Engine) DictionarySize() int { return int(e.dictionarySize) }

// hash32 deterministically maps a byte sequence to a 32-bit value.
// It must be self-consistent across a deployment (same function at
// ingest and query time); it need not match any particular legacy
// implementation (spec.md §9).
func hash32(s string) uint32 {
	h := xxhash.Sum64String(s)
	return uint32(h ^ (h >> 32))
}

// Token maps a string to its dictionary slot: floor_mod(hash32(s), D).
func (e *Engine) Token(s string) uint64 {
	return uint64(hash32(s)) % e.dictionarySize
}

// Tokenize maps a set of strings to their unique dictionary tokens,
// duplicate tokens eliminated before signing (spec.md §4.6).
func (e *Engine) Tokenize(strs []string) []uint64 {
	seen := make(map[uint64]struct{}, len(strs))
	tokens := make([]uint64, 0, len(strs))
	for _, s := range strs {
		tok := e.Token(s)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// hashFunc applies the i-th hash function in the family to a token.
// Each function is a distinct odd multiplier mixed with a final
// avalanche step, giving L effectively-independent permutations of
// the token space derived deterministically from the engine's seed.
func (e *Engine) hashFunc(i int, token uint64) uint64 {
	x := (token + 1) * e.perm[i]
	x ^= x >> 33
	x *= 0xFF51AFD7ED558CCD
	x ^= x >> 33
	return x
}

// Signature computes the MinHash signature over a set of tokens: for
// each of the L hash functions, the minimum hash value across all
// tokens. An empty token set yields a signature of all-maximum
// sentinel values, which never equals another non-empty signature by
// chance.
func (e *Engine) Signature(tokens []uint64) []int32 {
	sig := make([]int32, e.length)
	for i := 0; i < e.length; i++ {
		var min uint64 = ^uint64(0)
		for _, tok := range tokens {
			h := e.hashFunc(i, tok)
			if h < min {
				min = h
			}
		}
		// Fold to int32: the low 32 bits of the minimum are plenty to
		// keep collision probability negligible at realistic L, and
		// keep the persisted representation within STRING_MINHASH's
		// int32[] schema.
		sig[i] = int32(uint32(min))
	}
	return sig
}

// Similarity estimates the Jaccard similarity of the sets sigA and
// sigB were signed from: the fraction of hash functions whose minima
// agree.
func (e *Engine) Similarity(sigA, sigB []int32) float64 {
	n := len(sigA)
	if len(sigB) < n {
		n = len(sigB)
	}
	if n == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if sigA[i] == sigB[i] {
			matches++
		}
	}
	return float64(matches) / float64(n)
}
