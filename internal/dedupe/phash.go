package dedupe

import "math/bits"

// HammingDistance64 is the bit-difference count between two 64-bit
// perceptual image hashes (§4.4 "Hamming distance ≤ H"). Computing the
// actual pHash from image bytes is an external concern (the scrape
// adapter or a dedicated image-processing collaborator would supply the
// hash); this package only compares already-computed hashes.
func HammingDistance64(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// ImageHashThreshold is H from §4.4: hashes within this distance are
// treated as the same image.
const ImageHashThreshold = 10

// MinHash64 is a single-permutation MinHash signature over a token set.
// The dedupe stage persists the description signature built from it in
// dedupe_signatures.desc_minhash; Evaluate does not consult it. hashFn
// must be a stable, well-distributed hash (FNV-1a is used at the call site).
func MinHash64(tokens map[string]struct{}, hashFn func(string) uint64) uint64 {
	var min uint64 = ^uint64(0)
	for t := range tokens {
		h := hashFn(t)
		if h < min {
			min = h
		}
	}
	if min == ^uint64(0) {
		return 0
	}
	return min
}

// MinHashSignature computes k independent MinHash values by salting the
// token before hashing, giving a fixed-length signature for
// DedupeSignature.DescMinHash.
func MinHashSignature(tokens map[string]struct{}, k int, hashFn func(string) uint64) []uint64 {
	sig := make([]uint64, k)
	for i := 0; i < k; i++ {
		salted := make(map[string]struct{}, len(tokens))
		for t := range tokens {
			salted[saltToken(t, i)] = struct{}{}
		}
		sig[i] = MinHash64(salted, hashFn)
	}
	return sig
}

func saltToken(t string, salt int) string {
	buf := make([]byte, 0, len(t)+4)
	buf = append(buf, byte(salt), byte(salt>>8), byte(salt>>16), byte(salt>>24))
	buf = append(buf, t...)
	return string(buf)
}

// MinHashSimilarity estimates Jaccard similarity as the fraction of
// matching signature slots.
func MinHashSimilarity(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
