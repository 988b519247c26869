// Package bucket implements deterministic experiment bucketing: a pure
// mapping from (experiment, user, salt, variant weights) to a variant id,
// computed locally with no server round-trip.
//
// Determinism is the hard contract here. Every client platform embeds the
// same MurmurHash3 x86 32-bit algorithm, so the same user lands in the same
// variant everywhere. Do not change the hash, the key format, or the bucket
// space without coordinating a breaking version across all SDKs.
package bucket

import (
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/muninn-io/muninn-go/jsonval"
)

// BucketSpace is the number of assignment buckets. Basis points (0.01%
// granularity) rather than percent, so rollout weights like 0.001 are exact.
const BucketSpace = 10000

// Variant is one arm of an experiment. Weight is a fraction in [0,1];
// weights across a variant list are consumed as a cumulative distribution in
// list order and are not required to sum to exactly 1.0.
type Variant struct {
	ID      string                   `json:"id"`
	Weight  float64                  `json:"weight"`
	Payload map[string]jsonval.Value `json:"payload,omitempty"`
}

// Hash32 computes the MurmurHash3 x86 32-bit hash of the UTF-8 bytes of key.
//
// This exact algorithm (little-endian 4-byte blocks, constants 0xcc9e2d51 /
// 0x1b873593, standard finalization avalanche, wrapping 32-bit arithmetic)
// is the cross-platform compatibility contract shared with every other
// client SDK; it is pinned by literal test vectors.
func Hash32(key string, seed uint32) uint32 {
	return murmur3.Sum32WithSeed([]byte(key), seed)
}

// Bucket maps a user to an assignment bucket in [0, BucketSpace).
//
// The hash key is "experimentID.salt.userID": the salt makes assignments
// statistically independent across experiments, so a user in the lucky half
// of experiment A is not automatically in the lucky half of experiment B.
func Bucket(experimentID, userID, salt string) uint32 {
	return Hash32(experimentID+"."+salt+"."+userID, 0) % BucketSpace
}

// AssignVariant deterministically assigns a user to one of the given
// variants. It walks the variant list accumulating round(weight*10000) and
// returns the first variant whose cumulative bound exceeds the user's bucket.
// If floating-point rounding leaves the cumulative sum short, the last
// variant is the fallback. ok is false only when variants is empty.
//
// The function is pure: it consults no mutable state and allocates nothing.
func AssignVariant(experimentID, userID, salt string, variants []Variant) (variantID string, ok bool) {
	if len(variants) == 0 {
		return "", false
	}

	b := Bucket(experimentID, userID, salt)

	cumulative := uint32(0)
	for _, v := range variants {
		cumulative += uint32(math.Round(v.Weight * BucketSpace))
		if b < cumulative {
			return v.ID, true
		}
	}

	// Rounding left the distribution short of the bucket value.
	return variants[len(variants)-1].ID, true
}
