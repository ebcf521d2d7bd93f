// Package scoring merges evaluation sources into per-cluster records and
// aggregates them into a report summary.
//
// The package is pure: it performs no I/O, holds no state between calls and
// is safe for concurrent use. Missing values stay absent all the way through
// aggregation and are never treated as zero.
package scoring

import (
	"fmt"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

// tierCount is the number of upper bounds separating the five tiers.
const tierCount = 4

// Thresholds are the exclusive upper bounds of tiers 1 through 4.
// A value at or above Thresholds[3] is tier 5.
type Thresholds [tierCount]float64

// BucketConfig maps each cohesion space to its thresholds.
type BucketConfig map[domain.Space]Thresholds

// Default thresholds. Raw embedding-space statistics cluster tightly around zero
// because of dimensionality, so their bounds are much narrower than the reduced ones.
var (
	DefaultRawThresholds     = Thresholds{-0.05, 0.00, 0.05, 0.10}
	DefaultReducedThresholds = Thresholds{-0.25, 0.00, 0.25, 0.50}
)

// DefaultBucketConfig returns the stock thresholds for both spaces.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{
		domain.SpaceReduced: DefaultReducedThresholds,
		domain.SpaceRaw:     DefaultRawThresholds,
	}
}

// Validate checks that both spaces are configured with strictly ascending bounds.
func (c BucketConfig) Validate() error {
	for _, space := range domain.Spaces {
		th, ok := c[space]
		if !ok {
			return fmt.Errorf("%w: no thresholds for space %q", apperrors.ErrInvalidThresholds, space)
		}

		for i := 1; i < tierCount; i++ {
			if !(th[i-1] < th[i]) {
				return fmt.Errorf("%w: %s bounds %v are not strictly ascending", apperrors.ErrInvalidThresholds, space, th)
			}
		}
	}

	return nil
}

// Bucketizer converts raw cohesion statistics into quality tiers.
type Bucketizer struct {
	cfg BucketConfig
}

// NewBucketizer creates a bucketizer from a validated copy of cfg.
func NewBucketizer(cfg BucketConfig) (*Bucketizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	owned := make(BucketConfig, len(cfg))
	for space, th := range cfg {
		owned[space] = th
	}

	return &Bucketizer{cfg: owned}, nil
}

// Bucketize maps a raw statistic to a tier using the thresholds of space.
// Absent or non-numeric input and unknown spaces yield TierUnavailable.
// Comparisons are strict, so a value equal to a bound lands in the higher tier.
func (b *Bucketizer) Bucketize(score domain.Score, space domain.Space) domain.Tier {
	v, ok := score.Value()
	if !ok {
		return domain.TierUnavailable
	}

	th, ok := b.cfg[space]
	if !ok {
		return domain.TierUnavailable
	}

	for i, bound := range th {
		if v < bound {
			return domain.Tier(i + 1)
		}
	}

	return domain.TierMax
}

// Cohesion bucketizes score and keeps the raw value next to its tier.
func (b *Bucketizer) Cohesion(score domain.Score, space domain.Space) domain.Cohesion {
	return domain.Cohesion{Raw: score, Tier: b.Bucketize(score, space)}
}
