package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

func newTestBucketizer(t *testing.T) *Bucketizer {
	t.Helper()

	b, err := NewBucketizer(DefaultBucketConfig())
	require.NoError(t, err)

	return b
}

func TestBucketize_Thresholds(t *testing.T) {
	b := newTestBucketizer(t)

	tests := []struct {
		name  string
		value float64
		space domain.Space
		want  domain.Tier
	}{
		{"raw far negative", -0.5, domain.SpaceRaw, 1},
		{"raw just below -0.05", -0.0500001, domain.SpaceRaw, 1},
		{"raw at -0.05", -0.05, domain.SpaceRaw, 2},
		{"raw just below zero", -0.0001, domain.SpaceRaw, 2},
		{"raw at zero", 0.00, domain.SpaceRaw, 3},
		{"raw 0.02", 0.02, domain.SpaceRaw, 3},
		{"raw at 0.05", 0.05, domain.SpaceRaw, 4},
		{"raw 0.07", 0.07, domain.SpaceRaw, 4},
		{"raw at 0.10", 0.10, domain.SpaceRaw, 5},
		{"raw at one", 1.0, domain.SpaceRaw, 5},
		{"reduced far negative", -0.9, domain.SpaceReduced, 1},
		{"reduced at -0.25", -0.25, domain.SpaceReduced, 2},
		{"reduced -0.10", -0.10, domain.SpaceReduced, 2},
		{"reduced at zero", 0.00, domain.SpaceReduced, 3},
		{"reduced 0.02", 0.02, domain.SpaceReduced, 3},
		{"reduced at 0.25", 0.25, domain.SpaceReduced, 4},
		{"reduced at 0.50", 0.50, domain.SpaceReduced, 5},
		{"reduced 0.9", 0.9, domain.SpaceReduced, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, b.Bucketize(domain.Present(tt.value), tt.space))
		})
	}
}

func TestBucketize_Unavailable(t *testing.T) {
	b := newTestBucketizer(t)

	for _, space := range domain.Spaces {
		require.Equal(t, domain.TierUnavailable, b.Bucketize(domain.Absent(), space), "absent in %s", space)
		require.Equal(t, domain.TierUnavailable, b.Bucketize(domain.Present(math.NaN()), space), "NaN in %s", space)
		require.Equal(t, domain.TierUnavailable, b.Bucketize(domain.ScoreFromPtr(nil), space), "nil in %s", space)
	}

	require.Equal(t, domain.TierUnavailable, b.Bucketize(domain.Present(0.3), domain.Space("pca")))
}

func TestBucketize_AlwaysInRange(t *testing.T) {
	b := newTestBucketizer(t)

	for v := -1.0; v <= 1.0; v += 0.01 {
		for _, space := range domain.Spaces {
			tier := b.Bucketize(domain.Present(v), space)
			require.True(t, tier.Available(), "value %v in %s gave tier %d", v, space, tier)
		}
	}
}

func TestBucketize_SpacesDiffer(t *testing.T) {
	b := newTestBucketizer(t)

	require.Equal(t, domain.Tier(4), b.Bucketize(domain.Present(0.07), domain.SpaceRaw))
	require.Equal(t, domain.Tier(3), b.Bucketize(domain.Present(0.07), domain.SpaceReduced))

	require.Equal(t, domain.Tier(1), b.Bucketize(domain.Present(-0.10), domain.SpaceRaw))
	require.Equal(t, domain.Tier(2), b.Bucketize(domain.Present(-0.10), domain.SpaceReduced))
}

func TestNewBucketizer_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  BucketConfig
	}{
		{
			name: "missing raw space",
			cfg:  BucketConfig{domain.SpaceReduced: DefaultReducedThresholds},
		},
		{
			name: "descending bounds",
			cfg: BucketConfig{
				domain.SpaceReduced: {0.5, 0.25, 0, -0.25},
				domain.SpaceRaw:     DefaultRawThresholds,
			},
		},
		{
			name: "repeated bound",
			cfg: BucketConfig{
				domain.SpaceReduced: DefaultReducedThresholds,
				domain.SpaceRaw:     {-0.05, 0, 0, 0.1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBucketizer(tt.cfg)
			require.ErrorIs(t, err, apperrors.ErrInvalidThresholds)
		})
	}
}

func TestNewBucketizer_CustomThresholds(t *testing.T) {
	cfg := BucketConfig{
		domain.SpaceReduced: {-0.5, -0.1, 0.1, 0.3},
		domain.SpaceRaw:     DefaultRawThresholds,
	}

	b, err := NewBucketizer(cfg)
	require.NoError(t, err)

	// Mutating the caller's map must not affect the bucketizer.
	cfg[domain.SpaceReduced] = DefaultReducedThresholds

	require.Equal(t, domain.Tier(5), b.Bucketize(domain.Present(0.3), domain.SpaceReduced))
}
