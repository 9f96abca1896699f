package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOrderIsPermutation(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16, 32, 64, 128} {
		order := SeedOrder(n)
		require.Len(t, order, n, "bracket size %d", n)

		seen := make(map[int]bool, n)
		for _, slot := range order {
			assert.GreaterOrEqual(t, slot, 0)
			assert.Less(t, slot, n)
			assert.False(t, seen[slot], "slot %d appears twice for n=%d", slot, n)
			seen[slot] = true
		}
	}
}

func TestSeedOrderTopSeedsAtOppositeEnds(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16, 32, 64} {
		order := SeedOrder(n)
		assert.Equal(t, 0, order[0], "seed 1 slot for n=%d", n)
		assert.Equal(t, n-1, order[1], "seed 2 slot for n=%d", n)
	}
}

func TestSeedOrderSmallBrackets(t *testing.T) {
	assert.Equal(t, []int{0, 3, 1, 2}, SeedOrder(4))
	assert.Equal(t, []int{0, 7, 1, 6, 2, 5, 3, 4}, SeedOrder(8))
}

func TestSeedOrderSixteenCorners(t *testing.T) {
	order := SeedOrder(16)
	// Seeds 3 and 4 land at the inner corners: slots n/4-1 and 3n/4.
	assert.Equal(t, 3, order[2])
	assert.Equal(t, 12, order[3])
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 9: 16, 17: 32, 100: 128}
	for m, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(m), "m=%d", m)
	}
}

func TestRecommendedSeedCount(t *testing.T) {
	assert.Equal(t, 4, RecommendedSeedCount(4))
	assert.Equal(t, 4, RecommendedSeedCount(8))
	assert.Equal(t, 8, RecommendedSeedCount(16))
	assert.Equal(t, 16, RecommendedSeedCount(32))
	assert.Equal(t, 16, RecommendedSeedCount(128))
}
