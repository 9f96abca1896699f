package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullPairsPrioritizesInnerPairs(t *testing.T) {
	// 8-slot bracket, 5 entrants: 4 pairs, 1 full pair. The single full
	// pair is pair 1, whose winner meets the top seed in round 2.
	full := FullPairs(4, 1)
	assert.Equal(t, map[int]bool{1: true}, full)

	// 3 byes leaves pairs 1, 2 and 0 full.
	full = FullPairs(4, 3)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, full)
}

func TestFullPairsSmallBracket(t *testing.T) {
	// 4-slot bracket, 3 entrants: 2 pairs, 1 full. Falls back to pair 0.
	full := FullPairs(2, 1)
	assert.Equal(t, map[int]bool{0: true}, full)
}

func TestFullPairsBounds(t *testing.T) {
	assert.Empty(t, FullPairs(4, 0))

	all := FullPairs(4, 4)
	assert.Len(t, all, 4)
	for p := 0; p < 4; p++ {
		assert.True(t, all[p])
	}

	// Requests beyond capacity clamp to every pair.
	assert.Len(t, FullPairs(4, 9), 4)
}
