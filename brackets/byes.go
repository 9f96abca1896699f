package brackets

// FullPairs returns the set of first-round pair indices that should hold
// two real entrants; every pair outside the set gets one bye.
//
// Pairs 1 and 2 (0-indexed) are prioritized: their winners meet the top
// two seeds in round 2, so packing real matches there maximizes
// meaningful play. Small brackets (fewer than 4 pairs) fall back to
// pairs 0 and 1. Remaining capacity fills by ascending pair index.
func FullPairs(pairCount, fullPairCount int) map[int]bool {
	if fullPairCount > pairCount {
		fullPairCount = pairCount
	}
	full := make(map[int]bool, fullPairCount)
	if fullPairCount <= 0 {
		return full
	}

	priority := make([]int, 0, pairCount)
	if pairCount >= 4 {
		priority = append(priority, 1, 2)
	} else {
		if pairCount > 0 {
			priority = append(priority, 0)
		}
		if pairCount > 1 {
			priority = append(priority, 1)
		}
	}
	for p := 0; p < pairCount; p++ {
		if !contains(priority, p) {
			priority = append(priority, p)
		}
	}

	for _, p := range priority[:fullPairCount] {
		full[p] = true
	}
	return full
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
