package brackets

// SeedOrder returns, for a bracket of size n, the slot indices in seed
// priority order: the i-th element is the slot that receives the i-th
// strongest seed. Four-corner convention: seeds 1-4 are pinned to slots
// 0, n-1, n/4-1 and 3n/4, then the remaining slots are filled by
// interleaving the four sub-quadrants.
func SeedOrder(n int) []int {
	if n <= 1 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	if n == 2 {
		return []int{0, 1}
	}

	corners := cornerSlots(n)

	taken := make(map[int]bool, len(corners))
	for _, c := range corners {
		taken[c] = true
	}
	remaining := make([]int, 0, n-len(corners))
	for i := 0; i < n; i++ {
		if !taken[i] {
			remaining = append(remaining, i)
		}
	}

	// Partition the remainder into four equal blocks. Division is exact
	// for powers of two >= 8; any leftover from inexact division is
	// appended verbatim at the end.
	blockSize := (n - 4) / 4
	blocks := make([][]int, 0, 4)
	for k := 0; k < 4 && blockSize > 0; k++ {
		block := remaining[k*blockSize : (k+1)*blockSize]
		blocks = append(blocks, orderWithinBlock(block, k%2 == 0))
	}
	leftover := remaining[min(4*blockSize, len(remaining)):]

	order := make([]int, 0, n)
	order = append(order, corners...)

	// Visit blocks round-robin in priority order 0,3,1,2 so the two
	// outer quadrants fill before the inner ones.
	blockPriority := []int{0, 3, 1, 2}
	for i := 0; i < blockSize; i++ {
		for _, k := range blockPriority {
			if k < len(blocks) && i < len(blocks[k]) {
				order = append(order, blocks[k][i])
			}
		}
	}
	order = append(order, leftover...)

	return order
}

// cornerSlots lists the four corner slots in priority order, clamped to
// the valid range and de-duplicated (n=4 collapses to two corners).
func cornerSlots(n int) []int {
	candidates := []int{0, n - 1, n/4 - 1, 3 * n / 4}
	corners := make([]int, 0, 4)
	seen := make(map[int]bool, 4)
	for _, c := range candidates {
		if c < 0 {
			c = 0
		}
		if c > n-1 {
			c = n - 1
		}
		if !seen[c] {
			seen[c] = true
			corners = append(corners, c)
		}
	}
	return corners
}

// orderWithinBlock alternates positions from the block's two ends:
// lo, hi, lo+1, hi-1, ... when startLow, otherwise hi, lo, hi-1, lo+1.
func orderWithinBlock(block []int, startLow bool) []int {
	ordered := make([]int, 0, len(block))
	lo, hi := 0, len(block)-1
	fromLow := startLow
	for lo <= hi {
		if fromLow {
			ordered = append(ordered, block[lo])
			lo++
		} else {
			ordered = append(ordered, block[hi])
			hi--
		}
		fromLow = !fromLow
	}
	return ordered
}

// NextPowerOfTwo returns the smallest power of two >= m (minimum 1).
func NextPowerOfTwo(m int) int {
	n := 1
	for n < m {
		n <<= 1
	}
	return n
}

// RecommendedSeedCount is advisory metadata only, never enforced.
func RecommendedSeedCount(n int) int {
	switch {
	case n <= 8:
		return 4
	case n <= 16:
		return 8
	default:
		return 16
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
