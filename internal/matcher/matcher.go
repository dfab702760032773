// Package matcher computes bipartite assignments between items and
// targets (CRTCs). Device applies it to connectors against CRTCs on each
// hotplug or mode-change pass; planes are not matched here but picked by
// Device's pickPlane/pickCursorPlane.
package matcher

// Sentinel previous-assignment values (spec §4.3).
const (
	// Unmatched means the item had no prior target and is free to match.
	Unmatched = -1
	// Skip means the item must never be matched, regardless of what
	// targets are available (e.g. a CRTC disabled out-of-band).
	Skip = -2
)

// Match produces a new item→target assignment that retains as many of
// the previous pairings in prev as possible, then greedily fills
// remaining items against remaining targets via augmenting paths. Ties
// are always broken toward the lower item or target index, which also
// gives the function its fixed-point property: a valid, conflict-free
// prev is returned unchanged.
//
// possible[i] is the bitmask of target indices item i may attach to.
// prev[i] is item i's previous assignment: a target index, Unmatched,
// or Skip. numTargets bounds the valid target index range [0, numTargets).
func Match(possible []uint32, prev []int, numTargets int) []int {
	n := len(possible)
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = Unmatched
	}
	if numTargets <= 0 || n == 0 {
		return assignment
	}

	targetHolder := make([]int, numTargets)
	for t := range targetHolder {
		targetHolder[t] = Unmatched
	}
	retained := make([]bool, n)

	// Phase 1: keep every previous pairing that is still valid and does
	// not conflict with a lower-indexed item claiming the same target.
	for i := 0; i < n; i++ {
		t := prev[i]
		if t == Skip || t == Unmatched {
			continue
		}
		if t < 0 || t >= numTargets {
			continue
		}
		if possible[i]&(uint32(1)<<uint(t)) == 0 {
			continue
		}
		if targetHolder[t] != Unmatched {
			continue
		}
		targetHolder[t] = i
		retained[i] = true
	}

	// Phase 2: augmenting-path search for every item left over. An item
	// may bump another unretained item off a target it holds, but never
	// a retained one, so phase 1's pairings are never disturbed.
	visited := make([]bool, numTargets)
	for i := 0; i < n; i++ {
		if prev[i] == Skip || retained[i] {
			continue
		}
		for t := range visited {
			visited[t] = false
		}
		tryAssign(i, possible, targetHolder, retained, visited)
	}

	for t, holder := range targetHolder {
		if holder != Unmatched {
			assignment[holder] = t
		}
	}
	return assignment
}

// tryAssign attempts to seat item on some target it may attach to: a free
// target first, otherwise by recursively displacing an unretained
// occupant. Targets are tried in ascending index order so the outcome is
// deterministic.
func tryAssign(item int, possible []uint32, targetHolder []int, retained []bool, visited []bool) bool {
	for t := 0; t < len(targetHolder); t++ {
		if possible[item]&(uint32(1)<<uint(t)) != 0 && !visited[t] && targetHolder[t] == Unmatched {
			visited[t] = true
			targetHolder[t] = item
			return true
		}
	}
	for t := 0; t < len(targetHolder); t++ {
		if possible[item]&(uint32(1)<<uint(t)) == 0 || visited[t] {
			continue
		}
		visited[t] = true

		holder := targetHolder[t]
		if holder == Unmatched {
			targetHolder[t] = item
			return true
		}
		if retained[holder] {
			continue
		}
		if tryAssign(holder, possible, targetHolder, retained, visited) {
			targetHolder[t] = item
			return true
		}
	}
	return false
}
