package search

// selectCenters keeps the fused-sorted candidates whose score is within
// relThreshold of the best one, capped at centerK.
//
// Hard-keep rule: the BM25 rank-1 candidate always ends up a center even
// when it misses the threshold, replacing the worst kept candidate at
// capacity. A dense-only winner must not drown the lexical signal.
func selectCenters(sorted []*candidate, relThreshold float64, centerK int) []*candidate {
	if len(sorted) == 0 {
		return nil
	}
	if centerK < 1 {
		centerK = 1
	}

	top := sorted[0].fused
	centers := make([]*candidate, 0, centerK)
	for _, c := range sorted {
		if c.fused < relThreshold*top {
			break
		}
		centers = append(centers, c)
		if len(centers) == centerK {
			break
		}
	}

	var first *candidate
	for _, c := range sorted {
		if c.bm25Rank == 1 {
			first = c
			break
		}
	}
	if first == nil {
		return centers
	}
	for _, c := range centers {
		if c == first {
			return centers
		}
	}

	if len(centers) < centerK {
		centers = append(centers, first)
	} else {
		// centers is a descending prefix, so the worst sits last.
		centers[len(centers)-1] = first
	}
	return centers
}
