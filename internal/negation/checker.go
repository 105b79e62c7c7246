// Package negation implements the contextual suppression check applied around
// matched complaint keywords. Check is pure: the same token slice always
// yields the same factor, so it is unit-testable with literal token arrays.
package negation

// Check scans tokens within window positions on either side of matchIndex for
// members of negative and returns a suppression factor in [0,1]: 0 means the
// match is fully suppressed, 1 means it is unaffected.
//
// The factor decays linearly with distance: a negation token adjacent to the
// match yields 0, one at the window edge yields (window-1)/window. When
// several negation tokens fall inside the window the strongest (smallest)
// factor wins. Matching is exact on case-folded tokens.
func Check(tokens []string, matchIndex, window int, negative map[string]struct{}) float64 {
	if window <= 0 || len(negative) == 0 {
		return 1.0
	}
	if matchIndex < 0 || matchIndex >= len(tokens) {
		return 1.0
	}

	lo := matchIndex - window
	if lo < 0 {
		lo = 0
	}
	hi := matchIndex + window
	if hi > len(tokens)-1 {
		hi = len(tokens) - 1
	}

	factor := 1.0
	for i := lo; i <= hi; i++ {
		if i == matchIndex {
			continue
		}
		if _, ok := negative[tokens[i]]; !ok {
			continue
		}
		dist := matchIndex - i
		if dist < 0 {
			dist = -dist
		}
		f := float64(dist-1) / float64(window)
		if f < factor {
			factor = f
		}
	}

	return factor
}
