package limit

import (
	"fmt"
	"sort"

	"echidna/domain/core"
	domainLimit "echidna/domain/limit"
	"echidna/internal/chisquared"
)

// ExtractLimit finds the signal count at which the chi-squared curve rises
// by the confidence level threshold above its minimum.
//
// The best fit is the record with the smallest chi-squared, ties resolved to
// the lowest count. The curve is scanned upwards from the best fit and the
// limit is linearly interpolated between the last point below the threshold
// and the first point at or above it.
func ExtractLimit(records []domainLimit.ChiSquaredRecord, cl float64) (domainLimit.Limit, error) {
	result := domainLimit.Limit{ConfidenceLevel: cl}
	if len(records) == 0 {
		return result, fmt.Errorf("%w: no chi-squared values recorded", core.ErrNotConfigured)
	}
	delta, err := chisquared.DeltaChiSquared(cl)
	if err != nil {
		return result, err
	}

	sorted := append([]domainLimit.ChiSquaredRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })

	best := 0
	for i, r := range sorted {
		if r.ChiSquared < sorted[best].ChiSquared {
			best = i
		}
	}
	result.BestFit = sorted[best].Count
	result.MinChiSquared = sorted[best].ChiSquared
	result.Threshold = result.MinChiSquared + delta

	for i := best + 1; i < len(sorted); i++ {
		if sorted[i].ChiSquared < result.Threshold {
			continue
		}
		lo, hi := sorted[i-1], sorted[i]
		result.Counts = hi.Count
		if hi.ChiSquared != lo.ChiSquared {
			frac := (result.Threshold - lo.ChiSquared) / (hi.ChiSquared - lo.ChiSquared)
			result.Counts = lo.Count + frac*(hi.Count-lo.Count)
		}
		return result, nil
	}

	last := sorted[len(sorted)-1]
	return result, core.NewLimitNotReachedError(last.Count, last.ChiSquared, result.Threshold)
}
