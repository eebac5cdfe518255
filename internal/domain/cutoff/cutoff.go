// Package cutoff decides how many of the top-ranked search results are
// genuinely relevant, based on gaps in the distance distribution rather
// than a fixed top-K.
package cutoff

// Default thresholds, tuned against cosine distances produced by
// paraphrase-multilingual-MiniLM-L12-v2. Changing the embedding model
// shifts the distance distribution and requires re-tuning.
const (
	DefaultQualityFloor  = 0.50
	DefaultMaxDistance   = 0.75
	DefaultGapMultiplier = 2.5
	DefaultAvgFloor      = 0.01
)

// Thresholds parameterize the break detection.
type Thresholds struct {
	// QualityFloor rejects the whole list when even the best match is above it.
	QualityFloor float64
	// MaxDistance is a hard ceiling; anything above it is discarded up front.
	MaxDistance float64
	// GapMultiplier is the gap-to-baseline ratio that counts as a break.
	GapMultiplier float64
	// AvgFloor bounds the baseline from below so near-duplicate clusters
	// (tiny average gap) don't turn every ordinary gap into a break.
	AvgFloor float64
}

// DefaultThresholds returns the thresholds tuned for the default model.
func DefaultThresholds() Thresholds {
	return Thresholds{
		QualityFloor:  DefaultQualityFloor,
		MaxDistance:   DefaultMaxDistance,
		GapMultiplier: DefaultGapMultiplier,
		AvgFloor:      DefaultAvgFloor,
	}
}

// Keep returns how many of the leading distances to keep. The input must be
// sorted ascending; the caller truncates to the first Keep(distances) entries.
//
// Relevance distributions cluster: a tight group of close matches, then a
// sharp jump to noise. Keep scans the adjacent gaps left to right and stops
// at the first one that is large relative to the local baseline.
func (t Thresholds) Keep(distances []float64) int {
	if len(distances) == 0 {
		return 0
	}
	if distances[0] > t.QualityFloor {
		return 0
	}

	// Ascending input, so the ceiling cuts a suffix.
	n := len(distances)
	for n > 0 && distances[n-1] > t.MaxDistance {
		n--
	}
	d := distances[:n]
	if len(d) == 0 {
		return 0
	}
	if len(d) == 1 {
		return 1
	}

	gaps := make([]float64, len(d)-1)
	for i := range gaps {
		gaps[i] = d[i+1] - d[i]
	}

	if len(gaps) == 1 {
		// Single pair: the jump must exceed the best distance itself to
		// count as a break.
		if gaps[0] > d[0] {
			return 1
		}
		return len(d)
	}

	for i, g := range gaps {
		var baseline float64
		if i == 0 {
			baseline = mean(gaps[1:])
		} else {
			baseline = mean(gaps[:i])
		}
		if baseline < t.AvgFloor {
			baseline = t.AvgFloor
		}
		if g/baseline >= t.GapMultiplier {
			return i + 1
		}
	}

	return len(d)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
