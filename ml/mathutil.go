package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func softmax(scores []float64) []float64 {
	probs := make([]float64, len(scores))
	if len(scores) == 0 {
		return probs
	}
	peak := floats.Max(scores)
	for i, s := range scores {
		probs[i] = math.Exp(s - peak)
	}
	total := floats.Sum(probs)
	if total == 0 {
		return probs
	}
	floats.Scale(1/total, probs)
	return probs
}

func argmax(values []float64) (int, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	idx := floats.MaxIdx(values)
	return idx, values[idx]
}

func zeros(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// vote returns the majority label and its share of the ballots. Ties go to
// the lowest label so that predictions stay deterministic.
func vote(labels []int) (int, float64) {
	if len(labels) == 0 {
		return 0, 0
	}
	var counts [NumClasses]int
	for _, label := range labels {
		if label >= 0 && label < NumClasses {
			counts[label]++
		}
	}
	best := 0
	for label := 1; label < NumClasses; label++ {
		if counts[label] > counts[best] {
			best = label
		}
	}
	return best, float64(counts[best]) / float64(len(labels))
}
