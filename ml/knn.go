package ml

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SparseRow stores the non-zero entries of a training vector.
type SparseRow struct {
	Index []int     `json:"i"`
	Value []float64 `json:"v"`
	Norm2 float64   `json:"n"`
}

func toSparse(x []float64) SparseRow {
	row := SparseRow{}
	for i, v := range x {
		if v != 0 {
			row.Index = append(row.Index, i)
			row.Value = append(row.Value, v)
		}
	}
	row.Norm2 = floats.Dot(row.Value, row.Value)
	return row
}

// KNeighbors is a k-nearest-neighbour classifier using euclidean distance.
type KNeighbors struct {
	K      int         `json:"k"`
	Width  int         `json:"num_features"`
	Points []SparseRow `json:"points"`
	Labels []int       `json:"labels"`
}

func NewKNeighbors(k int) *KNeighbors {
	return &KNeighbors{K: k}
}

func (m *KNeighbors) Kind() string { return KindKNeighbors }

func (m *KNeighbors) NumFeatures() int { return m.Width }

func (m *KNeighbors) Train(features [][]float64, labels []int) error {
	width, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if m.K <= 0 {
		m.K = 5
	}
	m.Width = width
	m.Points = make([]SparseRow, len(features))
	for i, x := range features {
		m.Points[i] = toSparse(x)
	}
	m.Labels = append([]int(nil), labels...)
	return nil
}

func (m *KNeighbors) validate() error {
	if m.Width <= 0 {
		return malformed("k_neighbors has no features")
	}
	if m.K <= 0 {
		return malformed("k_neighbors has k=%d", m.K)
	}
	if len(m.Points) == 0 {
		return malformed("k_neighbors has no points")
	}
	if len(m.Labels) != len(m.Points) {
		return malformed("k_neighbors has %d labels for %d points", len(m.Labels), len(m.Points))
	}
	for i, label := range m.Labels {
		if !validLabel(label) {
			return malformed("k_neighbors label %d at %d is outside 0..%d", label, i, NumClasses-1)
		}
	}
	for i, p := range m.Points {
		if len(p.Index) != len(p.Value) {
			return malformed("k_neighbors point %d has %d indices and %d values", i, len(p.Index), len(p.Value))
		}
		for _, idx := range p.Index {
			if idx < 0 || idx >= m.Width {
				return malformed("k_neighbors point %d references feature %d of %d", i, idx, m.Width)
			}
		}
	}
	return nil
}

// Predict votes among the K nearest points. A label outside the known
// classes is returned as is for the caller to reject.
func (m *KNeighbors) Predict(features []float64) (int, float64, error) {
	if len(m.Points) == 0 {
		return 0, 0, ErrNotTrained
	}
	if len(m.Labels) != len(m.Points) {
		return 0, 0, malformed("k_neighbors has %d labels for %d points", len(m.Labels), len(m.Points))
	}
	if err := checkInput(features, m.Width); err != nil {
		return 0, 0, err
	}

	type neighbour struct {
		dist  float64
		label int
		order int
	}
	queryNorm := floats.Dot(features, features)
	neighbours := make([]neighbour, len(m.Points))
	for i, p := range m.Points {
		dot := 0.0
		for j, idx := range p.Index {
			if idx < 0 || idx >= len(features) || j >= len(p.Value) {
				return 0, 0, malformed("k_neighbors point %d references feature %d of %d", i, idx, len(features))
			}
			dot += p.Value[j] * features[idx]
		}
		neighbours[i] = neighbour{dist: queryNorm + p.Norm2 - 2*dot, label: m.Labels[i], order: i}
	}
	sort.Slice(neighbours, func(i, j int) bool {
		if neighbours[i].dist != neighbours[j].dist {
			return neighbours[i].dist < neighbours[j].dist
		}
		return neighbours[i].order < neighbours[j].order
	})

	k := m.K
	if k > len(neighbours) {
		k = len(neighbours)
	}
	counts := make(map[int]int, NumClasses)
	best := neighbours[0].label
	for _, n := range neighbours[:k] {
		counts[n.label]++
		// Ties resolve to the label reached first, i.e. the closer neighbour.
		if counts[n.label] > counts[best] {
			best = n.label
		}
	}
	return best, float64(counts[best]) / float64(k), nil
}
