package ml

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// LinearSVM trains one hinge-loss classifier per class (one-vs-rest) with
// the Pegasos stochastic sub-gradient method.
type LinearSVM struct {
	Lambda  float64     `json:"lambda"`
	Epochs  int         `json:"epochs"`
	Seed    int64       `json:"seed"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func NewLinearSVM(seed int64) *LinearSVM {
	return &LinearSVM{Lambda: 1e-3, Epochs: 20, Seed: seed}
}

func (m *LinearSVM) Kind() string { return KindLinearSVM }

func (m *LinearSVM) NumFeatures() int {
	if len(m.Weights) == 0 {
		return 0
	}
	return len(m.Weights[0])
}

func (m *LinearSVM) Train(features [][]float64, labels []int) error {
	width, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if m.Lambda <= 0 {
		m.Lambda = 1e-3
	}
	if m.Epochs <= 0 {
		m.Epochs = 20
	}

	m.Weights = zeros(NumClasses, width)
	m.Bias = make([]float64, NumClasses)
	rnd := rand.New(rand.NewSource(m.Seed))

	for k := 0; k < NumClasses; k++ {
		w := m.Weights[k]
		t := 0
		for epoch := 0; epoch < m.Epochs; epoch++ {
			for _, i := range rnd.Perm(len(features)) {
				t++
				eta := 1 / (m.Lambda * float64(t))
				y := -1.0
				if labels[i] == k {
					y = 1
				}
				margin := y * (floats.Dot(w, features[i]) + m.Bias[k])
				floats.Scale(1-eta*m.Lambda, w)
				if margin < 1 {
					floats.AddScaled(w, eta*y, features[i])
					m.Bias[k] += eta * m.Lambda * y
				}
			}
		}
	}
	return nil
}

func (m *LinearSVM) validate() error {
	return checkLinear(m.Weights, m.Bias)
}

// Predict returns the class with the largest decision value; the confidence
// is a softmax over the decision values.
func (m *LinearSVM) Predict(features []float64) (int, float64, error) {
	if len(m.Weights) == 0 {
		return 0, 0, ErrNotTrained
	}
	if err := m.validate(); err != nil {
		return 0, 0, err
	}
	if err := checkInput(features, m.NumFeatures()); err != nil {
		return 0, 0, err
	}
	scores := make([]float64, NumClasses)
	for k := range scores {
		scores[k] = floats.Dot(m.Weights[k], features) + m.Bias[k]
	}
	label, _ := argmax(scores)
	return label, softmax(scores)[label], nil
}
