package ml

import (
	"gonum.org/v1/gonum/floats"
)

// LogisticRegression is a multinomial (softmax) classifier trained with
// full-batch gradient descent and L2 regularisation.
type LogisticRegression struct {
	LearningRate float64     `json:"learning_rate"`
	Epochs       int         `json:"epochs"`
	L2           float64     `json:"l2"`
	Weights      [][]float64 `json:"weights"`
	Bias         []float64   `json:"bias"`
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{LearningRate: 0.5, Epochs: 300, L2: 1e-4}
}

func (m *LogisticRegression) Kind() string { return KindLogisticRegression }

func (m *LogisticRegression) NumFeatures() int {
	if len(m.Weights) == 0 {
		return 0
	}
	return len(m.Weights[0])
}

func (m *LogisticRegression) Train(features [][]float64, labels []int) error {
	width, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if m.LearningRate <= 0 {
		m.LearningRate = 0.5
	}
	if m.Epochs <= 0 {
		m.Epochs = 300
	}

	m.Weights = zeros(NumClasses, width)
	m.Bias = make([]float64, NumClasses)
	gradW := zeros(NumClasses, width)
	gradB := make([]float64, NumClasses)
	n := float64(len(features))

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for k := range gradW {
			floats.Scale(0, gradW[k])
		}
		floats.Scale(0, gradB)

		for i, x := range features {
			probs := softmax(m.scores(x))
			for k := 0; k < NumClasses; k++ {
				g := probs[k]
				if labels[i] == k {
					g -= 1
				}
				if g == 0 {
					continue
				}
				floats.AddScaled(gradW[k], g, x)
				gradB[k] += g
			}
		}

		for k := 0; k < NumClasses; k++ {
			floats.AddScaled(gradW[k], m.L2*n, m.Weights[k])
			floats.AddScaled(m.Weights[k], -m.LearningRate/n, gradW[k])
			m.Bias[k] -= m.LearningRate * gradB[k] / n
		}
	}
	return nil
}

func (m *LogisticRegression) validate() error {
	return checkLinear(m.Weights, m.Bias)
}

func (m *LogisticRegression) Predict(features []float64) (int, float64, error) {
	if len(m.Weights) == 0 {
		return 0, 0, ErrNotTrained
	}
	if err := m.validate(); err != nil {
		return 0, 0, err
	}
	if err := checkInput(features, m.NumFeatures()); err != nil {
		return 0, 0, err
	}
	label, prob := argmax(softmax(m.scores(features)))
	return label, prob, nil
}

func (m *LogisticRegression) scores(x []float64) []float64 {
	scores := make([]float64, NumClasses)
	for k := range scores {
		scores[k] = floats.Dot(m.Weights[k], x) + m.Bias[k]
	}
	return scores
}
