package ml

import (
	"errors"
	"fmt"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrMalformedArtifact = errors.New("malformed artifact")
	ErrFeatureMismatch   = errors.New("feature dimension mismatch")
	ErrNotTrained        = errors.New("model not trained")
)

// NumClasses is the number of sentiment classes every classifier emits.
const NumClasses = 4

type MLModel interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
	NumFeatures() int
	Kind() string
}

var (
	_ MLModel = (*LogisticRegression)(nil)
	_ MLModel = (*DecisionTree)(nil)
	_ MLModel = (*LinearSVM)(nil)
	_ MLModel = (*KNeighbors)(nil)
	_ MLModel = (*RandomForest)(nil)
)

// validator is implemented by every model; LoadModel runs it so a decoded
// artifact cannot index outside its own tables at predict time.
type validator interface {
	validate() error
}

var (
	_ validator = (*LogisticRegression)(nil)
	_ validator = (*DecisionTree)(nil)
	_ validator = (*LinearSVM)(nil)
	_ validator = (*KNeighbors)(nil)
	_ validator = (*RandomForest)(nil)
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedArtifact, fmt.Sprintf(format, args...))
}

// checkLinear verifies one weight row and one bias per class, all rows of
// the same non-zero width.
func checkLinear(weights [][]float64, bias []float64) error {
	if len(weights) != NumClasses {
		return malformed("%d weight rows, want %d", len(weights), NumClasses)
	}
	if len(bias) != NumClasses {
		return malformed("%d bias terms, want %d", len(bias), NumClasses)
	}
	width := len(weights[0])
	if width == 0 {
		return malformed("empty weight rows")
	}
	for k, row := range weights {
		if len(row) != width {
			return malformed("weight row %d has %d columns, want %d", k, len(row), width)
		}
	}
	return nil
}

func validLabel(label int) bool {
	return label >= 0 && label < NumClasses
}

func checkTrainingSet(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return 0, ErrFeatureMismatch
		}
	}
	for _, label := range labels {
		if label < 0 || label >= NumClasses {
			return 0, errors.New("label out of range")
		}
	}
	return width, nil
}

func checkInput(features []float64, width int) error {
	if width == 0 {
		return ErrNotTrained
	}
	if len(features) != width {
		return fmt.Errorf("%w: got %d features, model expects %d", ErrFeatureMismatch, len(features), width)
	}
	return nil
}
