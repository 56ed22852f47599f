package ml

import (
	"errors"
	"testing"
)

// separableSet returns three samples per class where class k is marked by
// feature k.
func separableSet() ([][]float64, []int) {
	var features [][]float64
	var labels []int
	for k := 0; k < NumClasses; k++ {
		for _, v := range []float64{2, 3, 4} {
			row := make([]float64, NumClasses)
			row[k] = v
			features = append(features, row)
			labels = append(labels, k)
		}
	}
	return features, labels
}

func query(class int) []float64 {
	row := make([]float64, NumClasses)
	row[class] = 3
	return row
}

func allModels() []MLModel {
	return []MLModel{
		NewLogisticRegression(),
		NewDecisionTree(5),
		NewLinearSVM(7),
		NewKNeighbors(3),
		NewRandomForest(31, 5, 7),
	}
}

func TestModelsSeparateClasses(t *testing.T) {
	features, labels := separableSet()
	for _, model := range allModels() {
		t.Run(model.Kind(), func(t *testing.T) {
			if err := model.Train(features, labels); err != nil {
				t.Fatalf("train: %v", err)
			}
			if model.NumFeatures() != NumClasses {
				t.Fatalf("expected %d features, got %d", NumClasses, model.NumFeatures())
			}
			for k := 0; k < NumClasses; k++ {
				label, confidence, err := model.Predict(query(k))
				if err != nil {
					t.Fatalf("predict: %v", err)
				}
				if label != k {
					t.Errorf("class %d predicted as %d", k, label)
				}
				if confidence <= 0 || confidence > 1 {
					t.Errorf("confidence out of range: %v", confidence)
				}
			}
		})
	}
}

func TestModelsRejectWrongWidth(t *testing.T) {
	features, labels := separableSet()
	for _, model := range allModels() {
		t.Run(model.Kind(), func(t *testing.T) {
			if err := model.Train(features, labels); err != nil {
				t.Fatalf("train: %v", err)
			}
			_, _, err := model.Predict([]float64{1, 2})
			if !errors.Is(err, ErrFeatureMismatch) {
				t.Fatalf("expected ErrFeatureMismatch, got %v", err)
			}
		})
	}
}

func TestModelsPredictZeroVector(t *testing.T) {
	features, labels := separableSet()
	for _, model := range allModels() {
		t.Run(model.Kind(), func(t *testing.T) {
			if err := model.Train(features, labels); err != nil {
				t.Fatalf("train: %v", err)
			}
			label, _, err := model.Predict(make([]float64, NumClasses))
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if label < 0 || label >= NumClasses {
				t.Fatalf("label out of range: %d", label)
			}
		})
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	model := NewLogisticRegression()
	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty set")
	}
	if err := model.Train([][]float64{{1}, {2}}, []int{0}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	if err := model.Train([][]float64{{1}}, []int{7}); err == nil {
		t.Fatal("expected error for out of range label")
	}
}
