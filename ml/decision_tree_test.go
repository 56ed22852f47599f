package ml

import "testing"

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence <= 0 {
		t.Fatalf("expected confidence > 0")
	}
}

func TestDecisionTreeDeepChildIndices(t *testing.T) {
	features, labels := separableSet()
	model := NewDecisionTree(6)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for k := 0; k < NumClasses; k++ {
		label, _, err := model.Predict(query(k))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != k {
			t.Fatalf("expected label %d, got %d", k, label)
		}
	}
	for i, node := range model.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.LeftChild <= i || node.RightChild <= i || node.RightChild >= len(model.Nodes) {
			t.Fatalf("node %d has invalid children %d/%d", i, node.LeftChild, node.RightChild)
		}
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	if _, _, err := (&DecisionTree{}).Predict([]float64{1}); err != ErrNotTrained {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}
