package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	Width           int        `json:"num_features"`
	Nodes           []TreeNode `json:"nodes"`

	// maxFeatures and rng are only used while training inside a forest.
	maxFeatures int
	rng         *rand.Rand
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	Confidence float64 `json:"confidence"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: 2}
}

func (dt *DecisionTree) Kind() string { return KindDecisionTree }

func (dt *DecisionTree) NumFeatures() int { return dt.Width }

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	width, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = 3
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}

	dt.Width = width
	dt.Nodes = dt.Nodes[:0]
	dt.buildNode(features, labels, 0)
	return nil
}

func (dt *DecisionTree) validate() error {
	if dt.Width <= 0 {
		return malformed("decision_tree has no features")
	}
	if len(dt.Nodes) == 0 {
		return malformed("decision_tree has no nodes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if !validLabel(node.ClassLabel) {
				return malformed("decision_tree leaf %d has label %d", i, node.ClassLabel)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.Width {
			return malformed("decision_tree node %d splits on feature %d of %d", i, node.FeatureIdx, dt.Width)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child < 0 || child >= len(dt.Nodes) || child == i {
				return malformed("decision_tree node %d has child %d of %d nodes", i, child, len(dt.Nodes))
			}
		}
	}
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, 0, ErrNotTrained
	}
	if err := checkInput(features, dt.Width); err != nil {
		return 0, 0, err
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, node.Confidence, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, 0, errors.New("invalid tree state")
		}
	}
	return 0, 0, errors.New("invalid tree state")
}

// buildNode appends the subtree for the given samples and returns the index
// of its root. Child indices are absolute positions in dt.Nodes.
func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) int {
	label, confidence := vote(labels)
	leaf := TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: label,
		Confidence: confidence,
		IsLeaf:     true,
	}

	idx := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, leaf)
	if depth >= dt.MaxDepth || len(labels) < dt.MinSamplesSplit || isPure(labels) {
		return idx
	}

	bestFeature, threshold, ok := dt.findBestSplit(features, labels)
	if !ok {
		return idx
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return idx
	}

	left := dt.buildNode(leftFeatures, leftLabels, depth+1)
	right := dt.buildNode(rightFeatures, rightLabels, depth+1)

	dt.Nodes[idx] = TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  left,
		RightChild: right,
		ClassLabel: label,
		Confidence: confidence,
		IsLeaf:     false,
	}
	return idx
}

func (dt *DecisionTree) candidateFeatures(featureCount int) []int {
	if dt.maxFeatures <= 0 || dt.maxFeatures >= featureCount || dt.rng == nil {
		all := make([]int, featureCount)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return dt.rng.Perm(featureCount)[:dt.maxFeatures]
}

func (dt *DecisionTree) findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := gini(labels)

	values := make([]float64, len(features))
	for _, featureIdx := range dt.candidateFeatures(len(features[0])) {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold, ok := candidateThreshold(values)
		if !ok {
			continue
		}
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// candidateThreshold picks the median, falling back to the midpoint of the
// range when the median sits on the maximum (common for sparse counts).
func candidateThreshold(values []float64) (float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(values) == 0 || lo == hi {
		return 0, false
	}
	threshold := median(values)
	if threshold >= hi {
		threshold = (lo + hi) / 2
	}
	return threshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
