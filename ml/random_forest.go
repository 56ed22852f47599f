package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// RandomForest is a bagged ensemble of decision trees, each grown on a
// bootstrap sample with a random feature subset considered at every split.
type RandomForest struct {
	NumTrees    int             `json:"num_trees"`
	MaxDepth    int             `json:"max_depth"`
	MaxFeatures int             `json:"max_features"`
	Seed        int64           `json:"seed"`
	Width       int             `json:"num_features"`
	Trees       []*DecisionTree `json:"trees"`
}

func NewRandomForest(numTrees, maxDepth int, seed int64) *RandomForest {
	return &RandomForest{NumTrees: numTrees, MaxDepth: maxDepth, Seed: seed}
}

func (m *RandomForest) Kind() string { return KindRandomForest }

func (m *RandomForest) NumFeatures() int { return m.Width }

func (m *RandomForest) Train(features [][]float64, labels []int) error {
	width, err := checkTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if m.NumTrees <= 0 {
		m.NumTrees = 25
	}
	if m.MaxDepth <= 0 {
		m.MaxDepth = 10
	}
	if m.MaxFeatures <= 0 {
		m.MaxFeatures = int(math.Max(1, math.Sqrt(float64(width))))
	}

	m.Width = width
	m.Trees = make([]*DecisionTree, m.NumTrees)

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(4)
	for t := 0; t < m.NumTrees; t++ {
		seed := m.Seed + int64(t)
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(seed))
			sampleX := make([][]float64, len(features))
			sampleY := make([]int, len(labels))
			for i := range sampleX {
				j := rnd.Intn(len(features))
				sampleX[i] = features[j]
				sampleY[i] = labels[j]
			}
			tree := NewDecisionTree(m.MaxDepth)
			tree.maxFeatures = m.MaxFeatures
			tree.rng = rnd
			if err := tree.Train(sampleX, sampleY); err != nil {
				return err
			}
			m.Trees[t] = tree
			return nil
		})
	}
	return g.Wait()
}

func (m *RandomForest) validate() error {
	if m.Width <= 0 {
		return malformed("random_forest has no features")
	}
	if len(m.Trees) == 0 {
		return malformed("random_forest has no trees")
	}
	for i, tree := range m.Trees {
		if tree == nil {
			return malformed("random_forest tree %d is empty", i)
		}
		if tree.Width != m.Width {
			return malformed("random_forest tree %d has %d features, forest %d", i, tree.Width, m.Width)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (m *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(m.Trees) == 0 {
		return 0, 0, ErrNotTrained
	}
	if err := checkInput(features, m.Width); err != nil {
		return 0, 0, err
	}
	votes := make([]int, 0, len(m.Trees))
	for _, tree := range m.Trees {
		if tree == nil {
			return 0, 0, errors.New("invalid forest state")
		}
		label, _, err := tree.Predict(features)
		if err != nil {
			return 0, 0, err
		}
		votes = append(votes, label)
	}
	label, share := vote(votes)
	return label, share, nil
}
