package classify

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ModelChoice identifies one of the five pre-trained classifiers offered in
// the model dropdown.
type ModelChoice int

const (
	LogisticRegression ModelChoice = iota
	DecisionTree
	SVM
	KNeighbors
	RandomForest
)

// AllModelChoices lists the choices in dropdown order.
var AllModelChoices = []ModelChoice{LogisticRegression, DecisionTree, SVM, KNeighbors, RandomForest}

var choiceInfo = map[ModelChoice]struct {
	name string
	slug string
	file string
}{
	LogisticRegression: {"Logistic Regression", "logistic-regression", "Logistic_model.json"},
	DecisionTree:       {"Decision Tree", "decision-tree", "Decision_tree_model.json"},
	SVM:                {"SVM", "svm", "Support Vector_model.json"},
	KNeighbors:         {"KNeighbors", "kneighbors", "KNeighbors_model.json"},
	RandomForest:       {"Random Forest", "random-forest", "Random Forest_model.json"},
}

// ParseModelChoice accepts a display name or slug, case-insensitively.
func ParseModelChoice(s string) (ModelChoice, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, choice := range AllModelChoices {
		info := choiceInfo[choice]
		if needle == strings.ToLower(info.name) || needle == info.slug {
			return choice, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown model %q", ErrInvalidSelection, s)
}

func (m ModelChoice) Valid() bool {
	_, ok := choiceInfo[m]
	return ok
}

func (m ModelChoice) String() string {
	if info, ok := choiceInfo[m]; ok {
		return info.name
	}
	return fmt.Sprintf("ModelChoice(%d)", int(m))
}

func (m ModelChoice) Slug() string {
	return choiceInfo[m].slug
}

// DefaultFile is the artifact file name the training CLI writes for m.
func (m ModelChoice) DefaultFile() string {
	return choiceInfo[m].file
}

func (m ModelChoice) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSelection, int(m))
	}
	return []byte(m.String()), nil
}

// DefaultPaths maps every choice to its default artifact inside dir.
func DefaultPaths(dir string) map[ModelChoice]string {
	paths := make(map[ModelChoice]string, len(AllModelChoices))
	for _, choice := range AllModelChoices {
		paths[choice] = filepath.Join(dir, choice.DefaultFile())
	}
	return paths
}
