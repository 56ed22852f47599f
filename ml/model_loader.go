package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	KindCountVectorizer    = "count_vectorizer"
	KindLogisticRegression = "logistic_regression"
	KindDecisionTree       = "decision_tree"
	KindLinearSVM          = "linear_svm"
	KindKNeighbors         = "k_neighbors"
	KindRandomForest       = "random_forest"
)

var modelFactories = map[string]func() MLModel{
	KindLogisticRegression: func() MLModel { return &LogisticRegression{} },
	KindDecisionTree:       func() MLModel { return &DecisionTree{} },
	KindLinearSVM:          func() MLModel { return &LinearSVM{} },
	KindKNeighbors:         func() MLModel { return &KNeighbors{} },
	KindRandomForest:       func() MLModel { return &RandomForest{} },
}

// ArtifactInfo is the metadata stored next to every serialized model.
type ArtifactInfo struct {
	Kind        string    `json:"kind"`
	NumFeatures int       `json:"num_features"`
	TrainedAt   time.Time `json:"trained_at"`
	Accuracy    float64   `json:"accuracy,omitempty"`
	F1          float64   `json:"f1,omitempty"`
}

type artifact struct {
	ArtifactInfo
	Model json.RawMessage `json:"model"`
}

func SaveModel(path string, model MLModel, info ArtifactInfo) error {
	if model.NumFeatures() == 0 {
		return ErrNotTrained
	}
	info.Kind = model.Kind()
	info.NumFeatures = model.NumFeatures()
	if info.TrainedAt.IsZero() {
		info.TrainedAt = time.Now().UTC()
	}
	return writeArtifact(path, info, model)
}

func LoadModel(path string) (MLModel, error) {
	art, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	factory, ok := modelFactories[art.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model kind %q in %s", ErrMalformedArtifact, art.Kind, path)
	}
	model := factory()
	if err := json.Unmarshal(art.Model, model); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	if v, ok := model.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if model.NumFeatures() != art.NumFeatures {
		return nil, fmt.Errorf("%w: %s declares %d features, model has %d",
			ErrMalformedArtifact, path, art.NumFeatures, model.NumFeatures())
	}
	return model, nil
}

// ReadArtifactInfo returns the metadata of an artifact without keeping the
// model payload around.
func ReadArtifactInfo(path string) (ArtifactInfo, error) {
	art, err := readArtifact(path)
	if err != nil {
		return ArtifactInfo{}, err
	}
	return art.ArtifactInfo, nil
}

func SaveVectorizer(path string, v *CountVectorizer) error {
	if v.NumFeatures() == 0 {
		return ErrNotTrained
	}
	info := ArtifactInfo{
		Kind:        KindCountVectorizer,
		NumFeatures: v.NumFeatures(),
		TrainedAt:   time.Now().UTC(),
	}
	return writeArtifact(path, info, v)
}

func LoadVectorizer(path string) (*CountVectorizer, error) {
	art, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	if art.Kind != KindCountVectorizer {
		return nil, fmt.Errorf("%w: %s holds %q, not a vectorizer", ErrMalformedArtifact, path, art.Kind)
	}
	v := &CountVectorizer{}
	if err := json.Unmarshal(art.Model, v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	if v.NumFeatures() == 0 {
		return nil, fmt.Errorf("%w: %s has an empty vocabulary", ErrMalformedArtifact, path)
	}
	v.buildStopSet()
	return v, nil
}

func writeArtifact(path string, info ArtifactInfo, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(artifact{ArtifactInfo: info, Model: body})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readArtifact(path string) (*artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, err
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	if art.Kind == "" || len(art.Model) == 0 {
		return nil, fmt.Errorf("%w: %s is missing kind or model", ErrMalformedArtifact, path)
	}
	return &art, nil
}
