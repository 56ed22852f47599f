package ml

import (
	"errors"
	"fmt"
)

// Sample is one labelled message as read from the training dataset.
type Sample struct {
	Sentiment int
	Message   string
}

type DataPreprocessor struct {
	Vectorizer *CountVectorizer
}

func NewDataPreprocessor(maxFeatures int, stopWords []string) *DataPreprocessor {
	return &DataPreprocessor{Vectorizer: NewCountVectorizer(maxFeatures, stopWords)}
}

// BuildTrainingSet fits the vectorizer on the messages and returns the
// feature matrix with class labels.
func (p *DataPreprocessor) BuildTrainingSet(samples []Sample) ([][]float64, []int, error) {
	if len(samples) == 0 {
		return nil, nil, errors.New("samples is empty")
	}
	if p.Vectorizer == nil {
		return nil, nil, errors.New("vectorizer not configured")
	}

	messages := make([]string, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		class, err := ClassFromSentiment(s.Sentiment)
		if err != nil {
			return nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
		messages[i] = s.Message
		labels[i] = class
	}

	if err := p.Vectorizer.Fit(messages); err != nil {
		return nil, nil, err
	}
	return p.Vectorizer.TransformAll(messages), labels, nil
}
