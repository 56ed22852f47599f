package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// ClassFromSentiment maps the dataset's sentiment encoding (-1 anti, 0
// neutral, 1 pro, 2 news) onto the class ids emitted by every classifier.
func ClassFromSentiment(sentiment int) (int, error) {
	switch sentiment {
	case -1:
		return 3, nil
	case 0, 1, 2:
		return sentiment, nil
	default:
		return 0, fmt.Errorf("unknown sentiment value %d", sentiment)
	}
}

func SentimentFromClass(class int) (int, error) {
	switch class {
	case 3:
		return -1, nil
	case 0, 1, 2:
		return class, nil
	default:
		return 0, fmt.Errorf("unknown class id %d", class)
	}
}

func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}
