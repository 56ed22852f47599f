package ml

type Evaluation struct {
	Accuracy  float64                     `json:"accuracy"`
	Precision float64                     `json:"precision"`
	Recall    float64                     `json:"recall"`
	F1        float64                     `json:"f1"`
	Support   int                         `json:"support"`
	Confusion [NumClasses][NumClasses]int `json:"confusion"`
}

// Evaluate scores a model on a held-out set. Precision, recall and F1 are
// macro averages over the classes present in the set or the predictions.
func Evaluate(model MLModel, testX [][]float64, testY []int) Evaluation {
	var eval Evaluation
	if len(testX) == 0 {
		return eval
	}

	correct := 0
	for i, feature := range testX {
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		eval.Support++
		if label == testY[i] {
			correct++
		}
		eval.Confusion[testY[i]][label]++
	}
	if eval.Support == 0 {
		return eval
	}
	eval.Accuracy = float64(correct) / float64(eval.Support)

	classes := 0
	for k := 0; k < NumClasses; k++ {
		truePositive := eval.Confusion[k][k]
		actual, predicted := 0, 0
		for j := 0; j < NumClasses; j++ {
			actual += eval.Confusion[k][j]
			predicted += eval.Confusion[j][k]
		}
		if actual == 0 && predicted == 0 {
			continue
		}
		classes++
		var precision, recall, f1 float64
		if predicted > 0 {
			precision = float64(truePositive) / float64(predicted)
		}
		if actual > 0 {
			recall = float64(truePositive) / float64(actual)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		eval.Precision += precision
		eval.Recall += recall
		eval.F1 += f1
	}
	if classes > 0 {
		eval.Precision /= float64(classes)
		eval.Recall /= float64(classes)
		eval.F1 /= float64(classes)
	}
	return eval
}
