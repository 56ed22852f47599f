package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parbi/classify"
	"parbi/db"
	"parbi/ml"
)

var tweets = []string{
	"1,Climate change is real and we need to act now",
	"1,We must fight climate change for our children",
	"1,Renewable energy will save the planet from climate change",
	"1,Act on climate change today",
	"-1,Global warming is a hoax invented by scientists",
	`-1,"Climate hoax again, it snowed today"`,
	"-1,Global warming scam to raise taxes",
	"-1,The warming hoax is a scam",
	"2,RT @news: Arctic sea ice hits record low https://t.co/x",
	"2,News: report finds sea levels rising faster",
	"2,Breaking news record heat report published",
	`2,"Report: record floods linked to warming, news says"`,
	"0,What a lovely sunny day for a walk",
	"0,Anyone watching the game tonight",
	"0,Lovely weather for a picnic",
	"0,Coffee first then the game",
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.csv")
	body := "sentiment,message\n" + strings.Join(tweets, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testOptions(t *testing.T) options {
	return options{
		data:        writeDataset(t),
		out:         t.TempDir(),
		maxFeatures: 50,
		maxDepth:    6,
		neighbors:   3,
		trees:       5,
		testRatio:   0.25,
		seed:        7,
		stopWords:   true,
	}
}

func TestTrainWritesLoadableArtifacts(t *testing.T) {
	opts := testOptions(t)

	reports, err := train(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reports, len(classify.AllModelChoices))

	vec, err := ml.LoadVectorizer(filepath.Join(opts.out, "count_vect.json"))
	require.NoError(t, err)

	dispatcher, err := classify.NewDispatcher(vec, classify.Options{Dir: opts.out})
	require.NoError(t, err)
	defer dispatcher.Close()

	for _, r := range reports {
		info, err := ml.ReadArtifactInfo(r.Path)
		require.NoError(t, err, r.Choice.String())
		assert.Equal(t, vec.NumFeatures(), info.NumFeatures)
		assert.GreaterOrEqual(t, r.Evaluation.Accuracy, 0.0)

		res, err := dispatcher.PredictChoice(context.Background(), r.Choice, "Global warming is a hoax")
		require.NoError(t, err, r.Choice.String())
		assert.Contains(t, classify.AllCategories, res.Category)
	}
}

func TestTrainAppendsHistory(t *testing.T) {
	opts := testOptions(t)
	opts.history = filepath.Join(t.TempDir(), "history.db")

	_, err := train(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)

	store, err := db.Open(opts.history)
	require.NoError(t, err)
	defer store.Close()
	logs, err := store.LoadTrainingLog(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs, len(classify.AllModelChoices))
}

func TestTrainMissingDataset(t *testing.T) {
	opts := testOptions(t)
	opts.data = filepath.Join(t.TempDir(), "missing.csv")

	_, err := train(context.Background(), opts, zap.NewNop())
	assert.Error(t, err)
}
