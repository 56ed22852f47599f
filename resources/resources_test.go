package resources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parbi/dataset"
	"parbi/ml"
)

const trainCSV = `sentiment,message,tweetid
1,Climate change is real and we must act,1
-1,Global warming is a hoax,2
2,RT @news: Arctic ice hits record low,3
0,What a sunny day,4
`

func writeFixtures(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	v := ml.NewCountVectorizer(0, nil)
	require.NoError(t, v.Fit([]string{"climate change is real", "global warming hoax"}))
	vecPath := filepath.Join(dir, "count_vect.json")
	require.NoError(t, ml.SaveVectorizer(vecPath, v))

	dataPath := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(trainCSV), 0o644))

	imgs := filepath.Join(dir, "imgs")
	require.NoError(t, os.MkdirAll(imgs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imgs, "home.jpg"), []byte("jpg"), 0o644))

	return Config{Vectorizer: vecPath, Dataset: dataPath, ImagesDir: imgs}
}

func TestLoad(t *testing.T) {
	cfg := writeFixtures(t)

	res, err := Load(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Vectorizer.NumFeatures())
	assert.Equal(t, 4, res.Dataset.Len())
	assert.Equal(t, 4, res.Summary.Records)

	home := res.Images.Get("home")
	assert.True(t, home.Available)
	assert.Equal(t, "/static/imgs/home.jpg", home.URL())
	assert.False(t, res.Images.Get("balanced").Available)
	assert.Len(t, res.Images.Missing(), len(imageAssets)-1)
}

func TestLoadMissingVectorizer(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Vectorizer = filepath.Join(t.TempDir(), "nope.json")

	_, err := Load(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ml.ErrArtifactNotFound)
}

func TestLoadMissingDataset(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Dataset = filepath.Join(t.TempDir(), "nope.csv")

	_, err := Load(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	assert.ErrorIs(t, err, ml.ErrArtifactNotFound)
}

func TestCatalogueUnknownImage(t *testing.T) {
	img := NewCatalogue(t.TempDir()).Get("logo")
	assert.False(t, img.Available)
	assert.Equal(t, "logo", img.Caption)
}
