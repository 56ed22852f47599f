package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"parbi/ml"
)

const sampleCSV = "sentiment,message,tweetid\n" +
	"1,Climate change is real,1001\n" +
	"-1,\"Global warming is a hoax, wake up\",1002\n" +
	"2,News: emissions hit record,1003\n" +
	"1,Climate change is real,1004\n" +
	"0,Nice weather today,1005\n"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	ds, err := Load(writeFile(t, "train.csv", sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 5, ds.Len())

	assert.Equal(t, Record{Sentiment: -1, Message: "Global warming is a hoax, wake up", TweetID: "1002"}, ds.Records[1])
	assert.Len(t, ds.Samples(), 5)
}

func TestLoadCSVColumnOrderAndBOM(t *testing.T) {
	ds, err := Load(writeFile(t, "train.csv", "\ufeffmessage,Sentiment\nhello there,0\n"))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "hello there", ds.Records[0].Message)
	assert.Empty(t, ds.Records[0].TweetID)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ml.ErrArtifactNotFound)

	_, err = Load(writeFile(t, "train.json", "{}"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.csv", "text,label\nx,1\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.csv", "sentiment,message\nabc,hello\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.csv", "sentiment,message\n7,hello\n"))
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"tweetid", "sentiment", "message"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"7", 2, "Breaking climate news"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"8", -1, "Not buying it"}))
	path := filepath.Join(t.TempDir(), "train.xlsx")
	require.NoError(t, f.SaveAs(path))

	ds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, Record{Sentiment: 2, Message: "Breaking climate news", TweetID: "7"}, ds.Records[0])
	assert.Equal(t, -1, ds.Records[1].Sentiment)

	_, err = Load(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPage(t *testing.T) {
	ds, err := Load(writeFile(t, "train.csv", sampleCSV))
	require.NoError(t, err)

	assert.Len(t, ds.Page(0, 2), 2)
	assert.Len(t, ds.Page(4, 10), 1)
	assert.Empty(t, ds.Page(10, 10))
	assert.Empty(t, ds.Page(0, 0))
	assert.Len(t, ds.Page(-3, 3), 3)
}

func TestSummarize(t *testing.T) {
	ds, err := Load(writeFile(t, "train.csv", sampleCSV))
	require.NoError(t, err)

	summary, err := ds.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Records)
	assert.Equal(t, 4, summary.UniqueMessages)
	assert.Equal(t, 1, summary.DuplicateRecords)
	require.Len(t, summary.Sentiments, 4)
	assert.Equal(t, SentimentCount{Sentiment: 1, Count: 2, Share: 0.4}, summary.Sentiments[0])
	assert.Equal(t, -1, summary.Sentiments[1].Sentiment)
	assert.Equal(t, float64(len("Global warming is a hoax, wake up")), summary.MaxLength)
	assert.Greater(t, summary.MeanLength, 0.0)
	assert.GreaterOrEqual(t, summary.P90Length, summary.MedianLength)

	empty := &Dataset{}
	summary, err = empty.Summarize()
	require.NoError(t, err)
	assert.Zero(t, summary.Records)
}
