// Package dataset loads the labelled tweet corpus shown on the Explore page
// and used to train the classifiers.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"parbi/ml"
)

// ErrNotFound is returned when the dataset file does not exist. It matches
// ml.ErrArtifactNotFound so a missing dataset is reported like any other
// missing resource file.
var ErrNotFound = fmt.Errorf("dataset %w", ml.ErrArtifactNotFound)

// Record is one labelled tweet.
type Record struct {
	Sentiment int    `json:"sentiment"`
	Message   string `json:"message"`
	TweetID   string `json:"tweetid,omitempty"`
}

// Dataset is an immutable, in-memory copy of the corpus.
type Dataset struct {
	Path    string
	Records []Record
}

// Load reads a .csv or .xlsx file. The header row must contain "sentiment"
// and "message" columns; "tweetid" is optional.
func Load(path string) (*Dataset, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	records, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return &Dataset{Path: path, Records: records}, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func parseRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}
	sentimentCol, messageCol, idCol := -1, -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "sentiment":
			sentimentCol = i
		case "message":
			messageCol = i
		case "tweetid":
			idCol = i
		}
	}
	if sentimentCol < 0 || messageCol < 0 {
		return nil, errors.New(`header must contain "sentiment" and "message"`)
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) <= sentimentCol || len(row) <= messageCol {
			return nil, fmt.Errorf("row %d: expected at least %d columns", n+2, max(sentimentCol, messageCol)+1)
		}
		sentiment, err := strconv.Atoi(strings.TrimSpace(row[sentimentCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid sentiment %q", n+2, row[sentimentCol])
		}
		if _, err := ml.ClassFromSentiment(sentiment); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		record := Record{Sentiment: sentiment, Message: row[messageCol]}
		if idCol >= 0 && idCol < len(row) {
			record.TweetID = strings.TrimSpace(row[idCol])
		}
		records = append(records, record)
	}
	return records, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Page returns up to limit records starting at offset. Out-of-range offsets
// yield an empty slice.
func (d *Dataset) Page(offset, limit int) []Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(d.Records) || limit <= 0 {
		return []Record{}
	}
	end := offset + limit
	if end > len(d.Records) {
		end = len(d.Records)
	}
	return d.Records[offset:end]
}

// Samples converts the records into training samples.
func (d *Dataset) Samples() []ml.Sample {
	samples := make([]ml.Sample, len(d.Records))
	for i, r := range d.Records {
		samples[i] = ml.Sample{Sentiment: r.Sentiment, Message: r.Message}
	}
	return samples
}
