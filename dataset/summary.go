package dataset

import (
	"sort"
	"unicode/utf8"

	"github.com/montanaflynn/stats"
)

// SentimentCount is the number of records carrying one sentiment value.
type SentimentCount struct {
	Sentiment int     `json:"sentiment"`
	Count     int     `json:"count"`
	Share     float64 `json:"share"`
}

// Summary holds descriptive statistics for the Explore page.
type Summary struct {
	Records          int              `json:"records"`
	Sentiments       []SentimentCount `json:"sentiments"`
	MeanLength       float64          `json:"mean_length"`
	MedianLength     float64          `json:"median_length"`
	P90Length        float64          `json:"p90_length"`
	MaxLength        float64          `json:"max_length"`
	UniqueMessages   int              `json:"unique_messages"`
	DuplicateRecords int              `json:"duplicate_records"`
}

// Summarize computes class balance and message length statistics. Lengths
// are counted in runes.
func (d *Dataset) Summarize() (Summary, error) {
	summary := Summary{Records: len(d.Records), Sentiments: []SentimentCount{}}
	if len(d.Records) == 0 {
		return summary, nil
	}

	counts := make(map[int]int)
	seen := make(map[string]struct{}, len(d.Records))
	lengths := make(stats.Float64Data, len(d.Records))
	for i, r := range d.Records {
		counts[r.Sentiment]++
		lengths[i] = float64(utf8.RuneCountInString(r.Message))
		if _, ok := seen[r.Message]; ok {
			summary.DuplicateRecords++
			continue
		}
		seen[r.Message] = struct{}{}
	}
	summary.UniqueMessages = len(seen)

	for sentiment, count := range counts {
		summary.Sentiments = append(summary.Sentiments, SentimentCount{
			Sentiment: sentiment,
			Count:     count,
			Share:     float64(count) / float64(len(d.Records)),
		})
	}
	sort.Slice(summary.Sentiments, func(i, j int) bool {
		if summary.Sentiments[i].Count != summary.Sentiments[j].Count {
			return summary.Sentiments[i].Count > summary.Sentiments[j].Count
		}
		return summary.Sentiments[i].Sentiment < summary.Sentiments[j].Sentiment
	})

	var err error
	if summary.MeanLength, err = lengths.Mean(); err != nil {
		return summary, err
	}
	if summary.MedianLength, err = lengths.Median(); err != nil {
		return summary, err
	}
	if summary.P90Length, err = lengths.Percentile(90); err != nil {
		return summary, err
	}
	if summary.MaxLength, err = lengths.Max(); err != nil {
		return summary, err
	}
	return summary, nil
}
