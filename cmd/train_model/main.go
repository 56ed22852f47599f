// Command train_model fits the vectorizer and the five classifiers on the
// labelled tweet dataset and writes the artifacts the server loads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parbi/classify"
	"parbi/dataset"
	"parbi/db"
	"parbi/logging"
	"parbi/ml"
)

type options struct {
	data        string
	out         string
	maxFeatures int
	maxDepth    int
	neighbors   int
	trees       int
	testRatio   float64
	seed        int64
	history     string
	stopWords   bool
}

type report struct {
	Choice     classify.ModelChoice
	Path       string
	Evaluation ml.Evaluation
}

func main() {
	var opts options
	flag.StringVar(&opts.data, "data", "resources/train.csv", "labelled dataset (.csv or .xlsx)")
	flag.StringVar(&opts.out, "out", "resources", "directory for the vectorizer and model artifacts")
	flag.IntVar(&opts.maxFeatures, "max_features", 5000, "vocabulary size cap, 0 for unlimited")
	flag.IntVar(&opts.maxDepth, "max_depth", 12, "max depth of the decision tree and forest trees")
	flag.IntVar(&opts.neighbors, "k", 5, "neighbours used by KNeighbors")
	flag.IntVar(&opts.trees, "trees", 25, "trees in the random forest")
	flag.Float64Var(&opts.testRatio, "test_ratio", 0.2, "share of records held out for evaluation")
	flag.Int64Var(&opts.seed, "seed", 42, "random seed for splitting and training")
	flag.StringVar(&opts.history, "history", "", "sqlite database to append training results to")
	flag.BoolVar(&opts.stopWords, "stop_words", true, "drop common English stop words")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	logger, flush, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reports, err := train(ctx, opts, logger)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		flush()
		os.Exit(1)
	}
	for _, r := range reports {
		fmt.Printf("%-20s accuracy=%.3f precision=%.3f recall=%.3f f1=%.3f -> %s\n",
			r.Choice, r.Evaluation.Accuracy, r.Evaluation.Precision, r.Evaluation.Recall, r.Evaluation.F1, r.Path)
	}
}

func newModel(choice classify.ModelChoice, opts options) ml.MLModel {
	switch choice {
	case classify.LogisticRegression:
		return ml.NewLogisticRegression()
	case classify.DecisionTree:
		return ml.NewDecisionTree(opts.maxDepth)
	case classify.SVM:
		return ml.NewLinearSVM(opts.seed)
	case classify.KNeighbors:
		return ml.NewKNeighbors(opts.neighbors)
	case classify.RandomForest:
		return ml.NewRandomForest(opts.trees, opts.maxDepth, opts.seed)
	}
	panic(fmt.Sprintf("no model for %s", choice))
}

func train(ctx context.Context, opts options, logger *zap.Logger) ([]report, error) {
	ds, err := dataset.Load(opts.data)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", zap.String("path", opts.data), zap.Int("records", ds.Len()))

	var stop []string
	if opts.stopWords {
		stop = ml.DefaultStopWords
	}
	prep := ml.NewDataPreprocessor(opts.maxFeatures, stop)
	features, labels, err := prep.BuildTrainingSet(ds.Samples())
	if err != nil {
		return nil, fmt.Errorf("build training set: %w", err)
	}
	logger.Info("vectorizer fitted", zap.Int("features", prep.Vectorizer.NumFeatures()))

	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, opts.testRatio, opts.seed)
	if len(testX) == 0 {
		logger.Warn("test split is empty, evaluating on the training set")
		testX, testY = trainX, trainY
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return nil, err
	}
	vecPath := filepath.Join(opts.out, "count_vect.json")
	if err := ml.SaveVectorizer(vecPath, prep.Vectorizer); err != nil {
		return nil, fmt.Errorf("save vectorizer: %w", err)
	}

	paths := classify.DefaultPaths(opts.out)
	reports := make([]report, len(classify.AllModelChoices))

	g, ctx := errgroup.WithContext(ctx)
	for i, choice := range classify.AllModelChoices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			model := newModel(choice, opts)
			if err := model.Train(trainX, trainY); err != nil {
				return fmt.Errorf("train %s: %w", choice, err)
			}
			eval := ml.Evaluate(model, testX, testY)
			info := ml.ArtifactInfo{Accuracy: eval.Accuracy, F1: eval.F1}
			if err := ml.SaveModel(paths[choice], model, info); err != nil {
				return fmt.Errorf("save %s: %w", choice, err)
			}
			logger.Info("model trained",
				zap.Stringer("model", choice),
				zap.Float64("accuracy", eval.Accuracy),
				zap.Float64("f1", eval.F1),
				zap.Duration("elapsed", time.Since(start)))

			reports[i] = report{Choice: choice, Path: paths[choice], Evaluation: eval}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.history != "" {
		if err := appendTrainingLog(context.Background(), opts.history, reports, len(trainX)); err != nil {
			return nil, fmt.Errorf("write training log: %w", err)
		}
	}
	return reports, nil
}

func appendTrainingLog(ctx context.Context, path string, reports []report, dataPoints int) (err error) {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); err == nil {
			err = cerr
		}
	}()

	now := time.Now().UTC()
	entries := make([]db.TrainingLog, 0, len(reports))
	for _, r := range reports {
		entries = append(entries, db.TrainingLog{
			ModelName:  r.Choice.String(),
			Artifact:   r.Path,
			Accuracy:   r.Evaluation.Accuracy,
			Precision:  r.Evaluation.Precision,
			Recall:     r.Evaluation.Recall,
			F1:         r.Evaluation.F1,
			TrainedAt:  now,
			DataPoints: dataPoints,
		})
	}
	return store.SaveTrainingLog(ctx, entries)
}
