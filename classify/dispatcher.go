// Package classify turns a model choice and a piece of text into a
// sentiment category using the shared vectorizer and a serialized
// classifier.
package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"parbi/ml"
)

// Vectorizer converts raw text into a fixed-width feature row.
type Vectorizer interface {
	Transform(text string) []float64
	NumFeatures() int
}

// Classifier maps a feature row to a class id and a confidence.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
	NumFeatures() int
}

// Loader reads a classifier artifact from path.
type Loader func(path string) (Classifier, error)

// FileLoader loads artifacts written by the training CLI.
func FileLoader(path string) (Classifier, error) {
	return ml.LoadModel(path)
}

// Metrics receives prediction and cache events.
type Metrics interface {
	PredictionDone(model, category string, elapsed time.Duration)
	PredictionFailed(model, kind string)
	CacheEvent(event string)
}

type noopMetrics struct{}

func (noopMetrics) PredictionDone(string, string, time.Duration) {}
func (noopMetrics) PredictionFailed(string, string)              {}
func (noopMetrics) CacheEvent(string)                            {}

// CacheOptions controls the model cache. A disabled cache loads the
// artifact on every prediction.
type CacheOptions struct {
	Enabled bool
	Size    int
	Watch   bool
}

// Options configures a Dispatcher. Zero values fall back to defaults.
type Options struct {
	// Paths maps each choice to its artifact; DefaultPaths fills it when nil.
	Paths   map[ModelChoice]string
	Dir     string
	Cache   CacheOptions
	Loader  Loader
	Metrics Metrics
	Logger  *zap.Logger
}

// Result is a successful prediction.
type Result struct {
	Model      ModelChoice   `json:"model"`
	Category   Category      `json:"category"`
	ClassID    int           `json:"class_id"`
	Confidence float64       `json:"confidence"`
	Message    string        `json:"message"`
	Cached     bool          `json:"cached"`
	Elapsed    time.Duration `json:"-"`
}

// ModelInfo describes one entry of the model dropdown.
type ModelInfo struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
}

// Dispatcher routes predictions to the selected classifier. It is safe for
// concurrent use.
type Dispatcher struct {
	vectorizer Vectorizer
	paths      map[ModelChoice]string
	source     modelSource
	metrics    Metrics
	logger     *zap.Logger
}

// NewDispatcher builds a dispatcher around the shared vectorizer. Missing
// model paths are filled from DefaultPaths(opts.Dir).
func NewDispatcher(vectorizer Vectorizer, opts Options) (*Dispatcher, error) {
	if vectorizer == nil {
		return nil, errors.New("classify: vectorizer is required")
	}
	if opts.Paths == nil {
		opts.Paths = DefaultPaths(opts.Dir)
	}
	for _, choice := range AllModelChoices {
		if _, ok := opts.Paths[choice]; !ok {
			opts.Paths[choice] = DefaultPaths(opts.Dir)[choice]
		}
	}
	if opts.Loader == nil {
		opts.Loader = FileLoader
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	d := &Dispatcher{
		vectorizer: vectorizer,
		paths:      opts.Paths,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if opts.Cache.Enabled {
		cache, err := newModelCache(opts.Paths, opts.Loader, opts.Cache, opts.Metrics, opts.Logger)
		if err != nil {
			return nil, err
		}
		d.source = cache
	} else {
		d.source = &directSource{paths: opts.Paths, loader: opts.Loader}
	}
	return d, nil
}

// Predict parses the model name and classifies text with it.
func (d *Dispatcher) Predict(ctx context.Context, model, text string) (Result, error) {
	choice, err := ParseModelChoice(model)
	if err != nil {
		d.metrics.PredictionFailed("invalid", KindInvalidSelection)
		return Result{}, &Error{Op: "select", Model: model, Err: err}
	}
	return d.PredictChoice(ctx, choice, text)
}

// PredictChoice classifies text with the given model. Every failure is
// returned as *Error; nothing here panics on user input.
func (d *Dispatcher) PredictChoice(ctx context.Context, choice ModelChoice, text string) (Result, error) {
	start := time.Now()
	res, err := d.predict(ctx, choice, text)
	if err != nil {
		kind := KindOf(err)
		d.metrics.PredictionFailed(choice.String(), kind)
		d.logger.Warn("prediction failed",
			zap.String("model", choice.String()),
			zap.String("kind", kind),
			zap.Error(err))
		return Result{}, err
	}
	res.Elapsed = time.Since(start)
	d.metrics.PredictionDone(choice.String(), res.Category.String(), res.Elapsed)
	d.logger.Debug("prediction",
		zap.String("model", choice.String()),
		zap.String("category", res.Category.String()),
		zap.Bool("cached", res.Cached),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (d *Dispatcher) predict(ctx context.Context, choice ModelChoice, text string) (Result, error) {
	if !choice.Valid() {
		return Result{}, &Error{Op: "select", Model: choice.String(), Err: fmt.Errorf("%w: %s", ErrInvalidSelection, choice)}
	}
	name := choice.String()

	model, cached, err := d.source.Get(ctx, choice)
	if err != nil {
		return Result{}, &Error{Op: "load", Model: name, Err: err}
	}

	if got, want := d.vectorizer.NumFeatures(), model.NumFeatures(); got != want {
		return Result{}, &Error{Op: "transform", Model: name,
			Err: fmt.Errorf("%w: vectorizer yields %d features, model expects %d", ErrFeatureMismatch, got, want)}
	}
	features := d.vectorizer.Transform(text)

	id, confidence, err := model.Predict(features)
	if err != nil {
		return Result{}, &Error{Op: "predict", Model: name, Err: err}
	}

	category, err := CategoryFromClass(id)
	if err != nil {
		return Result{}, &Error{Op: "label", Model: name, Err: err}
	}

	return Result{
		Model:      choice,
		Category:   category,
		ClassID:    id,
		Confidence: confidence,
		Message:    category.Message(),
		Cached:     cached,
	}, nil
}

// Models reports every configured model and whether its artifact exists.
func (d *Dispatcher) Models() []ModelInfo {
	models := make([]ModelInfo, 0, len(AllModelChoices))
	for _, choice := range AllModelChoices {
		path := d.paths[choice]
		_, err := os.Stat(path)
		models = append(models, ModelInfo{
			Name:      choice.String(),
			Slug:      choice.Slug(),
			Path:      path,
			Available: err == nil,
		})
	}
	return models
}

// Path returns the artifact path configured for choice.
func (d *Dispatcher) Path(choice ModelChoice) string {
	return d.paths[choice]
}

// Close stops the artifact watcher, if any.
func (d *Dispatcher) Close() error {
	return d.source.Close()
}
