// Package resources loads the read-only state shared by every request: the
// fitted vectorizer, the labelled dataset and the image catalogue.
package resources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parbi/dataset"
	"parbi/ml"
)

type Config struct {
	Vectorizer string `yaml:"vectorizer"`
	Dataset    string `yaml:"dataset"`
	ImagesDir  string `yaml:"images_dir"`
}

// Context is built once at startup and never mutated afterwards.
type Context struct {
	Vectorizer *ml.CountVectorizer
	Dataset    *dataset.Dataset
	Summary    dataset.Summary
	Images     Catalogue
}

// Load reads the vectorizer and the dataset concurrently. A missing file
// fails startup; missing images only produce warnings.
func Load(ctx context.Context, cfg Config, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Context{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := ml.LoadVectorizer(cfg.Vectorizer)
		if err != nil {
			return fmt.Errorf("load vectorizer: %w", err)
		}
		res.Vectorizer = v
		logger.Info("vectorizer loaded",
			zap.String("path", cfg.Vectorizer),
			zap.Int("features", v.NumFeatures()))
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ds, err := dataset.Load(cfg.Dataset)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		summary, err := ds.Summarize()
		if err != nil {
			return fmt.Errorf("summarize dataset: %w", err)
		}
		res.Dataset = ds
		res.Summary = summary
		logger.Info("dataset loaded",
			zap.String("path", cfg.Dataset),
			zap.Int("records", ds.Len()))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Images = NewCatalogue(cfg.ImagesDir)
	for _, img := range res.Images.Missing() {
		logger.Warn("image asset missing", zap.String("image", img.Name), zap.String("path", img.Path))
	}
	return res, nil
}

// Image is one static asset referenced by the pages.
type Image struct {
	Name      string
	File      string
	Caption   string
	Path      string
	Available bool
}

// URL is the path the HTTP layer serves the image under.
func (i Image) URL() string {
	return "/static/imgs/" + i.File
}

type Catalogue struct {
	Dir    string
	images map[string]Image
	order  []string
}

var imageAssets = []struct{ name, file, caption string }{
	{"home", "home.jpg", "Climate Change"},
	{"most_used", "most_used.png", "Most used words"},
	{"pro", "pro1.png", "Pro"},
	{"news", "news1.png", "News"},
	{"neutral", "neutral1.png", "Neutral"},
	{"anti", "anti1.png", "Anti"},
	{"dist_sent", "dist_sent.png", "Unbalanced sentiment distribution"},
	{"balanced", "balanced.png", "Balanced sentiment distribution"},
	{"rumbie", "rumbie.jpg", "Rumbie: Team Lead"},
	{"isaac", "isaac.jpg", "Isaac: Technical Lead"},
	{"bongani", "bongani.jpeg", "Bongani: Project Manager"},
	{"qudus", "qudus.jpg", "Qudus: Senior Data Scientist"},
	{"peter", "peter.jpg", "Peter: Technical Support"},
	{"contactus", "contactus.jpeg", "Contact us"},
}

// NewCatalogue resolves the fixed image set against dir.
func NewCatalogue(dir string) Catalogue {
	c := Catalogue{Dir: dir, images: make(map[string]Image, len(imageAssets))}
	for _, asset := range imageAssets {
		path := filepath.Join(dir, asset.file)
		_, err := os.Stat(path)
		c.images[asset.name] = Image{
			Name:      asset.name,
			File:      asset.file,
			Caption:   asset.caption,
			Path:      path,
			Available: err == nil,
		}
		c.order = append(c.order, asset.name)
	}
	return c
}

// Get returns the named image; unknown names come back unavailable.
func (c Catalogue) Get(name string) Image {
	if img, ok := c.images[name]; ok {
		return img
	}
	return Image{Name: name, Caption: name}
}

func (c Catalogue) Missing() []Image {
	var missing []Image
	for _, name := range c.order {
		if img := c.images[name]; !img.Available {
			missing = append(missing, img)
		}
	}
	return missing
}
