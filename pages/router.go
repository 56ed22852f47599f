package pages

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"parbi/classify"
	"parbi/dataset"
	"parbi/db"
	"parbi/resources"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	Title     = "PARBI CLASSIFIER"
	Subheader = "Climate change tweet classification"

	// DefaultText is the placeholder shown in the prediction text area.
	DefaultText  = "Type Here"
	DefaultModel = "Logistic Regression"

	defaultRows    = 100
	maxRows        = 1000
	historyEntries = 10
)

var visualizations = []string{"Barplots of common words", "Word cloud of sentiments"}

// Predictor is the part of the dispatcher the prediction page needs.
type Predictor interface {
	Predict(ctx context.Context, model, text string) (classify.Result, error)
	Models() []classify.ModelInfo
}

// History persists predictions. A nil History disables the feature.
type History interface {
	SavePrediction(ctx context.Context, p db.Prediction) error
	RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error)
}

type ViewCounter interface {
	PageViewed(page string)
}

// Request carries what a page needs from the incoming HTTP request.
type Request struct {
	Ctx       context.Context
	Page      Page
	Query     url.Values
	Form      url.Values
	Submitted bool
	RequestID string
}

func (r Request) context() context.Context {
	if r.Ctx == nil {
		return context.Background()
	}
	return r.Ctx
}

type Router struct {
	res       *resources.Context
	predictor Predictor
	history   History
	views     ViewCounter
	logger    *zap.Logger
	templates map[Page]*template.Template
}

type Options struct {
	History History
	Views   ViewCounter
	Logger  *zap.Logger
}

func NewRouter(res *resources.Context, predictor Predictor, opts Options) (*Router, error) {
	if res == nil || predictor == nil {
		return nil, fmt.Errorf("pages: resources and predictor are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Router{
		res:       res,
		predictor: predictor,
		history:   opts.History,
		views:     opts.Views,
		logger:    opts.Logger,
		templates: templates,
	}, nil
}

var templateFiles = map[Page]string{
	Home:               "home.html",
	Explore:            "explore.html",
	FeatureEngineering: "feature_engineering.html",
	Prediction:         "prediction.html",
	AboutUs:            "about_us.html",
	ContactUs:          "contact_us.html",
}

func parseTemplates() (map[Page]*template.Template, error) {
	funcs := template.FuncMap{
		"percent": func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" },
		"fixed":   func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	}
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	templates := make(map[Page]*template.Template, len(templateFiles))
	for page, file := range templateFiles {
		t, err := template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[page] = t
	}
	return templates, nil
}

type navItem struct {
	Label  string
	URL    string
	Active bool
}

type view struct {
	Title     string
	Subheader string
	Page      Page
	Nav       []navItem
	Data      any
}

// Render writes the full HTML document for req.Page.
func (rt *Router) Render(w io.Writer, req Request) error {
	var (
		data any
		err  error
	)
	switch req.Page {
	case Home:
		data = rt.home()
	case Explore:
		data = rt.explore(req)
	case FeatureEngineering:
		data = rt.featureEngineering(req)
	case Prediction:
		data = rt.prediction(req)
	case AboutUs:
		data = rt.aboutUs()
	case ContactUs:
		data = rt.contactUs(req)
	default:
		return fmt.Errorf("%w: page %d", ErrInvalidSelection, int(req.Page))
	}

	if rt.views != nil {
		rt.views.PageViewed(req.Page.Slug())
	}
	v := view{
		Title:     Title,
		Subheader: Subheader,
		Page:      req.Page,
		Nav:       navigation(req.Page),
		Data:      data,
	}
	if err = rt.templates[req.Page].ExecuteTemplate(w, "layout.html", v); err != nil {
		return fmt.Errorf("render %s: %w", req.Page, err)
	}
	return nil
}

func navigation(active Page) []navItem {
	nav := make([]navItem, len(AllPages))
	for i, p := range AllPages {
		nav[i] = navItem{Label: p.String(), URL: p.URL(), Active: p == active}
	}
	return nav
}

type homeView struct {
	Image resources.Image
}

func (rt *Router) home() homeView {
	return homeView{Image: rt.res.Images.Get("home")}
}

type exploreView struct {
	ShowRaw            bool
	Rows               []dataset.Record
	Offset             int
	Limit              int
	PrevOffset         int
	NextOffset         int
	HasPrev            bool
	HasNext            bool
	Total              int
	Visualizations     []string
	Visualization      string
	ShowVisualizations bool
	WordCloud          bool
	Barplot            resources.Image
	Clouds             []resources.Image
	Summary            dataset.Summary
	SentimentLabels    map[int]string
}

func (rt *Router) explore(req Request) exploreView {
	v := exploreView{
		ShowRaw:            isChecked(req.Query, "raw"),
		ShowVisualizations: isChecked(req.Query, "viz"),
		Visualizations:     visualizations,
		Visualization:      visualizations[0],
		Summary:            rt.res.Summary,
		SentimentLabels:    sentimentLabels(),
	}
	if choice := req.Query.Get("visualization"); choice == visualizations[1] {
		v.Visualization = choice
		v.WordCloud = true
	}
	if v.ShowVisualizations {
		if v.WordCloud {
			for _, name := range []string{"pro", "news", "neutral", "anti"} {
				v.Clouds = append(v.Clouds, rt.res.Images.Get(name))
			}
		} else {
			v.Barplot = rt.res.Images.Get("most_used")
		}
	}

	if v.ShowRaw && rt.res.Dataset != nil {
		v.Offset = queryInt(req.Query, "offset", 0, 0, rt.res.Dataset.Len())
		v.Limit = queryInt(req.Query, "limit", defaultRows, 1, maxRows)
		v.Rows = rt.res.Dataset.Page(v.Offset, v.Limit)
		v.Total = rt.res.Dataset.Len()
		v.HasPrev = v.Offset > 0
		v.PrevOffset = max(v.Offset-v.Limit, 0)
		v.NextOffset = v.Offset + v.Limit
		v.HasNext = v.NextOffset < v.Total
	}
	return v
}

// sentimentLabels names the raw dataset sentiment values.
func sentimentLabels() map[int]string {
	labels := map[int]string{-1: classify.Anti.String()}
	for _, c := range []classify.Category{classify.Neutral, classify.Pro, classify.News} {
		labels[int(c)] = c.String()
	}
	return labels
}

type featureView struct {
	ShowUnbalanced bool
	ShowBalanced   bool
	Unbalanced     resources.Image
	Balanced       resources.Image
}

func (rt *Router) featureEngineering(req Request) featureView {
	return featureView{
		ShowUnbalanced: isChecked(req.Query, "unbalanced"),
		ShowBalanced:   isChecked(req.Query, "balanced"),
		Unbalanced:     rt.res.Images.Get("dist_sent"),
		Balanced:       rt.res.Images.Get("balanced"),
	}
}

type predictionView struct {
	Models     []classify.ModelInfo
	Selected   string
	Text       string
	Submitted  bool
	Result     *classify.Result
	Error      string
	History    []db.Prediction
	HistoryOn  bool
	Confidence string
}

func (rt *Router) prediction(req Request) predictionView {
	v := predictionView{
		Models:    rt.predictor.Models(),
		Selected:  DefaultModel,
		Text:      DefaultText,
		Submitted: req.Submitted,
		HistoryOn: rt.history != nil,
	}
	ctx := req.context()

	if req.Submitted {
		if model := req.Form.Get("model"); model != "" {
			v.Selected = model
		}
		if _, ok := req.Form["text"]; ok {
			v.Text = req.Form.Get("text")
		}
		res, err := rt.predictor.Predict(ctx, v.Selected, v.Text)
		if err != nil {
			v.Error = classify.UserMessage(err)
		} else {
			v.Result = &res
			v.Confidence = strconv.FormatFloat(res.Confidence*100, 'f', 1, 64) + "%"
			rt.record(ctx, req.RequestID, v.Text, res)
		}
	}

	if rt.history != nil {
		recent, err := rt.history.RecentPredictions(ctx, historyEntries)
		if err != nil {
			rt.logger.Warn("load prediction history", zap.Error(err))
		}
		v.History = recent
	}
	return v
}

func (rt *Router) record(ctx context.Context, requestID, text string, res classify.Result) {
	if rt.history == nil {
		return
	}
	err := rt.history.SavePrediction(ctx, db.Prediction{
		RequestID:  requestID,
		Model:      res.Model.String(),
		Message:    text,
		Category:   res.Category.String(),
		ClassID:    res.ClassID,
		Confidence: res.Confidence,
		Cached:     res.Cached,
	})
	if err != nil {
		rt.logger.Warn("save prediction", zap.Error(err))
	}
}

type teamView struct {
	Lead    resources.Image
	Members []resources.Image
}

func (rt *Router) aboutUs() teamView {
	members := make([]resources.Image, 0, 4)
	for _, name := range []string{"isaac", "bongani", "qudus", "peter"} {
		members = append(members, rt.res.Images.Get(name))
	}
	return teamView{Lead: rt.res.Images.Get("rumbie"), Members: members}
}

type contactView struct {
	Image   resources.Image
	Email   string
	Message string
	Sent    bool
}

// contactUs only acknowledges the form; nothing is stored or sent.
func (rt *Router) contactUs(req Request) contactView {
	v := contactView{Image: rt.res.Images.Get("contactus")}
	if req.Submitted {
		v.Sent = true
		v.Email = strings.TrimSpace(req.Form.Get("email"))
		v.Message = req.Form.Get("message")
	}
	return v
}

func isChecked(q url.Values, key string) bool {
	switch strings.ToLower(q.Get(key)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

func queryInt(q url.Values, key string, def, lo, hi int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if hi > lo && n > hi {
		return hi
	}
	return n
}
