package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parbi/classify"
	"parbi/monitoring"
	"parbi/pages"
	"parbi/resources"
)

type handlers struct {
	pages     *pages.Router
	predictor pages.Predictor
	res       *resources.Context
	history   pages.History
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[*websocket.Conn]struct{}
}

func newHandlers(deps Deps, config ServerConfig) *handlers {
	h := &handlers{
		pages:     deps.Pages,
		predictor: deps.Predictor,
		res:       deps.Resources,
		history:   deps.History,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		sessions:  make(map[*websocket.Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(config.AllowedOrigins),
	}
	return h
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /page/{page}", h.handlePage)
	mux.HandleFunc("POST /page/prediction", h.handlePredictionForm)
	mux.HandleFunc("POST /page/contact-us", h.handleContactForm)

	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/models", h.handleModels)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/dataset", h.handleDataset)
	mux.HandleFunc("GET /api/dataset/summary", h.handleDatasetSummary)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/ws/predict", h.handleLivePredict)

	mux.Handle("GET /static/imgs/", http.StripPrefix("/static/imgs/", noListing(http.FileServer(http.Dir(h.res.Images.Dir)))))
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, pages.Home.URL(), http.StatusFound)
}

func (h *handlers) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := pages.ParsePage(r.PathValue("page"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, pages.Request{Page: page, Query: r.URL.Query()})
}

func (h *handlers) handlePredictionForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", formStatus(err))
		return
	}
	h.render(w, r, pages.Request{Page: pages.Prediction, Query: r.URL.Query(), Form: r.PostForm, Submitted: true})
}

func (h *handlers) handleContactForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", formStatus(err))
		return
	}
	h.render(w, r, pages.Request{Page: pages.ContactUs, Query: r.URL.Query(), Form: r.PostForm, Submitted: true})
}

// render buffers the page so a template error never leaves a half-written
// document behind.
func (h *handlers) render(w http.ResponseWriter, r *http.Request, req pages.Request) {
	req.Ctx = r.Context()
	req.RequestID = GetRequestID(r.Context())

	var buf bytes.Buffer
	if err := h.pages.Render(&buf, req); err != nil {
		if errors.Is(err, pages.ErrInvalidSelection) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("render page", zap.String("page", req.Page.Slug()), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func formStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// noListing hides directory indexes of the image folder.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's default same-origin check
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// statusForKind maps a classify error kind to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case classify.KindInvalidSelection:
		return http.StatusBadRequest
	case classify.KindArtifactNotFound:
		return http.StatusNotFound
	case classify.KindFeatureMismatch, classify.KindUnknownClass, classify.KindMalformedArtifact:
		return http.StatusUnprocessableEntity
	case classify.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
