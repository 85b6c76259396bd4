package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"collage-api/internal/assets"
	"collage-api/internal/manifest"
)

// multipartOverhead is the body allowance on top of MaxUpload for multipart
// boundaries and headers.
const multipartOverhead = 1 << 20

type Options struct {
	Catalog *manifest.Catalog
	Assets  *assets.Store
	// MaxUpload caps the request body of the upload endpoint.
	MaxUpload int64
	// Debug exposes error details in 5xx responses.
	Debug  bool
	Logger *slog.Logger
}

type Handler struct {
	catalog   *manifest.Catalog
	assets    *assets.Store
	maxUpload int64
	debug     bool
	log       *slog.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		catalog:   opts.Catalog,
		assets:    opts.Assets,
		maxUpload: opts.MaxUpload,
		debug:     opts.Debug,
		log:       logger,
	}
}

// Router builds the API routes. Path cleaning is disabled so that traversal
// attempts reach the download handler and are rejected instead of redirected.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)

	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/templates", h.templates).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/validate", h.validateAll).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/download/{type}/{path:.+}", h.download).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)
	api.HandleFunc("/upload/{type}", h.upload).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/{type}/validate", h.validate).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{type}", h.data).Methods(http.MethodGet, http.MethodOptions)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Use(h.logRequests, allowOrigin)
	api.Use(mux.CORSMethodMiddleware(api), preflight)
	return r
}

type endpointInfo struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, endpointInfo{
		Message: "HM Photo Collage API is running",
		Endpoints: map[string]string{
			"templates": "GET /api/templates",
			"data":      "GET /api/{type}",
			"validate":  "GET /api/{type}/validate",
			"report":    "GET /api/validate",
			"download":  "GET /api/download/{type}/{path}",
			"upload":    "POST /api/upload/{type}",
		},
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) resourceType(w http.ResponseWriter, r *http.Request) (manifest.ResourceType, bool) {
	t, err := manifest.ParseResourceType(mux.Vars(r)["type"])
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	return t, true
}

func (h *Handler) templates(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalog.Summaries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resourceType(w, r)
	if !ok {
		return
	}
	doc, err := h.catalog.Data(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resourceType(w, r)
	if !ok {
		return
	}
	report, err := h.catalog.Validate(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type aggregateReport struct {
	Valid   bool              `json:"valid"`
	Reports []manifest.Report `json:"reports"`
}

func (h *Handler) validateAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.catalog.ValidateAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agg := aggregateReport{Valid: true, Reports: reports}
	for _, rep := range reports {
		agg.Valid = agg.Valid && rep.Valid
	}
	h.writeJSON(w, http.StatusOK, agg)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resourceType(w, r)
	if !ok {
		return
	}
	p, err := h.assets.Resolve(t, mux.Vars(r)["path"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sum, err := assets.FileChecksum(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(ChecksumHeader, sum)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(p)}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resourceType(w, r)
	if !ok {
		return
	}
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, assets.ErrTooLarge)
			return
		}
		h.writeError(w, http.StatusBadRequest, "missing multipart field \"file\"", err)
		return
	}
	defer file.Close()

	up, err := h.assets.Save(r.Context(), t, header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, up)
}
