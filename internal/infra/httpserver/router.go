package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appamend "github.com/JadsonMattos/vigia-pix/internal/application/amendments"
	domai "github.com/JadsonMattos/vigia-pix/internal/domain/ai"
	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/geofence"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
	"github.com/JadsonMattos/vigia-pix/internal/middleware"
)

const (
	maxJSONBody       = 2 << 20
	defaultMaxUpload  = 20 << 20
	maxBatchIDs       = 500
	maxGeofencePhotos = 200
)

// Options configures NewRouter. Only Service is required.
type Options struct {
	Service        *appamend.Service
	Logger         *slog.Logger
	Checkers       map[string]middleware.HealthChecker
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	MaxUploadBytes int64
}

type Router struct {
	svc       *appamend.Service
	payloads  *payloadValidator
	logger    *slog.Logger
	maxUpload int64
}

func NewRouter(opts Options) (http.Handler, error) {
	payloads, err := newPayloadValidator()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{svc: opts.Service, payloads: payloads, logger: logger, maxUpload: opts.MaxUploadBytes}
	if r.maxUpload <= 0 {
		r.maxUpload = defaultMaxUpload
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.Limiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/ledger/verify", r.wrap(r.handleVerifyLedger))

		rt.Route("/amendments", func(ra chi.Router) {
			ra.Get("/", r.wrap(r.handleList))
			ra.Post("/", r.wrap(r.handleIngest))
			ra.Post("/analyze-batch", r.wrap(r.handleAnalyzeBatch))

			ra.Route("/{id}", func(ri chi.Router) {
				ri.Get("/", r.wrap(r.handleGet))
				ri.Post("/analyze", r.wrap(r.handleAnalyze))
				ri.Get("/trust-score", r.wrap(r.handleTrustScore))
				ri.Get("/audit", r.wrap(r.handleAudit))
				ri.Post("/milestones/{seq}/complete", r.wrap(r.handleCompleteMilestone))
				ri.Post("/photos", r.wrap(r.handleUploadPhoto))
				ri.Post("/geofence/validate", r.wrap(r.handleValidateGeofence))
				ri.Post("/geofence/validate-batch", r.wrap(r.handleValidateGeofenceBatch))
			})
		})
	})

	return mux, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= 500 {
				r.logger.Error("request failed", "path", req.URL.Path, "error", err)
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrIntegrityViolation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEnrichmentUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(req *http.Request, v any) error {
	body := http.MaxBytesReader(nil, req.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func amendmentID(req *http.Request) (domain.ID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAmendmentID(id); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return domain.ID(id), nil
}

// GET /v1/amendments?status=&uf=&year=&page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	if err := middleware.ValidateUF(q.Get("uf")); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	year, _ := strconv.Atoi(q.Get("year"))
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	list, err := r.svc.List(req.Context(), domain.ListFilter{
		Status:   domain.Status(strings.ToLower(q.Get("status"))),
		UF:       q.Get("uf"),
		Year:     year,
		Page:     middleware.ValidatePage(page),
		PageSize: middleware.ValidateLimit(size),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/amendments
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, req.Body, maxJSONBody))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := r.payloads.Validate(body); err != nil {
		return err
	}
	var in domain.Amendment
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	in.Objective = middleware.SanitizeString(in.Objective)
	in.Detail = middleware.SanitizeString(in.Detail)
	in.Author.Name = middleware.SanitizeString(in.Author.Name)
	in.Recipient.Name = middleware.SanitizeString(in.Recipient.Name)
	for i, d := range in.Documents {
		if d.URL == "" {
			continue
		}
		if err := middleware.ValidateURL(d.URL); err != nil {
			return fmt.Errorf("%w: documents[%d]: %v", domain.ErrInvalidInput, i, err)
		}
	}

	res, err := r.svc.Ingest(req.Context(), &in)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return writeJSON(w, status, res)
}

// GET /v1/amendments/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	a, err := r.svc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/amendments/{id}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	a, err := r.svc.Analyze(req.Context(), id)
	if err != nil {
		middleware.RecordAnalysis(false, 0, err)
		return err
	}
	middleware.RecordAnalysis(a.Analysis.PartialData, len(a.Alerts), nil)
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/amendments/analyze-batch
// Body: {"ids": [...]} or {"status": "...", "uf": "...", "year": 2024} to analyze every match.
func (r *Router) handleAnalyzeBatch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
		UF     string   `json:"uf"`
		Year   int      `json:"year"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if len(body.IDs) > maxBatchIDs {
		return fmt.Errorf("%w: at most %d ids per batch", domain.ErrInvalidInput, maxBatchIDs)
	}

	var report appamend.BatchReport
	if len(body.IDs) > 0 {
		ids := make([]domain.ID, 0, len(body.IDs))
		for _, id := range body.IDs {
			if err := middleware.ValidateAmendmentID(id); err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, id, err)
			}
			ids = append(ids, domain.ID(id))
		}
		report = r.svc.AnalyzeBatch(req.Context(), ids)
	} else {
		var err error
		report, err = r.svc.AnalyzeAll(req.Context(), domain.ListFilter{
			Status: domain.Status(strings.ToLower(body.Status)),
			UF:     body.UF,
			Year:   body.Year,
		})
		if err != nil {
			return err
		}
	}
	for _, it := range report.Results {
		switch it.Status {
		case appamend.BatchAnalyzed:
			middleware.RecordAnalysis(it.PartialData, it.Alerts, nil)
		case appamend.BatchFailed, appamend.BatchTimedOut:
			middleware.RecordAnalysis(false, 0, errors.New(it.Error))
		}
	}
	return writeJSON(w, http.StatusOK, report)
}

// GET /v1/amendments/{id}/trust-score
func (r *Router) handleTrustScore(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	score, err := r.svc.TrustScore(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, score)
}

// GET /v1/amendments/{id}/audit
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.svc.AuditTrail(req.Context(), id))
}

// GET /v1/ledger/verify
func (r *Router) handleVerifyLedger(w http.ResponseWriter, req *http.Request) error {
	report := r.svc.VerifyLedger(req.Context())
	status := http.StatusOK
	if !report.Valid {
		status = http.StatusConflict
	}
	return writeJSON(w, status, report)
}

// POST /v1/amendments/{id}/milestones/{seq}/complete
// Body (optional): {"completed_at": "2024-05-01T00:00:00Z"}
func (r *Router) handleCompleteMilestone(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	seq, err := strconv.Atoi(chi.URLParam(req, "seq"))
	if err != nil || seq <= 0 {
		return fmt.Errorf("%w: invalid milestone sequence", domain.ErrInvalidInput)
	}
	var body struct {
		CompletedAt *time.Time `json:"completed_at"`
	}
	if req.ContentLength != 0 {
		if err := decodeJSON(req, &body); err != nil {
			return err
		}
	}
	a, err := r.svc.CompleteMilestone(req.Context(), id, seq, body.CompletedAt)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/amendments/{id}/photos (multipart: photo, lat, lon, kind, description, tolerance_km)
func (r *Router) handleUploadPhoto(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+1<<20)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	file, header, err := req.FormFile("photo")
	if err != nil {
		return fmt.Errorf("%w: photo file is required", domain.ErrInvalidInput)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, r.maxUpload))
	if err != nil {
		return fmt.Errorf("%w: reading photo: %v", domain.ErrInvalidInput, err)
	}

	loc, err := formCoordinates(req.FormValue("lat"), req.FormValue("lon"))
	if err != nil {
		return err
	}
	tol, err := parseTolerance(req.FormValue("tolerance_km"))
	if err != nil {
		return err
	}

	res, err := r.svc.UploadPhoto(req.Context(), appamend.UploadPhotoCommand{
		AmendmentID: id,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Location:    loc,
		Kind:        middleware.SanitizeString(req.FormValue("kind")),
		Description: middleware.SanitizeString(req.FormValue("description")),
		ToleranceKM: tol,
	})
	if err != nil {
		return err
	}
	middleware.RecordPhoto(res.Verdict.Outcome == geofence.OutcomeOutside)
	return writeJSON(w, http.StatusCreated, res)
}

// POST /v1/amendments/{id}/geofence/validate
// Body: {"location": {"lat": -23.5, "lon": -46.6}, "tolerance_km": 10}
func (r *Router) handleValidateGeofence(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	var body struct {
		Location    *domain.Coordinates `json:"location"`
		ToleranceKM float64             `json:"tolerance_km"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if err := checkCoordinates(body.Location); err != nil {
		return err
	}
	if _, err := middleware.ValidateTolerance(body.ToleranceKM); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	v, err := r.svc.ValidateGeofence(req.Context(), id, geofence.Evidence{Provided: body.Location}, body.ToleranceKM)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, v)
}

// POST /v1/amendments/{id}/geofence/validate-batch
// Body: {"photos": [{"id": "p1", "location": {...}}], "tolerance_km": 10}
func (r *Router) handleValidateGeofenceBatch(w http.ResponseWriter, req *http.Request) error {
	id, err := amendmentID(req)
	if err != nil {
		return err
	}
	var body struct {
		Photos      []geofence.Evidence `json:"photos"`
		ToleranceKM float64             `json:"tolerance_km"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if len(body.Photos) > maxGeofencePhotos {
		return fmt.Errorf("%w: at most %d photos per batch", domain.ErrInvalidInput, maxGeofencePhotos)
	}
	for _, p := range body.Photos {
		if err := checkCoordinates(p.Provided); err != nil {
			return err
		}
	}
	if _, err := middleware.ValidateTolerance(body.ToleranceKM); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	res, err := r.svc.ValidateGeofenceBatch(req.Context(), id, body.Photos, body.ToleranceKM)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func checkCoordinates(c *domain.Coordinates) error {
	if c == nil {
		return nil
	}
	if err := middleware.ValidateCoordinates(c.Lat, c.Lon); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func formCoordinates(lat, lon string) (*domain.Coordinates, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: lat and lon must both be numbers", domain.ErrInvalidInput)
	}
	c := &domain.Coordinates{Lat: la, Lon: lo}
	return c, checkCoordinates(c)
}

func parseTolerance(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid tolerance_km", domain.ErrInvalidInput)
	}
	if _, err := middleware.ValidateTolerance(v); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return v, nil
}
