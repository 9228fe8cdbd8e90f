// Package server exposes the extraction pipeline and the job ledger over HTTP,
// plus a gRPC health endpoint backed by the ledger store.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/export"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/pipeline"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultRequestTimeout = 60 * time.Second
	principalHeader       = "X-Principal-ID"
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Extractor runs one document through the pipeline.
type Extractor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type API struct {
	logger *slog.Logger
	router *chi.Mux

	extractor Extractor
	store     ledger.Store
	exporter  *export.Service

	maxUploadBytes int64
	requestTimeout time.Duration
}

func NewAPI(logger *slog.Logger, extractor Extractor, store ledger.Store, exporter *export.Service, opts Options) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if exporter == nil {
		exporter = export.NewService(store, logger)
	}

	a := &API{
		logger:         logger,
		router:         chi.NewRouter(),
		extractor:      extractor,
		store:          store,
		exporter:       exporter,
		maxUploadBytes: opts.MaxUploadBytes,
		requestTimeout: opts.RequestTimeout,
	}
	a.registerRoutes()
	return a
}

func (a *API) Router() http.Handler {
	return a.router
}

func (a *API) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(a.requestTimeout + 5*time.Second))
	a.router.Use(requestContext)

	a.router.Get("/healthz", a.health)

	a.router.Route("/v1", func(r chi.Router) {
		r.Post("/extract", a.extract)

		r.Group(func(r chi.Router) {
			r.Use(a.requirePrincipal)
			r.Get("/credits", a.credits)
			r.Get("/export.xlsx", a.exportXLSX)
			r.Get("/jobs", a.listJobs)
			r.Get("/jobs/{id}", a.getJob)
			r.Get("/jobs/{id}/result", a.getResult)
			r.Get("/jobs/{id}/audit", a.listAudit)
		})
	})
}

// requirePrincipal rejects ledger reads that carry no caller principal.
func (a *API) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principalOf(r) == "" {
			a.respondError(w, r, common.NewAppError(common.KindInvalidInput, principalHeader+" header is required", common.ErrInvalidInput))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type extractResponse struct {
	JobID   uuid.UUID `json:"jobId"`
	Mode    string    `json:"mode"`
	Tier    string    `json:"tier"`
	Model   string    `json:"model"`
	TextLen int       `json:"textLength"`
	Images  int       `json:"imageCount"`
	Result  any       `json:"result"`
}

func (a *API) extract(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.logger.Warn("http.extract.bad_multipart", "error", err)
		a.respondError(w, r, common.NewAppError(common.KindInvalidInput, "invalid multipart upload", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.respondError(w, r, common.NewAppError(common.KindInvalidInput, "file is required", err))
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		a.respondError(w, r, common.NewAppError(common.KindInvalidInput, "read upload", err))
		return
	}

	name := strings.TrimSpace(r.FormValue("fileName"))
	if name == "" {
		name = header.Filename
	}
	name = filepath.Base(name)

	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	out, err := a.extractor.Process(ctx, pipeline.Request{
		PrincipalID: principal,
		FileName:    name,
		Data:        buf.Bytes(),
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, extractResponse{
		JobID:   out.Job.ID,
		Mode:    string(out.Decision.Mode),
		Tier:    string(out.Decision.Tier),
		Model:   out.Model,
		TextLen: out.TextLen,
		Images:  out.ImageCount,
		Result:  out.Result,
	})
}

func (a *API) credits(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	bal, err := a.store.GetCredits(r.Context(), principal)
	if err != nil {
		a.respondError(w, r, common.NewAppError(common.KindStoreError, "read credits", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"principalId": principal, "balance": bal})
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilter(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	jobs, err := a.store.ListJobs(r.Context(), filter)
	if err != nil {
		a.respondError(w, r, common.NewAppError(common.KindStoreError, "list jobs", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	id, ok := a.jobID(w, r)
	if !ok {
		return
	}
	res, err := a.store.GetResult(r.Context(), id)
	if err == nil && res.PrincipalID != principalOf(r) {
		err = common.ErrNotFound
	}
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	id := job.ID
	entries, err := a.store.ListAudit(r.Context(), id)
	if err != nil {
		a.respondError(w, r, common.NewAppError(common.KindStoreError, "list audit", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobId": id, "entries": entries})
}

func (a *API) exportXLSX(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilter(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	data, err := a.exporter.ExportJobsXLSX(r.Context(), filter)
	if err != nil {
		a.respondError(w, r, common.NewAppError(common.KindStoreError, "export", err))
		return
	}
	filename := fmt.Sprintf("cv_jobs_%s.xlsx", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := a.store.Ping(r.Context()); err != nil {
		a.logger.Warn("http.health.store_unavailable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{"status": status, "timestamp": time.Now().Format(time.RFC3339)})
}

func (a *API) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	if verr := common.UUID("id", raw); verr != nil {
		a.respondError(w, r, common.NewAppError(common.KindInvalidInput, verr.Error(), common.ErrInvalidInput))
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}

// ownedJob loads the job named in the path. Jobs owned by another principal read as not found.
func (a *API) ownedJob(w http.ResponseWriter, r *http.Request) (*entity.Job, bool) {
	id, ok := a.jobID(w, r)
	if !ok {
		return nil, false
	}
	job, err := a.store.GetJob(r.Context(), id)
	if err == nil && job.PrincipalID != principalOf(r) {
		err = common.ErrNotFound
	}
	if err != nil {
		a.respondError(w, r, err)
		return nil, false
	}
	return job, true
}

// requestContext copies the request id and the caller principal into the context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if p := strings.TrimSpace(r.Header.Get(principalHeader)); p != "" {
			ctx = common.WithPrincipal(ctx, p)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalOf(r *http.Request) string {
	return common.PrincipalFromContext(r.Context())
}

func jobFilter(r *http.Request) (ledger.JobFilter, error) {
	q := r.URL.Query()
	f := ledger.JobFilter{
		PrincipalID: principalOf(r),
		Status:      constants.JobStatus(strings.TrimSpace(q.Get("status"))),
	}
	switch f.Status {
	case "", constants.JobStatusProcessing, constants.JobStatusCompleted, constants.JobStatusFailed:
	default:
		return f, common.Errorf(common.KindInvalidInput, "unknown status %q", f.Status)
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, common.Errorf(common.KindInvalidInput, "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
