package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/pipeline"
)

type fakeExtractor struct {
	out  *pipeline.Outcome
	err  error
	reqs []pipeline.Request
}

func (f *fakeExtractor) Process(_ context.Context, req pipeline.Request) (*pipeline.Outcome, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func newTestAPI(t *testing.T, ex Extractor) (*API, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	return NewAPI(nil, ex, store, nil, Options{MaxUploadBytes: 1 << 20, RequestTimeout: time.Second}), store
}

func uploadRequest(t *testing.T, principal, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestExtract_OK(t *testing.T) {
	result := entity.NewStructuredResult()
	result.Profile.Name = "Ada"
	jobID := uuid.New()
	ex := &fakeExtractor{out: &pipeline.Outcome{
		Job:      &entity.Job{ID: jobID},
		Decision: mode.Decision{Mode: mode.TextOnly, Tier: mode.TierLow},
		Model:    "text-model",
		Result:   *result,
		TextLen:  2000,
	}}
	api, _ := newTestAPI(t, ex)

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, uploadRequest(t, "p1", "dir/cv.pdf", []byte("%PDF-1.7")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, jobID.String(), body["jobId"])
	assert.Equal(t, "TEXT_ONLY", body["mode"])
	assert.Equal(t, "text-model", body["model"])

	res := body["result"].(map[string]any)
	for _, key := range []string{"profile", "workExperiences", "educations", "skills", "licenses",
		"languages", "achievements", "publications", "honors"} {
		assert.Contains(t, res, key)
	}

	require.Len(t, ex.reqs, 1)
	assert.Equal(t, "p1", ex.reqs[0].PrincipalID)
	assert.Equal(t, "cv.pdf", ex.reqs[0].FileName)
}

func TestExtract_ErrorEnvelope(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"credits", common.InsufficientCredits(50, 100), http.StatusPaymentRequired, "InsufficientCredits"},
		{"unprocessable", common.Errorf(common.KindUnprocessable, "no content"), http.StatusUnprocessableEntity, "Unprocessable"},
		{"empty", common.Errorf(common.KindExtractionEmpty, "empty"), http.StatusUnprocessableEntity, "ExtractionEmpty"},
		{"capability", common.Errorf(common.KindMissingCapability, "raster off"), http.StatusServiceUnavailable, "MissingCapability"},
		{"timeout", common.Errorf(common.KindTimeout, "slow"), http.StatusGatewayTimeout, "Timeout"},
		{"malformed", common.Errorf(common.KindInferenceMalformed, "bad json"), http.StatusBadGateway, "InferenceMalformed"},
		{"store", common.Errorf(common.KindStoreError, "db down"), http.StatusInternalServerError, "StoreError"},
		{"input", common.Errorf(common.KindInvalidInput, "not a pdf"), http.StatusBadRequest, "InvalidInput"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api, _ := newTestAPI(t, &fakeExtractor{err: tc.err})
			rec := httptest.NewRecorder()
			api.Router().ServeHTTP(rec, uploadRequest(t, "p1", "cv.pdf", []byte("%PDF-1.7")))

			assert.Equal(t, tc.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.kind, body["error"])
			assert.Equal(t, common.UserMessage(tc.err), body["message"])
			if tc.kind == "InsufficientCredits" {
				assert.EqualValues(t, 50, body["creditsRemaining"])
				assert.EqualValues(t, 100, body["creditsRequired"])
			} else {
				assert.NotContains(t, body, "creditsRemaining")
			}
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	ex := &fakeExtractor{}
	api, _ := newTestAPI(t, ex)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("fileName", "cv.pdf"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ex.reqs)
}

func getAs(api *API, principal, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if principal != "" {
		req.Header.Set(principalHeader, principal)
	}
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	return rec
}

func TestJobEndpoints(t *testing.T) {
	api, store := newTestAPI(t, &fakeExtractor{})
	ctx := context.Background()

	job := &entity.Job{ID: uuid.New(), PrincipalID: "p1", Status: constants.JobStatusProcessing, FileName: "cv.pdf", StartedAt: time.Now()}
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.AppendAudit(ctx, &entity.AuditEntry{ID: uuid.New(), JobID: job.ID,
		Action: constants.AuditActionUpload, Status: constants.AuditStatusSuccess, CreatedAt: time.Now()}))

	rec := getAs(api, "p1", "/v1/jobs/"+job.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "p1", body["principalId"])
	assert.Equal(t, "cv.pdf", body["fileName"])

	rec = getAs(api, "p1", "/v1/jobs/"+job.ID.String()+"/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["entries"], 1)

	rec = getAs(api, "p1", "/v1/jobs/"+job.ID.String()+"/result")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = getAs(api, "p1", "/v1/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode(t, rec)["error"])

	rec = getAs(api, "p1", "/v1/jobs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getAs(api, "p1", "/v1/jobs?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobEndpoints_ScopedToPrincipal(t *testing.T) {
	api, store := newTestAPI(t, &fakeExtractor{})
	ctx := context.Background()

	job := &entity.Job{ID: uuid.New(), PrincipalID: "alice", Status: constants.JobStatusProcessing, FileName: "cv.pdf", StartedAt: time.Now()}
	require.NoError(t, store.CreateJob(ctx, job))
	_, err := store.GrantCredits(ctx, "alice", 100)
	require.NoError(t, err)
	result := entity.NewStructuredResult()
	require.NoError(t, store.CommitSuccess(ctx, ledger.SuccessCommit{
		JobID: job.ID, PrincipalID: "alice", Cost: 100, Mode: "TEXT_ONLY", ModelName: "text-model",
		Result: *result, FinishedAt: time.Now(),
		Audit: entity.AuditEntry{ID: uuid.New(), JobID: job.ID, Action: constants.AuditActionExtract,
			Status: constants.AuditStatusSuccess, CreatedAt: time.Now()},
	}))

	base := "/v1/jobs/" + job.ID.String()
	for _, path := range []string{base, base + "/result", base + "/audit"} {
		rec := getAs(api, "alice", path)
		assert.Equal(t, http.StatusOK, rec.Code, path)

		rec = getAs(api, "mallory", path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "alice", path)
	}

	rec := getAs(api, "mallory", "/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["jobs"])

	rec = getAs(api, "alice", "/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["jobs"], 1)

	for _, path := range []string{"/v1/jobs", base, base + "/result", base + "/audit", "/v1/export.xlsx", "/v1/credits"} {
		rec := getAs(api, "", path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "InvalidInput", decode(t, rec)["error"], path)
	}
}

func TestCredits(t *testing.T) {
	api, store := newTestAPI(t, &fakeExtractor{})
	_, err := store.GrantCredits(context.Background(), "p1", 250)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set(principalHeader, "p1")
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 250, decode(t, rec)["balance"])

	rec = getAs(api, "", "/v1/credits")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportAndHealth(t *testing.T) {
	api, _ := newTestAPI(t, &fakeExtractor{})

	rec := getAs(api, "p1", "/v1/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}
