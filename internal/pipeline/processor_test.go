package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/raster"
)

var pdf = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF")

type fakeText struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeText) ExtractText(context.Context, extract.Document) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type fakeImages struct {
	images []extract.RasterImage
	pages  int
	err    error
	calls  atomic.Int32
}

func (f *fakeImages) ExtractImages(context.Context, extract.Document) ([]extract.RasterImage, int, error) {
	f.calls.Add(1)
	return f.images, f.pages, f.err
}

type fakeRaster struct {
	images []extract.RasterImage
	err    error
	calls  atomic.Int32
}

func (f *fakeRaster) Rasterize(context.Context, extract.Document, int) ([]extract.RasterImage, error) {
	f.calls.Add(1)
	return f.images, f.err
}

type fakeInfer struct {
	result    *entity.StructuredResult
	err       error
	decisions []mode.Decision
	images    []int
}

func (f *fakeInfer) Invoke(_ context.Context, d mode.Decision, _ string, images []extract.RasterImage) (*entity.StructuredResult, error) {
	f.decisions = append(f.decisions, d)
	f.images = append(f.images, len(images))
	return f.result, f.err
}

func (f *fakeInfer) ModelFor(t mode.Tier) string {
	if t == mode.TierHigh {
		return "vision-model"
	}
	return "text-model"
}

func pageImages(n int) []extract.RasterImage {
	out := make([]extract.RasterImage, n)
	for i := range out {
		out[i] = extract.RasterImage{Data: []byte{0xFF, 0xD8, 0x01}, MIMEType: "image/jpeg", PageIndex: i}
	}
	return out
}

func profileResult() *entity.StructuredResult {
	r := entity.NewStructuredResult()
	r.Profile.Name = " Ada "
	r.Skills = []entity.Skill{{Name: "Go"}}
	return r
}

type harness struct {
	store  *ledger.MemoryStore
	text   *fakeText
	images *fakeImages
	raster *fakeRaster
	infer  *fakeInfer
	proc   *Processor
}

func newHarness(t *testing.T, balance int64) *harness {
	t.Helper()
	h := &harness{
		store:  ledger.NewMemoryStore(),
		text:   &fakeText{},
		images: &fakeImages{pages: 1},
		raster: &fakeRaster{},
		infer:  &fakeInfer{result: profileResult()},
	}
	_, err := h.store.GrantCredits(context.Background(), "p1", balance)
	require.NoError(t, err)
	h.proc = NewProcessor(nil, Config{}, h.text, h.images, h.raster, h.infer, ledger.New(h.store, 100, nil))
	return h
}

func (h *harness) onlyJob(t *testing.T) *entity.Job {
	t.Helper()
	jobs, err := h.store.ListJobs(context.Background(), ledger.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func (h *harness) balance() int64 {
	b, _ := h.store.GetCredits(context.Background(), "p1")
	return b
}

func request() Request {
	return Request{PrincipalID: "p1", FileName: "cv.pdf", Data: pdf}
}

func TestProcess_ShortTextNoImagesNoRaster(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("a", 30)
	h.proc.Raster = raster.New(nil, nil, nil, raster.Config{}, nil)

	out, err := h.proc.Process(context.Background(), request())
	assert.Nil(t, out)
	assert.True(t, common.IsKind(err, common.KindMissingCapability), "%v", err)

	job := h.onlyJob(t)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.Equal(t, "MissingCapability", job.ErrorKind)
	assert.Equal(t, int64(500), h.balance())
	assert.Empty(t, h.infer.decisions)
}

func TestProcess_AbundantTextIsTextOnly(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("experience ", 200)

	out, err := h.proc.Process(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, mode.TextOnly, out.Decision.Mode)
	assert.Equal(t, mode.TierLow, out.Decision.Tier)
	assert.Equal(t, "text-model", out.Model)
	assert.Equal(t, "Ada", out.Result.Profile.Name)

	assert.Equal(t, constants.JobStatusCompleted, h.onlyJob(t).Status)
	assert.Equal(t, int64(400), h.balance())
	assert.Zero(t, h.raster.calls.Load())

	res, err := h.store.GetResult(context.Background(), out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Result.Profile.Name)
}

func TestProcess_AbundantTextWithEmbeddedImagesIsHybrid(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("experience ", 200)
	h.images.images = pageImages(2)

	out, err := h.proc.Process(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, mode.Decision{Mode: mode.Hybrid, Tier: mode.TierLow}, out.Decision)
	assert.Equal(t, []int{2}, h.infer.images)
	assert.Zero(t, h.raster.calls.Load())
}

func TestProcess_ImageOnlyEmptyResult(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = "0123456789"
	h.images.images = pageImages(2)
	h.infer.result = entity.NewStructuredResult()

	_, err := h.proc.Process(context.Background(), request())
	assert.True(t, common.IsKind(err, common.KindExtractionEmpty), "%v", err)

	require.Len(t, h.infer.decisions, 1)
	assert.Equal(t, mode.Decision{Mode: mode.ImageOnly, Tier: mode.TierHigh}, h.infer.decisions[0])
	assert.Equal(t, constants.JobStatusFailed, h.onlyJob(t).Status)
	assert.Equal(t, int64(500), h.balance())
}

func TestProcess_InsufficientCreditsSkipsExtraction(t *testing.T) {
	h := newHarness(t, 50)

	_, err := h.proc.Process(context.Background(), request())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindInsufficientCredits, appErr.Kind)
	assert.Equal(t, int64(50), appErr.CreditsRemaining)
	assert.Equal(t, int64(100), appErr.CreditsRequired)

	assert.Zero(t, h.text.calls.Load())
	assert.Zero(t, h.images.calls.Load())
	jobs, _ := h.store.ListJobs(context.Background(), ledger.JobFilter{})
	assert.Empty(t, jobs)
}

func TestProcess_RasterFallbackIsHybrid(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("b", 60)
	h.raster.images = pageImages(5)

	out, err := h.proc.Process(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, mode.Hybrid, out.Decision.Mode)
	assert.Equal(t, mode.TierLow, out.Decision.Tier)
	assert.Equal(t, int32(1), h.raster.calls.Load())
	assert.Equal(t, []int{3}, h.infer.images)
	assert.Equal(t, 3, out.ImageCount)
}

func TestProcess_TextTimeoutSurfacesWhenNothingElse(t *testing.T) {
	h := newHarness(t, 500)
	h.text.err = common.Errorf(common.KindTimeout, "pdftotext timed out")
	h.raster.err = errors.New("convert failed")

	_, err := h.proc.Process(context.Background(), request())
	assert.True(t, common.IsKind(err, common.KindTimeout), "%v", err)
	assert.Equal(t, "Timeout", h.onlyJob(t).ErrorKind)
}

func TestProcess_TextTimeoutDegradesToImages(t *testing.T) {
	h := newHarness(t, 500)
	h.text.err = common.Errorf(common.KindTimeout, "pdftotext timed out")
	h.images.images = pageImages(1)

	out, err := h.proc.Process(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, mode.ImageOnly, out.Decision.Mode)
}

func TestProcess_UnprocessableWithoutActionableCause(t *testing.T) {
	h := newHarness(t, 500)
	h.raster.err = errors.New("upstream 500")

	_, err := h.proc.Process(context.Background(), request())
	assert.True(t, common.IsKind(err, common.KindUnprocessable), "%v", err)
}

func TestProcess_InferenceErrorFailsJobWithoutDebit(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("c", 150)
	h.infer.err = common.Errorf(common.KindInferenceMalformed, "bad json")

	_, err := h.proc.Process(context.Background(), request())
	assert.True(t, common.IsKind(err, common.KindInferenceMalformed))
	assert.Equal(t, constants.JobStatusFailed, h.onlyJob(t).Status)
	assert.Equal(t, int64(500), h.balance())
}

func TestProcess_EmptyResultKeptWithAbundantText(t *testing.T) {
	h := newHarness(t, 500)
	h.text.text = strings.Repeat("d", 150)
	h.infer.result = entity.NewStructuredResult()

	out, err := h.proc.Process(context.Background(), request())
	require.NoError(t, err)
	assert.NotNil(t, out.Result.WorkExperiences)
	assert.Equal(t, int64(400), h.balance())
}

func TestProcess_RejectsNonPDF(t *testing.T) {
	h := newHarness(t, 500)
	_, err := h.proc.Process(context.Background(), Request{PrincipalID: "p1", FileName: "cv.pdf", Data: []byte("hello")})
	assert.True(t, common.IsKind(err, common.KindInvalidInput))
	jobs, _ := h.store.ListJobs(context.Background(), ledger.JobFilter{})
	assert.Empty(t, jobs)
}

func TestProbe_NoLedgerNoInference(t *testing.T) {
	h := newHarness(t, 0)
	h.text.text = "short"
	h.images.images = pageImages(2)

	res, err := h.proc.Probe(context.Background(), "cv.pdf", pdf)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, 5, res.TextLen)
	assert.Equal(t, []int{0, 1}, res.ImagePages)
	assert.Equal(t, mode.ImageOnly, res.Decision.Mode)

	assert.Empty(t, h.infer.decisions)
	jobs, _ := h.store.ListJobs(context.Background(), ledger.JobFilter{})
	assert.Empty(t, jobs)
}

func TestProbe_ReportsMissingCapability(t *testing.T) {
	h := newHarness(t, 0)
	h.proc.Raster = raster.New(nil, nil, nil, raster.Config{}, nil)

	res, err := h.proc.Probe(context.Background(), "cv.pdf", pdf)
	require.NoError(t, err)
	assert.True(t, common.IsKind(res.Err, common.KindMissingCapability), "%v", res.Err)

	_, err = h.proc.Probe(context.Background(), "cv.pdf", []byte("hello"))
	assert.True(t, common.IsKind(err, common.KindInvalidInput))
}
