package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

// countingStore records calls and can inject failures per method.
type countingStore struct {
	*MemoryStore
	calls       map[string]int
	failCreate  error
	failAudit   error
	failSuccess error
	failFailure error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore(), calls: map[string]int{}}
}

func (s *countingStore) GetCredits(ctx context.Context, p string) (int64, error) {
	s.calls["GetCredits"]++
	return s.MemoryStore.GetCredits(ctx, p)
}

func (s *countingStore) CreateJob(ctx context.Context, j *entity.Job) error {
	s.calls["CreateJob"]++
	if s.failCreate != nil {
		return s.failCreate
	}
	return s.MemoryStore.CreateJob(ctx, j)
}

func (s *countingStore) AppendAudit(ctx context.Context, e *entity.AuditEntry) error {
	s.calls["AppendAudit"]++
	if s.failAudit != nil {
		return s.failAudit
	}
	return s.MemoryStore.AppendAudit(ctx, e)
}

func (s *countingStore) CommitSuccess(ctx context.Context, c SuccessCommit) error {
	s.calls["CommitSuccess"]++
	if s.failSuccess != nil {
		return s.failSuccess
	}
	return s.MemoryStore.CommitSuccess(ctx, c)
}

func (s *countingStore) CommitFailure(ctx context.Context, c FailureCommit) error {
	s.calls["CommitFailure"]++
	if s.failFailure != nil {
		return s.failFailure
	}
	return s.MemoryStore.CommitFailure(ctx, c)
}

func sampleResult() entity.StructuredResult {
	r := entity.NewStructuredResult()
	r.Profile.Name = "Ada"
	return *r
}

func TestBegin_InsufficientCreditsDoesNoOtherIO(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 50)
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	assert.Nil(t, job)
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindInsufficientCredits, appErr.Kind)
	assert.Equal(t, int64(50), appErr.CreditsRemaining)
	assert.Equal(t, int64(100), appErr.CreditsRequired)

	assert.Equal(t, map[string]int{"GetCredits": 1}, store.calls)
}

func TestBeginComplete_DebitsOnce(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 250)
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, job.Status)

	require.NoError(t, l.Complete(ctx, job, "TEXT_ONLY", "gpt-4o-mini", sampleResult()))
	assert.Equal(t, constants.JobStatusCompleted, job.Status)

	bal, _ := store.GetCredits(ctx, "p1")
	assert.Equal(t, int64(150), bal)

	audit, _ := store.ListAudit(ctx, job.ID)
	require.Len(t, audit, 2)
	assert.Equal(t, constants.AuditActionUpload, audit[0].Action)
	assert.Equal(t, constants.AuditActionExtract, audit[1].Action)
	assert.Equal(t, constants.AuditStatusSuccess, audit[1].Status)

	res, err := store.GetResult(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Result.Profile.Name)

	// terminal jobs stay terminal
	err = l.Complete(ctx, job, "TEXT_ONLY", "gpt-4o-mini", sampleResult())
	assert.True(t, common.IsKind(err, common.KindStoreError))
	assert.ErrorIs(t, err, common.ErrJobNotProcessing)
	bal, _ = store.GetCredits(ctx, "p1")
	assert.Equal(t, int64(150), bal)
}

func TestComplete_BalanceDrainedMidJob(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 100)
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	require.NoError(t, err)
	_, _ = store.GrantCredits(ctx, "p1", -60)

	err = l.Complete(ctx, job, "HYBRID", "gpt-4o", sampleResult())
	assert.True(t, common.IsKind(err, common.KindInsufficientCredits))

	got, _ := store.GetJob(ctx, job.ID)
	assert.Equal(t, constants.JobStatusProcessing, got.Status)
	_, err = store.GetResult(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFail_RecordsKindAndNeverDebits(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 100)
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	require.NoError(t, err)

	l.Fail(ctx, job, common.Errorf(common.KindMissingCapability, "raster disabled"))

	got, _ := store.GetJob(ctx, job.ID)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, string(common.KindMissingCapability), got.ErrorKind)
	assert.NotNil(t, got.FinishedAt)

	bal, _ := store.GetCredits(ctx, "p1")
	assert.Equal(t, int64(100), bal)

	audit, _ := store.ListAudit(ctx, job.ID)
	require.Len(t, audit, 2)
	assert.Equal(t, constants.AuditStatusFailed, audit[1].Status)

	// failed is terminal
	err = l.Complete(ctx, job, "TEXT_ONLY", "m", sampleResult())
	assert.ErrorIs(t, err, common.ErrJobNotProcessing)
}

func TestFail_StoreErrorIsSwallowed(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 100)
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	require.NoError(t, err)

	store.failFailure = errors.New("disk full")
	assert.NotPanics(t, func() { l.Fail(ctx, job, errors.New("boom")) })
	assert.Equal(t, constants.JobStatusProcessing, job.Status)
}

func TestBegin_AuditFailureFailsJob(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 100)
	store.failAudit = errors.New("audit down")
	l := New(store, 100, nil)

	job, err := l.Begin(ctx, "p1", "cv.pdf", 10)
	assert.Nil(t, job)
	assert.True(t, common.IsKind(err, common.KindStoreError))

	jobs, _ := store.ListJobs(ctx, JobFilter{})
	require.Len(t, jobs, 1)
	assert.Equal(t, constants.JobStatusFailed, jobs[0].Status)
}

func TestBegin_StoreErrors(t *testing.T) {
	store := newCountingStore()
	ctx := context.Background()
	_, _ = store.GrantCredits(ctx, "p1", 100)
	store.failCreate = errors.New("conn refused")

	_, err := New(store, 100, nil).Begin(ctx, "p1", "cv.pdf", 10)
	assert.True(t, common.IsKind(err, common.KindStoreError))
}

func TestZeroCostAlwaysPasses(t *testing.T) {
	store := newCountingStore()
	l := New(store, 0, nil)
	job, err := l.Begin(context.Background(), "nobody", "cv.pdf", 1)
	require.NoError(t, err)
	require.NoError(t, l.Complete(context.Background(), job, "TEXT_ONLY", "m", sampleResult()))
}
