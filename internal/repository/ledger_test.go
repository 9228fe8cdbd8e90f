package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ctx := context.Background()
	drv, err := Open(ctx, Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}, nil)
	require.NoError(t, err)
	l := NewLedger(drv, nil)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, l.Migrate(ctx))
	return l
}

func newJob(principal string) *entity.Job {
	return &entity.Job{
		ID:          uuid.New(),
		PrincipalID: principal,
		Status:      constants.JobStatusProcessing,
		FileName:    "cv.pdf",
		FileSize:    1234,
		StartedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func audit(jobID uuid.UUID, action constants.AuditAction, status constants.AuditStatus) entity.AuditEntry {
	return entity.AuditEntry{ID: uuid.New(), JobID: jobID, Action: action, Status: status, CreatedAt: time.Now().UTC()}
}

func TestLedger_Credits(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	bal, err := l.GetCredits(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)

	bal, err = l.GrantCredits(ctx, "p1", 150)
	require.NoError(t, err)
	assert.Equal(t, int64(150), bal)

	bal, err = l.GrantCredits(ctx, "p1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)
}

func TestLedger_JobLifecycleSuccess(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.GrantCredits(ctx, "p1", 100)
	require.NoError(t, err)

	job := newJob("p1")
	require.NoError(t, l.CreateJob(ctx, job))
	up := audit(job.ID, constants.AuditActionUpload, constants.AuditStatusSuccess)
	require.NoError(t, l.AppendAudit(ctx, &up))

	result := entity.NewStructuredResult()
	result.Profile.Name = "Ada"
	err = l.CommitSuccess(ctx, ledger.SuccessCommit{
		JobID:       job.ID,
		PrincipalID: "p1",
		Mode:        "TEXT_ONLY",
		ModelName:   "gpt-4o-mini",
		Result:      *result,
		Cost:        100,
		Audit:       audit(job.ID, constants.AuditActionExtract, constants.AuditStatusSuccess),
		FinishedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	got, err := l.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, "TEXT_ONLY", got.Mode)
	assert.NotNil(t, got.FinishedAt)

	res, err := l.GetResult(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Result.Profile.Name)
	assert.NotNil(t, res.Result.Skills)

	bal, _ := l.GetCredits(ctx, "p1")
	assert.Zero(t, bal)

	entries, err := l.ListAudit(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, constants.AuditActionUpload, entries[0].Action)
	assert.Equal(t, constants.AuditActionExtract, entries[1].Action)
}

func TestLedger_CommitSuccessRollsBackOnInsufficientCredits(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.GrantCredits(ctx, "p1", 40)
	require.NoError(t, err)

	job := newJob("p1")
	require.NoError(t, l.CreateJob(ctx, job))

	err = l.CommitSuccess(ctx, ledger.SuccessCommit{
		JobID:       job.ID,
		PrincipalID: "p1",
		Mode:        "HYBRID",
		Result:      *entity.NewStructuredResult(),
		Cost:        100,
		Audit:       audit(job.ID, constants.AuditActionExtract, constants.AuditStatusSuccess),
		FinishedAt:  time.Now().UTC(),
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindInsufficientCredits, appErr.Kind)
	assert.Equal(t, int64(40), appErr.CreditsRemaining)

	got, err := l.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, got.Status)
	_, err = l.GetResult(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	entries, _ := l.ListAudit(ctx, job.ID)
	assert.Empty(t, entries)
	bal, _ := l.GetCredits(ctx, "p1")
	assert.Equal(t, int64(40), bal)
}

func TestLedger_TerminalStatesAreImmutable(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, _ = l.GrantCredits(ctx, "p1", 500)

	job := newJob("p1")
	require.NoError(t, l.CreateJob(ctx, job))
	require.NoError(t, l.CommitFailure(ctx, ledger.FailureCommit{
		JobID:        job.ID,
		ErrorKind:    string(common.KindTimeout),
		ErrorMessage: "pdftotext timed out",
		Audit:        audit(job.ID, constants.AuditActionExtract, constants.AuditStatusFailed),
		FinishedAt:   time.Now().UTC(),
	}))

	err := l.CommitSuccess(ctx, ledger.SuccessCommit{
		JobID: job.ID, PrincipalID: "p1", Result: *entity.NewStructuredResult(), Cost: 100,
		Audit: audit(job.ID, constants.AuditActionExtract, constants.AuditStatusSuccess), FinishedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, common.ErrJobNotProcessing)

	err = l.CommitFailure(ctx, ledger.FailureCommit{
		JobID: job.ID, Audit: audit(job.ID, constants.AuditActionExtract, constants.AuditStatusFailed), FinishedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, common.ErrJobNotProcessing)

	got, _ := l.GetJob(ctx, job.ID)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "Timeout", got.ErrorKind)
	bal, _ := l.GetCredits(ctx, "p1")
	assert.Equal(t, int64(500), bal)
}

func TestLedger_ListJobsFilters(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i, p := range []string{"a", "b", "a"} {
		j := newJob(p)
		j.StartedAt = j.StartedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, l.CreateJob(ctx, j))
	}

	all, err := l.ListJobs(ctx, ledger.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, !all[0].StartedAt.Before(all[1].StartedAt))

	onlyA, err := l.ListJobs(ctx, ledger.JobFilter{PrincipalID: "a", Status: constants.JobStatusProcessing})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := l.ListJobs(ctx, ledger.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLedger_GetJobNotFound(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_PingAndClose(t *testing.T) {
	ctx := context.Background()
	drv, err := Open(ctx, Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ping.db")}, nil)
	require.NoError(t, err)
	l := NewLedger(drv, nil)

	require.NoError(t, l.Ping(ctx))
	require.NoError(t, l.Close())
	assert.Error(t, l.Ping(ctx))
	assert.NoError(t, Close(nil, nil))
}
