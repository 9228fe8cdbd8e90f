package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

// SuccessCommit is everything written atomically when a job completes.
type SuccessCommit struct {
	JobID       uuid.UUID
	PrincipalID string
	Mode        string
	ModelName   string
	Result      entity.StructuredResult
	Cost        int64
	Audit       entity.AuditEntry
	FinishedAt  time.Time
}

// FailureCommit marks a job failed together with its audit entry.
type FailureCommit struct {
	JobID        uuid.UUID
	ErrorKind    string
	ErrorMessage string
	Audit        entity.AuditEntry
	FinishedAt   time.Time
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	PrincipalID string
	Status      constants.JobStatus
	Limit       int
}

// Store persists jobs, audit entries, results and credit balances.
//
// CommitSuccess and CommitFailure are all-or-nothing. Both only transition a
// job that is still processing and return common.ErrJobNotProcessing otherwise.
// CommitSuccess returns an InsufficientCredits AppError when the debit guard
// (balance >= cost) fails.
type Store interface {
	GetCredits(ctx context.Context, principalID string) (int64, error)
	GrantCredits(ctx context.Context, principalID string, amount int64) (int64, error)

	CreateJob(ctx context.Context, job *entity.Job) error
	AppendAudit(ctx context.Context, entry *entity.AuditEntry) error
	CommitSuccess(ctx context.Context, c SuccessCommit) error
	CommitFailure(ctx context.Context, c FailureCommit) error

	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]*entity.Job, error)
	ListAudit(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error)
	GetResult(ctx context.Context, jobID uuid.UUID) (*entity.JobResult, error)

	Ping(ctx context.Context) error
	Close() error
}
