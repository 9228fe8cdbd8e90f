// Package ledger owns the job lifecycle: the credit gate, the processing
// record, the atomic success commit with its debit, and failure bookkeeping.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

type Ledger struct {
	store  Store
	cost   int64
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, cost int64, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, cost: cost, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Cost is the number of credits debited per completed job.
func (l *Ledger) Cost() int64 { return l.cost }

// Begin gates on the principal's balance and records a processing job with its
// upload audit entry. An insufficient balance performs no writes.
func (l *Ledger) Begin(ctx context.Context, principalID, fileName string, fileSize int64) (*entity.Job, error) {
	balance, err := l.store.GetCredits(ctx, principalID)
	if err != nil {
		l.logger.Error("ledger.begin.credits_failed", "principal", principalID, "error", err)
		return nil, storeError("read credits", err)
	}
	if balance < l.cost {
		l.logger.Warn("ledger.begin.insufficient_credits", "principal", principalID, "balance", balance, "cost", l.cost)
		return nil, common.InsufficientCredits(balance, l.cost)
	}

	job := &entity.Job{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Status:      constants.JobStatusProcessing,
		FileName:    fileName,
		FileSize:    fileSize,
		StartedAt:   l.now(),
	}
	if err := l.store.CreateJob(ctx, job); err != nil {
		l.logger.Error("ledger.begin.create_failed", "principal", principalID, "error", err)
		return nil, storeError("create job", err)
	}

	audit := l.audit(job.ID, constants.AuditActionUpload, constants.AuditStatusSuccess, fileName)
	if err := l.store.AppendAudit(ctx, &audit); err != nil {
		cause := storeError("append upload audit", err)
		l.Fail(ctx, job, cause)
		return nil, cause
	}

	l.logger.Info("ledger.begin.ok", "job_id", job.ID, "principal", principalID, "balance", balance)
	return job, nil
}

// Complete persists the result, marks the job completed, appends the extract
// audit entry and debits the cost, all in one store transaction.
func (l *Ledger) Complete(ctx context.Context, job *entity.Job, mode, modelName string, result entity.StructuredResult) error {
	at := l.now()
	err := l.store.CommitSuccess(ctx, SuccessCommit{
		JobID:       job.ID,
		PrincipalID: job.PrincipalID,
		Mode:        mode,
		ModelName:   modelName,
		Result:      result,
		Cost:        l.cost,
		Audit:       l.audit(job.ID, constants.AuditActionExtract, constants.AuditStatusSuccess, mode),
		FinishedAt:  at,
	})
	if err != nil {
		l.logger.Error("ledger.complete.failed", "job_id", job.ID, "kind", common.KindOf(err), "error", err)
		if common.IsKind(err, common.KindInsufficientCredits) {
			return err
		}
		return storeError("commit success", err)
	}

	job.Status = constants.JobStatusCompleted
	job.Mode = mode
	job.ModelName = modelName
	job.FinishedAt = &at
	l.logger.Info("ledger.complete.ok", "job_id", job.ID, "mode", mode, "model", modelName, "debited", l.cost)
	return nil
}

// Fail marks the job failed with cause's kind and message. A store failure here
// is logged and never replaces cause.
func (l *Ledger) Fail(ctx context.Context, job *entity.Job, cause error) {
	if job == nil {
		return
	}
	kind := common.KindOf(cause)
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	at := l.now()
	err := l.store.CommitFailure(ctx, FailureCommit{
		JobID:        job.ID,
		ErrorKind:    string(kind),
		ErrorMessage: msg,
		Audit:        l.audit(job.ID, constants.AuditActionExtract, constants.AuditStatusFailed, msg),
		FinishedAt:   at,
	})
	if err != nil {
		l.logger.Error("CRITICAL: failed to record job failure",
			"job_id", job.ID, "cause_kind", kind, "cause", msg, "error", err)
		return
	}

	job.Status = constants.JobStatusFailed
	job.ErrorKind = string(kind)
	job.ErrorMessage = msg
	job.FinishedAt = &at
	l.logger.Warn("ledger.fail.recorded", "job_id", job.ID, "kind", kind)
}

// Balance returns the principal's current credits.
func (l *Ledger) Balance(ctx context.Context, principalID string) (int64, error) {
	bal, err := l.store.GetCredits(ctx, principalID)
	if err != nil {
		return 0, storeError("read credits", err)
	}
	return bal, nil
}

func (l *Ledger) audit(jobID uuid.UUID, action constants.AuditAction, status constants.AuditStatus, msg string) entity.AuditEntry {
	return entity.AuditEntry{
		ID:        uuid.New(),
		JobID:     jobID,
		Action:    action,
		Status:    status,
		Message:   msg,
		CreatedAt: l.now(),
	}
}

func storeError(op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Kind == common.KindStoreError {
		return err
	}
	return common.NewAppError(common.KindStoreError, op, err)
}
