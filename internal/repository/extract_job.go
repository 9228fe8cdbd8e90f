package repository

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/db/migrate"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

const statusProcessing = constants.JobStatusProcessing

var jobColumns = []string{
	"id", "principal_id", "status", "file_name", "file_size", "mode",
	"model_name", "error_kind", "error_message", "started_at", "finished_at",
}

// jobFinishColumns fixes the SET order so generated statements are stable.
var jobFinishColumns = []string{"status", "mode", "model_name", "error_kind", "error_message", "finished_at"}

var auditColumns = []string{"id", "job_id", "action", "status", "message", "created_at"}

func jobCompleted(c ledger.SuccessCommit) map[string]any {
	return map[string]any{
		"status":      string(constants.JobStatusCompleted),
		"mode":        c.Mode,
		"model_name":  c.ModelName,
		"finished_at": c.FinishedAt,
	}
}

func jobFailed(c ledger.FailureCommit) map[string]any {
	return map[string]any{
		"status":        string(constants.JobStatusFailed),
		"error_kind":    c.ErrorKind,
		"error_message": c.ErrorMessage,
		"finished_at":   c.FinishedAt,
	}
}

func (r *Ledger) CreateJob(ctx context.Context, job *entity.Job) error {
	ins := r.builder().Insert(migrate.TableJobs).
		Columns("id", "principal_id", "status", "file_name", "file_size", "started_at").
		Values(job.ID.String(), job.PrincipalID, string(job.Status), job.FileName, job.FileSize, job.StartedAt)
	if _, err := exec(ctx, r.db, ins); err != nil {
		r.log.Error("extract_job create failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("create job: %w", err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "principal", job.PrincipalID)
	return nil
}

func (r *Ledger) AppendAudit(ctx context.Context, entry *entity.AuditEntry) error {
	return r.insertAudit(ctx, r.db, entry)
}

func (r *Ledger) insertAudit(ctx context.Context, q querier, e *entity.AuditEntry) error {
	ins := r.builder().Insert(migrate.TableAudit).
		Columns(auditColumns...).
		Values(e.ID.String(), e.JobID.String(), string(e.Action), string(e.Status), e.Message, e.CreatedAt)
	if _, err := exec(ctx, q, ins); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (r *Ledger) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query, args := r.builder().Select(jobColumns...).
		From(entsql.Table(migrate.TableJobs)).
		Where(entsql.EQ("id", id.String())).
		Query()
	job, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if isNoRows(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (r *Ledger) ListJobs(ctx context.Context, f ledger.JobFilter) ([]*entity.Job, error) {
	sel := r.builder().Select(jobColumns...).
		From(entsql.Table(migrate.TableJobs)).
		OrderBy(entsql.Desc("started_at"))
	var preds []*entsql.Predicate
	if f.PrincipalID != "" {
		preds = append(preds, entsql.EQ("principal_id", f.PrincipalID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *Ledger) ListAudit(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	query, args := r.builder().Select(auditColumns...).
		From(entsql.Table(migrate.TableAudit)).
		Where(entsql.EQ("job_id", jobID.String())).
		OrderBy("created_at").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := []*entity.AuditEntry{}
	for rows.Next() {
		var e entity.AuditEntry
		var id, job, action, status string
		if err := rows.Scan(&id, &job, &action, &status, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		e.JobID, _ = uuid.Parse(job)
		e.Action = constants.AuditAction(action)
		e.Status = constants.AuditStatus(status)
		out = append(out, &e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		j        entity.Job
		id       string
		status   string
		finished sql.NullTime
	)
	err := row.Scan(&id, &j.PrincipalID, &status, &j.FileName, &j.FileSize, &j.Mode,
		&j.ModelName, &j.ErrorKind, &j.ErrorMessage, &j.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("job id %q: %w", id, err)
	}
	j.ID = parsed
	j.Status = constants.JobStatus(status)
	if finished.Valid {
		t := finished.Time.UTC()
		j.FinishedAt = &t
	}
	j.StartedAt = j.StartedAt.UTC()
	return &j, nil
}
