// Package firestore stores the job ledger in Cloud Firestore.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

const (
	colJobs    = "extract_jobs"
	colAudit   = "audit_entries"
	colResults = "job_results"
	colCredits = "credit_accounts"
)

type jobDoc struct {
	PrincipalID  string     `firestore:"principal_id"`
	Status       string     `firestore:"status"`
	FileName     string     `firestore:"file_name"`
	FileSize     int64      `firestore:"file_size"`
	Mode         string     `firestore:"mode"`
	ModelName    string     `firestore:"model_name"`
	ErrorKind    string     `firestore:"error_kind"`
	ErrorMessage string     `firestore:"error_message"`
	StartedAt    time.Time  `firestore:"started_at"`
	FinishedAt   *time.Time `firestore:"finished_at"`
}

type auditDoc struct {
	JobID     string    `firestore:"job_id"`
	Action    string    `firestore:"action"`
	Status    string    `firestore:"status"`
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"created_at"`
}

type resultDoc struct {
	PrincipalID string    `firestore:"principal_id"`
	Mode        string    `firestore:"mode"`
	ModelName   string    `firestore:"model_name"`
	Result      string    `firestore:"result"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type creditDoc struct {
	Balance   int64     `firestore:"balance"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Ledger implements ledger.Store on Firestore. Multi-document writes go
// through RunTransaction.
type Ledger struct {
	client *firestore.Client
	log    *slog.Logger
}

var _ ledger.Store = (*Ledger)(nil)

func New(ctx context.Context, projectID string, log *slog.Logger) (*Ledger, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Ledger{client: client, log: log}, nil
}

func (l *Ledger) Close() error { return l.client.Close() }

func (l *Ledger) Ping(ctx context.Context) error {
	_, err := l.client.Collection(colCredits).Limit(1).Documents(ctx).GetAll()
	return err
}

func (l *Ledger) GetCredits(ctx context.Context, principalID string) (int64, error) {
	snap, err := l.client.Collection(colCredits).Doc(principalID).Get(ctx)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	var c creditDoc
	if err := snap.DataTo(&c); err != nil {
		return 0, fmt.Errorf("decode credits: %w", err)
	}
	return c.Balance, nil
}

func (l *Ledger) GrantCredits(ctx context.Context, principalID string, amount int64) (int64, error) {
	ref := l.client.Collection(colCredits).Doc(principalID)
	var bal int64
	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cur, err := readCredits(tx, ref)
		if err != nil {
			return err
		}
		bal = cur + amount
		return tx.Set(ref, creditDoc{Balance: bal, UpdatedAt: time.Now().UTC()})
	})
	if err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	l.log.Info("credits granted", "principal", principalID, "amount", amount, "balance", bal)
	return bal, nil
}

func (l *Ledger) CreateJob(ctx context.Context, job *entity.Job) error {
	_, err := l.client.Collection(colJobs).Doc(job.ID.String()).Create(ctx, toJobDoc(job))
	if err != nil {
		l.log.Error("extract_job create failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (l *Ledger) AppendAudit(ctx context.Context, e *entity.AuditEntry) error {
	_, err := l.client.Collection(colAudit).Doc(e.ID.String()).Create(ctx, toAuditDoc(e))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (l *Ledger) CommitSuccess(ctx context.Context, c ledger.SuccessCommit) error {
	payload, err := json.Marshal(c.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	jobRef := l.client.Collection(colJobs).Doc(c.JobID.String())
	creditRef := l.client.Collection(colCredits).Doc(c.PrincipalID)

	err = l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// all reads before any write
		if err := requireProcessing(tx, jobRef); err != nil {
			return err
		}
		bal, err := readCredits(tx, creditRef)
		if err != nil {
			return err
		}
		if c.Cost > 0 && bal < c.Cost {
			return common.InsufficientCredits(bal, c.Cost)
		}

		if err := tx.Update(jobRef, []firestore.Update{
			{Path: "status", Value: string(constants.JobStatusCompleted)},
			{Path: "mode", Value: c.Mode},
			{Path: "model_name", Value: c.ModelName},
			{Path: "finished_at", Value: c.FinishedAt},
		}); err != nil {
			return err
		}
		if err := tx.Set(l.client.Collection(colResults).Doc(c.JobID.String()), resultDoc{
			PrincipalID: c.PrincipalID,
			Mode:        c.Mode,
			ModelName:   c.ModelName,
			Result:      string(payload),
			UpdatedAt:   c.FinishedAt,
		}); err != nil {
			return err
		}
		if err := tx.Create(l.client.Collection(colAudit).Doc(c.Audit.ID.String()), toAuditDoc(&c.Audit)); err != nil {
			return err
		}
		if c.Cost > 0 {
			return tx.Set(creditRef, creditDoc{Balance: bal - c.Cost, UpdatedAt: c.FinishedAt})
		}
		return nil
	})
	if err != nil {
		l.log.Error("ledger commit success failed", "job_id", c.JobID, "err", err)
		return err
	}
	return nil
}

func (l *Ledger) CommitFailure(ctx context.Context, c ledger.FailureCommit) error {
	jobRef := l.client.Collection(colJobs).Doc(c.JobID.String())
	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := requireProcessing(tx, jobRef); err != nil {
			return err
		}
		if err := tx.Update(jobRef, []firestore.Update{
			{Path: "status", Value: string(constants.JobStatusFailed)},
			{Path: "error_kind", Value: c.ErrorKind},
			{Path: "error_message", Value: c.ErrorMessage},
			{Path: "finished_at", Value: c.FinishedAt},
		}); err != nil {
			return err
		}
		return tx.Create(l.client.Collection(colAudit).Doc(c.Audit.ID.String()), toAuditDoc(&c.Audit))
	})
	if err != nil {
		l.log.Error("ledger commit failure failed", "job_id", c.JobID, "err", err)
		return err
	}
	return nil
}

func (l *Ledger) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	snap, err := l.client.Collection(colJobs).Doc(id.String()).Get(ctx)
	if isNotFound(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return fromJobSnap(snap)
}

func (l *Ledger) ListJobs(ctx context.Context, f ledger.JobFilter) ([]*entity.Job, error) {
	q := l.client.Collection(colJobs).Query
	if f.PrincipalID != "" {
		q = q.Where("principal_id", "==", f.PrincipalID)
	}
	if f.Status != "" {
		q = q.Where("status", "==", string(f.Status))
	}
	q = q.OrderBy("started_at", firestore.Desc)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()
	var out []*entity.Job
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		job, err := fromJobSnap(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (l *Ledger) ListAudit(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	it := l.client.Collection(colAudit).
		Where("job_id", "==", jobID.String()).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer it.Stop()

	out := []*entity.AuditEntry{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list audit: %w", err)
		}
		var d auditDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode audit: %w", err)
		}
		id, _ := uuid.Parse(snap.Ref.ID)
		out = append(out, &entity.AuditEntry{
			ID:        id,
			JobID:     jobID,
			Action:    constants.AuditAction(d.Action),
			Status:    constants.AuditStatus(d.Status),
			Message:   d.Message,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (l *Ledger) GetResult(ctx context.Context, jobID uuid.UUID) (*entity.JobResult, error) {
	snap, err := l.client.Collection(colResults).Doc(jobID.String()).Get(ctx)
	if isNotFound(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	var d resultDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	res := &entity.JobResult{
		JobID:       jobID,
		PrincipalID: d.PrincipalID,
		Mode:        d.Mode,
		ModelName:   d.ModelName,
		UpdatedAt:   d.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(d.Result), &res.Result); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	res.Result.EnsureShape()
	return res, nil
}

func requireProcessing(tx *firestore.Transaction, ref *firestore.DocumentRef) error {
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return err
	}
	s, err := snap.DataAt("status")
	if err != nil {
		return err
	}
	if s != string(constants.JobStatusProcessing) {
		return fmt.Errorf("job %s: %w", ref.ID, common.ErrJobNotProcessing)
	}
	return nil
}

func readCredits(tx *firestore.Transaction, ref *firestore.DocumentRef) (int64, error) {
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var c creditDoc
	if err := snap.DataTo(&c); err != nil {
		return 0, err
	}
	return c.Balance, nil
}

func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}

func toJobDoc(j *entity.Job) jobDoc {
	return jobDoc{
		PrincipalID:  j.PrincipalID,
		Status:       string(j.Status),
		FileName:     j.FileName,
		FileSize:     j.FileSize,
		Mode:         j.Mode,
		ModelName:    j.ModelName,
		ErrorKind:    j.ErrorKind,
		ErrorMessage: j.ErrorMessage,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

func toAuditDoc(e *entity.AuditEntry) auditDoc {
	return auditDoc{
		JobID:     e.JobID.String(),
		Action:    string(e.Action),
		Status:    string(e.Status),
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
	}
}

func fromJobSnap(snap *firestore.DocumentSnapshot) (*entity.Job, error) {
	var d jobDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	id, err := uuid.Parse(snap.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("job id %q: %w", snap.Ref.ID, err)
	}
	return &entity.Job{
		ID:           id,
		PrincipalID:  d.PrincipalID,
		Status:       constants.JobStatus(d.Status),
		FileName:     d.FileName,
		FileSize:     d.FileSize,
		Mode:         d.Mode,
		ModelName:    d.ModelName,
		ErrorKind:    d.ErrorKind,
		ErrorMessage: d.ErrorMessage,
		StartedAt:    d.StartedAt,
		FinishedAt:   d.FinishedAt,
	}, nil
}
