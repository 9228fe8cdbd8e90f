package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/db/migrate"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

// Ledger is the SQL ledger store. Statements are built with ent's dialect-aware
// builder and executed through database/sql.
type Ledger struct {
	drv *entsql.Driver
	db  *sql.DB
	log *slog.Logger
}

var _ ledger.Store = (*Ledger)(nil)

const pingTimeout = 3 * time.Second

func NewLedger(drv *entsql.Driver, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{drv: drv, db: drv.DB(), log: log}
}

// Migrate creates the ledger tables.
func (r *Ledger) Migrate(ctx context.Context) error {
	return migrate.Create(ctx, r.drv)
}

func (r *Ledger) Ping(ctx context.Context) error {
	return HealthCheck(ctx, r.drv, pingTimeout, r.log)
}

func (r *Ledger) Close() error {
	return Close(r.drv, r.log)
}

func (r *Ledger) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type statement interface {
	Query() (string, []any)
}

func exec(ctx context.Context, q querier, st statement) (int64, error) {
	query, args := st.Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// withTx runs fn in a transaction, rolling back on any error.
func (r *Ledger) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("ledger tx rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Ledger) CommitSuccess(ctx context.Context, c ledger.SuccessCommit) error {
	payload, err := c.Result.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.finishJob(ctx, tx, c.JobID.String(), jobCompleted(c)); err != nil {
			return err
		}

		upsert := r.builder().Insert(migrate.TableResults).
			Columns("job_id", "principal_id", "mode", "model_name", "result", "updated_at").
			Values(c.JobID.String(), c.PrincipalID, c.Mode, c.ModelName, string(payload), c.FinishedAt).
			OnConflict(entsql.ConflictColumns("job_id"), entsql.ResolveWithNewValues())
		if _, err := exec(ctx, tx, upsert); err != nil {
			return fmt.Errorf("upsert result: %w", err)
		}

		if err := r.insertAudit(ctx, tx, &c.Audit); err != nil {
			return err
		}
		return r.debit(ctx, tx, c.PrincipalID, c.Cost, c.FinishedAt)
	})
	if err != nil {
		r.log.Error("ledger commit success failed", "job_id", c.JobID, "err", err)
		return err
	}
	r.log.Info("ledger commit success", "job_id", c.JobID, "debited", c.Cost)
	return nil
}

func (r *Ledger) CommitFailure(ctx context.Context, c ledger.FailureCommit) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.finishJob(ctx, tx, c.JobID.String(), jobFailed(c)); err != nil {
			return err
		}
		return r.insertAudit(ctx, tx, &c.Audit)
	})
	if err != nil {
		r.log.Error("ledger commit failure failed", "job_id", c.JobID, "err", err)
		return err
	}
	r.log.Warn("ledger job failed", "job_id", c.JobID, "kind", c.ErrorKind)
	return nil
}

// finishJob transitions a processing job. Zero affected rows means the job is
// missing or already terminal.
func (r *Ledger) finishJob(ctx context.Context, tx *sql.Tx, id string, set map[string]any) error {
	upd := r.builder().Update(migrate.TableJobs)
	for _, col := range jobFinishColumns {
		if v, ok := set[col]; ok {
			upd.Set(col, v)
		}
	}
	upd.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(statusProcessing))))
	n, err := exec(ctx, tx, upd)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrJobNotProcessing)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
