package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/db/migrate"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

// GetCredits returns the principal's balance. Unknown principals have zero.
func (r *Ledger) GetCredits(ctx context.Context, principalID string) (int64, error) {
	return r.balance(ctx, r.db, principalID)
}

func (r *Ledger) balance(ctx context.Context, q querier, principalID string) (int64, error) {
	query, args := r.builder().Select("balance").
		From(entsql.Table(migrate.TableCredits)).
		Where(entsql.EQ("principal_id", principalID)).
		Query()
	var bal int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&bal)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return bal, nil
}

// GrantCredits adds amount (which may be negative) to the balance, creating the account if needed.
func (r *Ledger) GrantCredits(ctx context.Context, principalID string, amount int64) (int64, error) {
	var bal int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		upsert := r.builder().Insert(migrate.TableCredits).
			Columns("principal_id", "balance", "updated_at").
			Values(principalID, amount, now).
			OnConflict(
				entsql.ConflictColumns("principal_id"),
				entsql.ResolveWith(func(u *entsql.UpdateSet) {
					u.Add("balance", amount)
					u.SetExcluded("updated_at")
				}),
			)
		if _, err := exec(ctx, tx, upsert); err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		var err error
		bal, err = r.balance(ctx, tx, principalID)
		return err
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("credits granted", "principal", principalID, "amount", amount, "balance", bal)
	return bal, nil
}

// debit subtracts cost only while balance >= cost.
func (r *Ledger) debit(ctx context.Context, tx *sql.Tx, principalID string, cost int64, at time.Time) error {
	if cost <= 0 {
		return nil
	}
	upd := r.builder().Update(migrate.TableCredits).
		Add("balance", -cost).
		Set("updated_at", at).
		Where(entsql.And(
			entsql.EQ("principal_id", principalID),
			entsql.GTE("balance", cost),
		))
	n, err := exec(ctx, tx, upd)
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	if n == 0 {
		bal, err := r.balance(ctx, tx, principalID)
		if err != nil {
			return err
		}
		return common.InsufficientCredits(bal, cost)
	}
	return nil
}

func (r *Ledger) GetResult(ctx context.Context, jobID uuid.UUID) (*entity.JobResult, error) {
	query, args := r.builder().Select("job_id", "principal_id", "mode", "model_name", "result", "updated_at").
		From(entsql.Table(migrate.TableResults)).
		Where(entsql.EQ("job_id", jobID.String())).
		Query()

	var (
		res     entity.JobResult
		id      string
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &res.PrincipalID, &res.Mode, &res.ModelName, &payload, &res.UpdatedAt)
	if isNoRows(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	res.JobID = jobID
	if err := json.Unmarshal(payload, &res.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	res.Result.EnsureShape()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return &res, nil
}
