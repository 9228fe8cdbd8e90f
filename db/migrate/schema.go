// Package migrate declares the ledger tables and creates them with ent's
// schema migrator.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	TableJobs    = "extract_jobs"
	TableAudit   = "audit_entries"
	TableResults = "job_results"
	TableCredits = "credit_accounts"
)

var (
	jobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "principal_id", Type: field.TypeString, Size: 128},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "file_name", Type: field.TypeString, Size: 255},
		{Name: "file_size", Type: field.TypeInt64},
		{Name: "mode", Type: field.TypeString, Size: 16, Default: ""},
		{Name: "model_name", Type: field.TypeString, Size: 64, Default: ""},
		{Name: "error_kind", Type: field.TypeString, Size: 32, Default: ""},
		{Name: "error_message", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
	}
	JobsTable = &schema.Table{
		Name:       TableJobs,
		Columns:    jobsColumns,
		PrimaryKey: []*schema.Column{jobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "extract_jobs_principal_started", Columns: []*schema.Column{jobsColumns[1], jobsColumns[9]}},
			{Name: "extract_jobs_status", Columns: []*schema.Column{jobsColumns[2]}},
		},
	}

	auditColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "job_id", Type: field.TypeString, Size: 36},
		{Name: "action", Type: field.TypeString, Size: 16},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "message", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	AuditTable = &schema.Table{
		Name:       TableAudit,
		Columns:    auditColumns,
		PrimaryKey: []*schema.Column{auditColumns[0]},
		ForeignKeys: []*schema.ForeignKey{{
			Symbol:     "audit_entries_extract_jobs_audit",
			Columns:    []*schema.Column{auditColumns[1]},
			RefColumns: []*schema.Column{jobsColumns[0]},
			OnDelete:   schema.Cascade,
		}},
		Indexes: []*schema.Index{
			{Name: "audit_entries_job_created", Columns: []*schema.Column{auditColumns[1], auditColumns[5]}},
		},
	}

	resultsColumns = []*schema.Column{
		{Name: "job_id", Type: field.TypeString, Size: 36},
		{Name: "principal_id", Type: field.TypeString, Size: 128},
		{Name: "mode", Type: field.TypeString, Size: 16},
		{Name: "model_name", Type: field.TypeString, Size: 64},
		{Name: "result", Type: field.TypeJSON},
		{Name: "updated_at", Type: field.TypeTime},
	}
	ResultsTable = &schema.Table{
		Name:       TableResults,
		Columns:    resultsColumns,
		PrimaryKey: []*schema.Column{resultsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{{
			Symbol:     "job_results_extract_jobs_result",
			Columns:    []*schema.Column{resultsColumns[0]},
			RefColumns: []*schema.Column{jobsColumns[0]},
			OnDelete:   schema.Cascade,
		}},
	}

	creditsColumns = []*schema.Column{
		{Name: "principal_id", Type: field.TypeString, Size: 128},
		{Name: "balance", Type: field.TypeInt64, Default: 0},
		{Name: "updated_at", Type: field.TypeTime},
	}
	CreditsTable = &schema.Table{
		Name:       TableCredits,
		Columns:    creditsColumns,
		PrimaryKey: []*schema.Column{creditsColumns[0]},
	}

	// Tables lists all ledger tables in dependency order.
	Tables = []*schema.Table{JobsTable, AuditTable, ResultsTable, CreditsTable}
)

func init() {
	AuditTable.ForeignKeys[0].RefTable = JobsTable
	ResultsTable.ForeignKeys[0].RefTable = JobsTable
}

// Create brings the database schema up to date. It only adds; columns and
// indexes are never dropped.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}
