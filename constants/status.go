package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusProcessing JobStatus = "processing" // created at upload, extraction in flight
	JobStatusCompleted  JobStatus = "completed"  // terminal success, credits debited
	JobStatusFailed     JobStatus = "failed"     // terminal failure, no debit
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AuditAction names the pipeline stage an audit entry records.
type AuditAction string

const (
	AuditActionUpload  AuditAction = "upload"
	AuditActionExtract AuditAction = "extract"
)

// AuditStatus is the outcome recorded on an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)
