package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
)

// Job is one end-to-end processing attempt for a single uploaded document.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	PrincipalID  string              `json:"principalId"`
	Status       constants.JobStatus `json:"status"`
	FileName     string              `json:"fileName"`
	FileSize     int64               `json:"fileSize"`
	Mode         string              `json:"mode,omitempty"`
	ModelName    string              `json:"modelName,omitempty"`
	ErrorKind    string              `json:"errorKind,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	FinishedAt   *time.Time          `json:"finishedAt,omitempty"`
}

// AuditEntry is an append-only record of one pipeline stage transition.
type AuditEntry struct {
	ID        uuid.UUID             `json:"id"`
	JobID     uuid.UUID             `json:"jobId"`
	Action    constants.AuditAction `json:"action"`
	Status    constants.AuditStatus `json:"status"`
	Message   string                `json:"message"`
	CreatedAt time.Time             `json:"createdAt"`
}

// JobResult is the normalized result persisted for a completed job, keyed by job id.
type JobResult struct {
	JobID       uuid.UUID        `json:"jobId"`
	PrincipalID string           `json:"principalId"`
	Mode        string           `json:"mode"`
	ModelName   string           `json:"modelName"`
	Result      StructuredResult `json:"result"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// CreditAccount is the balance owned by a principal.
type CreditAccount struct {
	PrincipalID string    `json:"principalId"`
	Balance     int64     `json:"balance"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
