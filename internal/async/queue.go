package async

import (
	"context"
	"time"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/pipeline"
)

// Job is one document waiting to be extracted on behalf of a principal.
type Job struct {
	Path        string
	PrincipalID string
	SubmittedAt time.Time
	TraceID     string
}

// Result is delivered once per enqueued job.
type Result struct {
	Job     Job
	Outcome *pipeline.Outcome
	Err     error
	Elapsed time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
