package firestore

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "missing")))
	assert.False(t, isNotFound(status.Error(codes.Unavailable, "down")))
	assert.False(t, isNotFound(errors.New("plain")))
	assert.False(t, isNotFound(nil))
}

func TestDocMapping(t *testing.T) {
	now := time.Now().UTC()
	job := &entity.Job{
		ID:          uuid.New(),
		PrincipalID: "p1",
		Status:      constants.JobStatusProcessing,
		FileName:    "cv.pdf",
		FileSize:    42,
		StartedAt:   now,
	}
	d := toJobDoc(job)
	assert.Equal(t, "processing", d.Status)
	assert.Equal(t, "p1", d.PrincipalID)
	assert.Nil(t, d.FinishedAt)

	entry := &entity.AuditEntry{
		ID:        uuid.New(),
		JobID:     job.ID,
		Action:    constants.AuditActionUpload,
		Status:    constants.AuditStatusSuccess,
		CreatedAt: now,
	}
	a := toAuditDoc(entry)
	assert.Equal(t, job.ID.String(), a.JobID)
	assert.Equal(t, "upload", a.Action)
}
