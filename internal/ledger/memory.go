package ledger

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

// MemoryStore is an in-process Store. Every method holds one lock, so commits
// are atomic with respect to each other.
type MemoryStore struct {
	mu      sync.Mutex
	credits map[string]int64
	jobs    map[uuid.UUID]*entity.Job
	order   []uuid.UUID
	audit   map[uuid.UUID][]*entity.AuditEntry
	results map[uuid.UUID]*entity.JobResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credits: map[string]int64{},
		jobs:    map[uuid.UUID]*entity.Job{},
		audit:   map[uuid.UUID][]*entity.AuditEntry{},
		results: map[uuid.UUID]*entity.JobResult{},
	}
}

func (m *MemoryStore) GetCredits(_ context.Context, principalID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[principalID], nil
}

func (m *MemoryStore) GrantCredits(_ context.Context, principalID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[principalID] += amount
	return m.credits[principalID], nil
}

func (m *MemoryStore) CreateJob(_ context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	m.order = append(m.order, job.ID)
	return nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry *entity.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[entry.JobID]; !ok {
		return common.ErrNotFound
	}
	cp := *entry
	m.audit[entry.JobID] = append(m.audit[entry.JobID], &cp)
	return nil
}

func (m *MemoryStore) CommitSuccess(_ context.Context, c SuccessCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[c.JobID]
	if !ok {
		return common.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return common.ErrJobNotProcessing
	}
	if bal := m.credits[c.PrincipalID]; bal < c.Cost {
		return common.InsufficientCredits(bal, c.Cost)
	}

	m.credits[c.PrincipalID] -= c.Cost
	job.Status = constants.JobStatusCompleted
	job.Mode = c.Mode
	job.ModelName = c.ModelName
	at := c.FinishedAt
	job.FinishedAt = &at
	m.results[c.JobID] = &entity.JobResult{
		JobID:       c.JobID,
		PrincipalID: c.PrincipalID,
		Mode:        c.Mode,
		ModelName:   c.ModelName,
		Result:      c.Result,
		UpdatedAt:   c.FinishedAt,
	}
	audit := c.Audit
	m.audit[c.JobID] = append(m.audit[c.JobID], &audit)
	return nil
}

func (m *MemoryStore) CommitFailure(_ context.Context, c FailureCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[c.JobID]
	if !ok {
		return common.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return common.ErrJobNotProcessing
	}
	job.Status = constants.JobStatusFailed
	job.ErrorKind = c.ErrorKind
	job.ErrorMessage = c.ErrorMessage
	at := c.FinishedAt
	job.FinishedAt = &at
	audit := c.Audit
	m.audit[c.JobID] = append(m.audit[c.JobID], &audit)
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, f JobFilter) ([]*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Job
	for _, id := range slices.Backward(m.order) {
		job := m.jobs[id]
		if f.PrincipalID != "" && job.PrincipalID != f.PrincipalID {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		cp := *job
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAudit(_ context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.AuditEntry, 0, len(m.audit[jobID]))
	for _, e := range m.audit[jobID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) GetResult(_ context.Context, jobID uuid.UUID) (*entity.JobResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

var _ Store = (*MemoryStore)(nil)
