package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

const (
	sheetJobs     = "Jobs"
	sheetAudit    = "Audit"
	sheetProfiles = "Profiles"
)

// Service is a tiny façade over the ledger store that produces XLSX bytes.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
}

func NewService(store ledger.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportJobsXLSX returns a workbook with one sheet of jobs, one of audit
// entries and one row per completed profile.
func (s *Service) ExportJobsXLSX(ctx context.Context, filter ledger.JobFilter) ([]byte, error) {
	start := time.Now()

	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes Jobs
	if err := f.SetSheetName("Sheet1", sheetJobs); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetAudit, sheetProfiles} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writeHeader(f, sheetJobs, "Job ID", "Principal", "Status", "File", "Size (bytes)", "Mode", "Model",
		"Error Kind", "Error", "Started", "Finished")
	writeHeader(f, sheetAudit, "Job ID", "Action", "Status", "Message", "Created")
	writeHeader(f, sheetProfiles, "Job ID", "Name", "Surname", "Email", "Headline", "City", "Country",
		"Experiences", "Educations", "Skills", "Latest Role")

	jobRow, auditRow, profileRow := 2, 2, 2
	for _, j := range jobs {
		finished := ""
		if j.FinishedAt != nil {
			finished = j.FinishedAt.Format(time.RFC3339)
		}
		writeRow(f, sheetJobs, jobRow, j.ID.String(), j.PrincipalID, string(j.Status), j.FileName, j.FileSize,
			j.Mode, j.ModelName, j.ErrorKind, truncate(j.ErrorMessage, 140), j.StartedAt.Format(time.RFC3339), finished)
		jobRow++

		entries, err := s.store.ListAudit(ctx, j.ID)
		if err != nil {
			return nil, fmt.Errorf("query audit for %s: %w", j.ID, err)
		}
		for _, e := range entries {
			writeRow(f, sheetAudit, auditRow, j.ID.String(), string(e.Action), string(e.Status),
				truncate(e.Message, 140), e.CreatedAt.Format(time.RFC3339))
			auditRow++
		}

		if j.Status != constants.JobStatusCompleted {
			continue
		}
		res, err := s.store.GetResult(ctx, j.ID)
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("export.result_missing", "job_id", j.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query result for %s: %w", j.ID, err)
		}
		p := res.Result.Profile
		writeRow(f, sheetProfiles, profileRow, j.ID.String(), p.Name, p.Surname, p.Email, p.Headline, p.City, p.Country,
			len(res.Result.WorkExperiences), len(res.Result.Educations), len(res.Result.Skills), latestRole(res.Result))
		profileRow++
	}

	_ = f.SetColWidth(sheetJobs, "A", "A", 38) // uuid
	_ = f.SetColWidth(sheetJobs, "D", "D", 28)
	_ = f.SetColWidth(sheetJobs, "I", "I", 48)
	_ = f.SetColWidth(sheetAudit, "A", "A", 38)
	_ = f.SetColWidth(sheetAudit, "D", "D", 48)
	_ = f.SetColWidth(sheetProfiles, "A", "A", 38)
	_ = f.SetColWidth(sheetProfiles, "E", "E", 32)
	_ = f.SetColWidth(sheetProfiles, "K", "K", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"principal", filter.PrincipalID,
		"rows", len(jobs),
		"profiles", profileRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers ...string) {
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	writeRow(f, sheet, 1, vals...)
}

func writeRow(f *excelize.File, sheet string, row int, vals ...any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func latestRole(r entity.StructuredResult) string {
	if len(r.WorkExperiences) == 0 {
		return ""
	}
	w := r.WorkExperiences[0]
	return strings.TrimSpace(strings.Join([]string{w.JobTitle, w.Company}, " @ "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
