package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/export"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

var (
	exportOut    string
	exportStatus string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write jobs, audit entries and profiles to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "jobs.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only jobs in this status (processing, completed, failed)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "include every principal")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	filter := ledger.JobFilter{Status: constants.JobStatus(exportStatus)}
	if !exportAll {
		filter.PrincipalID = principal
	}

	ctx := context.Background()
	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := export.NewService(store, newLogger(cmd)).ExportJobsXLSX(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	cmd.Printf("wrote %s (%d bytes)\n", exportOut, len(data))
	return nil
}
