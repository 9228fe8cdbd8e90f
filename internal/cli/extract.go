package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/app"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/async"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ingest"
)

var (
	workers     int
	fileTimeout time.Duration
	skipHidden  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file-or-dir]...",
	Short: "Run the full extraction pipeline on PDF files",
	Long: `Extracts every PDF named on the command line (directories are walked) and
prints one JSON line per document. Each completed document debits the principal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	addQueueFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}

func addQueueFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&workers, "workers", "w", 2, "documents processed concurrently")
	cmd.Flags().DurationVar(&fileTimeout, "timeout", 60*time.Second, "per-document deadline")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
}

// extractLine is one JSON line of extract/watch output.
type extractLine struct {
	File      string `json:"file"`
	JobID     string `json:"jobId,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Model     string `json:"model,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	ElapsedMS int64  `json:"elapsedMs"`
}

func toLine(r async.Result) extractLine {
	line := extractLine{File: r.Job.Path, ElapsedMS: r.Elapsed.Milliseconds()}
	if r.Err != nil {
		line.Error = string(common.KindOf(r.Err))
		line.Message = common.UserMessage(r.Err)
		return line
	}
	line.JobID = r.Outcome.Job.ID.String()
	line.Mode = string(r.Outcome.Decision.Mode)
	line.Model = r.Outcome.Model
	line.Result = r.Outcome.Result
	return line
}

// lineWriter serializes result lines coming from worker goroutines.
type lineWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	failed int
	total  int
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) write(r async.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total++
	if r.Err != nil {
		w.failed++
	}
	_ = w.enc.Encode(toLine(r))
}

func runExtract(cmd *cobra.Command, args []string) error {
	var paths []string
	for _, arg := range args {
		found, _, err := ingest.Discover(arg, skipHidden)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return errors.New("no PDF files found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := newLineWriter(cmd.OutOrStdout())
	q := async.NewProcessorQueue(a.Processor, a.Logger,
		async.WithWorkers(workers),
		async.WithProcessTimeout(fileTimeout),
		async.WithResultHandler(out.write))

	for _, p := range paths {
		if err := q.Enqueue(ctx, async.Job{Path: p, PrincipalID: principal}); err != nil {
			break
		}
	}
	q.Shutdown(context.Background())

	if out.failed > 0 {
		return fmt.Errorf("%d of %d documents failed", out.failed, out.total)
	}
	return nil
}
