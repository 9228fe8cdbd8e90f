package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/app"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/async"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ingest"
)

var (
	watchInitial  bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]...",
	Short: "Extract PDFs as they appear in the given directories",
	Long:  `Watches the directories recursively and extracts each new or rewritten PDF. Identical content is processed once per run. Stop with Ctrl+C.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addQueueFlags(watchCmd)
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also extract files already present")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is picked up")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       args,
		InitialScan: watchInitial,
		Debounce:    watchDebounce,
		SkipHidden:  skipHidden,
		Logger:      a.Logger,
	})
	if err != nil {
		return err
	}

	out := newLineWriter(cmd.OutOrStdout())
	q := async.NewProcessorQueue(a.Processor, a.Logger,
		async.WithWorkers(workers),
		async.WithProcessTimeout(fileTimeout),
		async.WithResultHandler(out.write))
	defer q.Shutdown(context.Background())

	dedupe := ingest.NewDeduper()
	cmd.PrintErrf("watching %v (Ctrl+C to stop)\n", args)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			seen, first, err := dedupe.Seen(path)
			if err != nil {
				a.Logger.Warn("cli.watch.hash_failed", "path", path, "error", err)
				continue
			}
			if seen {
				a.Logger.Info("cli.watch.duplicate", "path", path, "first", first)
				continue
			}
			if err := q.Enqueue(ctx, async.Job{Path: path, PrincipalID: principal}); err != nil {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.Logger.Warn("cli.watch.error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
