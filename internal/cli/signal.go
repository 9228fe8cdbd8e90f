package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/app"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
)

var signalCmd = &cobra.Command{
	Use:   "signal [file.pdf]",
	Short: "Show the text/image signal and selected mode without extracting",
	Long:  `Runs local text and image extraction (and the raster fallback when configured) and prints the mode that would be used. No inference call is made and no credits are charged.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd, app.Options{SkipInference: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Processor.Probe(ctx, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}

	cmd.Printf("File:        %s\n", args[0])
	cmd.Printf("Text length: %d\n", res.TextLen)
	cmd.Printf("Image pages: %v\n", res.ImagePages)
	if res.Err != nil {
		cmd.Printf("Mode:        none (%s)\n", common.KindOf(res.Err))
		return errors.New(common.UserMessage(res.Err))
	}
	cmd.Printf("Mode:        %s\n", res.Decision.Mode)
	cmd.Printf("Tier:        %s\n", res.Decision.Tier)
	return nil
}
