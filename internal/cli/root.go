// Package cli implements the cvx command line.
package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/app"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
)

var (
	configFile string
	dbDriver   string
	dbURL      string
	principal  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cvx",
	Short: "Extract structured CV profiles from PDF documents",
	Long: `cvx reads CV/resume PDFs, picks text, image or hybrid extraction per document,
and records every job and credit debit in the ledger store.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "TOML config file (KEY = value)")
	pf.StringVar(&dbDriver, "db-driver", "", "ledger store: sqlite | postgres | firestore | memory")
	pf.StringVar(&dbURL, "db-url", "", "postgres DSN, or the sqlite file path")
	pf.StringVar(&principal, "principal", "local", "principal charged for extraction")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig layers the config file, the environment and the persistent flags.
func loadConfig() (*common.Config, error) {
	if err := common.LoadConfigFile(configFile); err != nil {
		return nil, err
	}
	cfg := common.LoadConfig()
	if d := strings.TrimSpace(dbDriver); d != "" {
		cfg.Database.Driver = d
	}
	if u := strings.TrimSpace(dbURL); u != "" {
		if cfg.Database.Driver == "sqlite" {
			cfg.Database.SQLitePath = u
		} else {
			cfg.Database.DSN = u
		}
	}
	return cfg, nil
}

func openStore(ctx context.Context, cmd *cobra.Command) (ledger.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return app.OpenStore(ctx, cfg, newLogger(cmd))
}

func newApp(ctx context.Context, cmd *cobra.Command, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	validate := cfg.Validate
	if opts.SkipInference {
		validate = cfg.ValidateStore
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, newLogger(cmd), opts)
}
