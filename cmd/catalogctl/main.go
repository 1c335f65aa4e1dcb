// Command catalogctl ingests catalog files and triages the error ledger
// from the command line.
//
//	catalogctl ingest --kind content items.csv
//	catalogctl watch --dir ./inbox
//	catalogctl ledger unresolved --kind media
//
// Data lives in a badger directory (--data-dir) unless --database-url
// points at PostgreSQL. Settings not given as flags come from the
// environment and an optional .env file, as for the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/application"
	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/logging"
)

type rootOptions struct {
	dataDir     string
	databaseURL string
	logLevel    string
	logFormat   string
}

// cli carries the opened application between the root hooks and the
// subcommands.
type cli struct {
	opts rootOptions
	cfg  *config.Config
	app  *application.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs one command line and closes whatever it opened, including
// after a failed command.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
	}
	return err
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Ingest catalog files and triage rejected rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&c.opts.dataDir, "data-dir", "./data", "Badger data directory")
	f.StringVar(&c.opts.databaseURL, "database-url", "", "PostgreSQL URL; overrides --data-dir")
	f.StringVar(&c.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&c.opts.logFormat, "log-format", "", "Log format: text or json")

	cmd.AddCommand(
		newIngestCmd(c),
		newWatchCmd(c),
		newLedgerCmd(c),
	)
	return cmd
}

// open loads configuration, with flags taking precedence over the
// environment, and opens the application on the chosen store.
func (c *cli) open(cmd *cobra.Command) error {
	_ = godotenv.Load()

	overrides := map[string]string{
		"STORE_BACKEND":    config.BackendBadger,
		"STORE_BADGER_DIR": c.opts.dataDir,
	}
	if c.opts.databaseURL != "" {
		overrides["STORE_BACKEND"] = config.BackendPostgres
		overrides["DATABASE_URL"] = c.opts.databaseURL
	}
	if c.opts.logLevel != "" {
		overrides["LOG_LEVEL"] = c.opts.logLevel
	}
	if c.opts.logFormat != "" {
		overrides["LOG_FORMAT"] = c.opts.logFormat
	}

	cfg, err := config.LoadFrom(func(name string) (string, bool) {
		if v, ok := overrides[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	})
	if err != nil {
		return err
	}
	c.cfg = cfg

	log := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	cmd.SetContext(logging.NewContext(cmd.Context(), log))

	c.app, err = application.Open(cmd.Context(), cfg, log)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
