package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/inbox"
)

// errNothingAccepted makes the command exit non-zero when a batch accepted
// no rows. The result has already been printed.
var errNothingAccepted = errors.New("no rows accepted")

func newIngestCmd(c *cli) *cobra.Command {
	var (
		kindName string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest one CSV, spreadsheet or JSON file and print the batch result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}

			path := args[0]
			data, err := readInput(path, c.app.Ingest.MaxFileSize())
			if err != nil {
				return err
			}

			res, err := c.app.Ingest.Ingest(cmd.Context(), kind, filepath.Base(path), data, ingest.Options{DryRun: dryRun})
			if err != nil {
				return ingest.NewUserError(err)
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Outcome() == ingest.OutcomeCompleteFailure {
				return fmt.Errorf("batch %s: %w", res.BatchID, errNothingAccepted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "", "Catalog kind: "+kindList()+" (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and report without saving")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var (
		dir      string
		parallel int
		once     bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest files dropped into DIR/<kind>/ until interrupted",
		Long: `Watch creates DIR/<kind>/ for every catalog kind. Each file placed there
is ingested as that kind and moved to Uploaded/ or, when no row was
accepted, Failed/ next to it. Batch results are printed as JSON lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			w, err := inbox.New(dir, c.app.Ingest, inbox.Options{
				Parallel: parallel,
				DryRun:   dryRun,
				OnResult: func(r inbox.Result) {
					line := map[string]any{"kind": r.Kind, "file": r.Path, "failed": r.Failed}
					if r.Batch != nil {
						line["result"] = r.Batch
					}
					if r.Err != nil {
						line["error"] = r.Err.Error()
					}
					_ = printJSONLine(out, line)
				},
			})
			if err != nil {
				return err
			}
			if once {
				return w.Scan(cmd.Context())
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./inbox", "Inbox directory")
	cmd.Flags().IntVar(&parallel, "parallel", inbox.DefaultParallel, "Files ingested at once")
	cmd.Flags().BoolVar(&once, "once", false, "Process waiting files and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and report without saving")
	return cmd
}

// parseKind resolves a catalog kind named on the command line.
func parseKind(name string) (catalog.Kind, error) {
	kind, ok := catalog.ParseKind(name)
	if !ok {
		return "", ingest.NewUserError(fmt.Errorf("%w: %q", ingest.ErrUnknownKind, name))
	}
	return kind, nil
}

// readInput reads at most limit+1 bytes of path, so an oversized file is
// reported by the batch checks without being read whole.
func readInput(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func kindList() string {
	names := make([]string, len(catalog.Kinds))
	for i, k := range catalog.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
