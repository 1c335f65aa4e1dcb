package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/ledger"
)

func newLedgerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query and resolve rejected rows",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			if c.app.Ledger == nil {
				return fmt.Errorf("the error ledger is disabled (INGEST_LEDGER_ENABLED=false)")
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "batch BATCH_ID",
			Short: "List a batch's rejected rows in row order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				es, err := c.app.Ledger.ListByBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries(es))
			},
		},
		newUnresolvedCmd(c),
		newRecentCmd(c),
		&cobra.Command{
			Use:   "counts KIND",
			Short: "Show total and unresolved entry counts for a kind",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind, err := parseKind(args[0])
				if err != nil {
					return err
				}
				counts, err := c.app.Ledger.CountsByKind(cmd.Context(), string(kind))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"kind":       kind,
					"total":      counts.Total,
					"unresolved": counts.Unresolved,
				})
			},
		},
		newResolveCmd(c),
	)
	return cmd
}

func newUnresolvedCmd(c *cli) *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "unresolved",
		Short: "List unresolved entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind string
			if kindName != "" {
				k, err := parseKind(kindName)
				if err != nil {
					return err
				}
				kind = string(k)
			}
			es, err := c.app.Ledger.ListUnresolved(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries(es))
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "", "Only this kind")
	return cmd
}

func newRecentCmd(c *cli) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List entries recorded within a time window, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			es, err := c.app.Ledger.ListRecent(cmd.Context(), window)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries(es))
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "Look-back window (default INGEST_RECENT_WINDOW, 168h)")
	return cmd
}

func newResolveCmd(c *cli) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "resolve ENTRY_ID",
		Short: "Mark an entry resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.app.Ledger.Resolve(cmd.Context(), args[0], notes)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")
	return cmd
}

func entries(es []ledger.Entry) map[string]any {
	if es == nil {
		es = []ledger.Entry{}
	}
	return map[string]any{"count": len(es), "entries": es}
}

func printJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
