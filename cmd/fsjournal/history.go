package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/audit"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit log",
	Long: `Show the most recent audit log records.

With --follow, keep running and print records as they are appended,
for example by a run in another terminal.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimit  int
	historyFollow bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of records to show (0 = all)")
	historyCmd.Flags().BoolVarP(&historyFollow, "follow", "f", false, "print new records as they are appended")
	rootCmd.AddCommand(historyCmd)
}

// runHistory prints recent audit records and optionally follows the log.
func runHistory(cmd *cobra.Command, args []string) error {
	log, err := audit.New(afero.NewOsFs(), cfg.Audit.Path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printHistory(out, log, historyLimit, historyFollow); err != nil {
		return err
	}
	if !historyFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followHistory(ctx, out, log)
}

// printHistory writes the last limit records of log to w. The empty-log
// hint is skipped when following.
func printHistory(w io.Writer, log *audit.Log, limit int, follow bool) error {
	records, err := log.Tail(limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(records) == 0 && !follow {
		fmt.Fprintf(w, "No audit records in %s.\n", log.Path())
		fmt.Fprintln(w, "Run 'fsjournal' to perform a lifecycle run.")
		return nil
	}

	for _, rec := range records {
		fmt.Fprintln(w, rec.String())
	}
	return nil
}

// followHistory prints records appended to log until ctx is done.
func followHistory(ctx context.Context, w io.Writer, log *audit.Log) error {
	records := make(chan audit.Record)
	errc := make(chan error, 1)
	go func() {
		errc <- log.Follow(ctx, records)
		close(records)
	}()

	for rec := range records {
		fmt.Fprintln(w, rec.String())
	}

	if err := <-errc; err != nil && ctx.Err() == nil {
		return fmt.Errorf("following audit log: %w", err)
	}
	return nil
}
