package main

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/checkpoint"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/journal"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and maintain the operation journal",
	Long: `Inspect and maintain the operation journal.

The journal holds one line per completed lifecycle step. Every start replays
it into the audit log; with --replay checkpoint only entries past the stored
checkpoint are replayed.`,
}

var journalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List journal entries",
	Args:  cobra.NoArgs,
	RunE:  runJournalShow,
}

var journalReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the journal into the audit log",
	Long: `Replay the journal into the audit log without performing a run.

In the default mode every entry is replayed again, so the audit log gains a
duplicate record for each entry on every replay.`,
	Args: cobra.NoArgs,
	RunE: runJournalReplay,
}

var journalResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Truncate the journal and clear its checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runJournalReset,
}

var journalCheckpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Show stored replay checkpoints",
	Args:  cobra.NoArgs,
	RunE:  runJournalCheckpoint,
}

func init() {
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalReplayCmd)
	journalCmd.AddCommand(journalResetCmd)
	journalCmd.AddCommand(journalCheckpointCmd)
	rootCmd.AddCommand(journalCmd)
}

// runJournalShow prints every journal entry with its byte offset.
func runJournalShow(cmd *cobra.Command, args []string) error {
	jr, err := journal.New(afero.NewOsFs(), cfg.Journal.Path)
	if err != nil {
		return err
	}
	return printJournal(cmd.OutOrStdout(), jr)
}

// printJournal writes the entries of jr as an OFFSET/DESCRIPTION table.
func printJournal(w io.Writer, jr *journal.Journal) error {
	size, err := jr.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		fmt.Fprintf(w, "Journal %s is empty.\n", jr.Path())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tDESCRIPTION")

	count := 0
	for entry, err := range jr.Entries() {
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		fmt.Fprintf(tw, "%d\t%s\n", entry.Offset, entry.Description)
		count++
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d entries, %d bytes\n", count, size)
	return nil
}

// runJournalReplay performs one replay pass in the configured mode.
func runJournalReplay(cmd *cobra.Command, args []string) error {
	a, err := openApp(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.journal.Replay(a.audit, a.replayOptions()...)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replayed %d entries (bytes %d to %d) into %s\n", res.Replayed, res.From, res.To, a.audit.Path())
	if res.Failed > 0 {
		return fmt.Errorf("%d entries could not be recorded", res.Failed)
	}
	return nil
}

// runJournalReset truncates the journal and clears its checkpoint.
func runJournalReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.journal.Reset(); err != nil {
		return err
	}
	if err := a.clearCheckpoint(); err != nil {
		return fmt.Errorf("journal reset but checkpoint not cleared: %w", err)
	}

	a.log.Info("journal reset", "path", a.journal.Path())
	fmt.Fprintf(cmd.OutOrStdout(), "Journal %s reset.\n", a.journal.Path())
	return nil
}

// runJournalCheckpoint lists the replay positions in the checkpoint store.
func runJournalCheckpoint(cmd *cobra.Command, args []string) error {
	store, err := checkpoint.Open(cfg.CheckpointPath())
	if err != nil {
		return err
	}
	defer store.Close()

	positions, err := store.List()
	if err != nil {
		return err
	}
	return printCheckpoints(cmd.OutOrStdout(), positions, cfg.Journal.Path)
}

// printCheckpoints writes stored positions, marking the configured journal.
func printCheckpoints(w io.Writer, positions map[string]int64, current string) error {
	if len(positions) == 0 {
		fmt.Fprintln(w, "No checkpoints stored.")
		return nil
	}

	currentAbs, err := filepath.Abs(current)
	if err != nil {
		currentAbs = current
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tJOURNAL\t")
	for _, path := range slices.Sorted(maps.Keys(positions)) {
		marker := ""
		if path == currentAbs {
			marker = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", positions[path], path, marker)
	}
	return tw.Flush()
}
