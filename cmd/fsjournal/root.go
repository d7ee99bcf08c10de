package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/config"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/report"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.NewViper()
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "fsjournal",
		Short: "Run a journaled file lifecycle",
		Long: `fsjournal creates a directory, fills it with files, lists and deletes them,
and removes the directory again. Every step is written to an audit log, and a
journal of completed steps is replayed into the audit log on each start.

Examples:
  fsjournal                        # Run with defaults (testdir, 3 files)
  fsjournal -d scratch -n 10       # Ten files in ./scratch
  fsjournal --replay checkpoint    # Replay only entries not yet replayed
  fsjournal -o json                # Report as JSON
  fsjournal history                # Show the audit log
  fsjournal journal show           # Show journal entries`,
		Args:               cobra.NoArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		RunE:               runRoot,
	}
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/fsjournal/config.yaml)")
	rootCmd.PersistentFlags().String("audit", "", "audit log path")
	rootCmd.PersistentFlags().String("journal", "", "journal path")
	rootCmd.PersistentFlags().String("replay", "", "replay mode: all or checkpoint")
	rootCmd.PersistentFlags().String("checkpoint-path", "", "checkpoint store directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "errors only on stderr")

	rootCmd.Flags().StringP("dir", "d", "", "directory to create and remove")
	rootCmd.Flags().IntP("count", "n", 0, "number of files to create")
	rootCmd.Flags().String("prefix", "", "file name prefix")
	rootCmd.Flags().String("payload", "", "text written into each file")
	rootCmd.Flags().StringP("output", "o", "", "report format: pretty, plain, json, yaml")

	// Bind flags to viper
	_ = v.BindPFlag("audit.path", rootCmd.PersistentFlags().Lookup("audit"))
	_ = v.BindPFlag("journal.path", rootCmd.PersistentFlags().Lookup("journal"))
	_ = v.BindPFlag("journal.replay", rootCmd.PersistentFlags().Lookup("replay"))
	_ = v.BindPFlag("journal.checkpoint_path", rootCmd.PersistentFlags().Lookup("checkpoint-path"))
	_ = v.BindPFlag("directory", rootCmd.Flags().Lookup("dir"))
	_ = v.BindPFlag("files.count", rootCmd.Flags().Lookup("count"))
	_ = v.BindPFlag("files.prefix", rootCmd.Flags().Lookup("prefix"))
	_ = v.BindPFlag("files.payload", rootCmd.Flags().Lookup("payload"))
	_ = v.BindPFlag("output.format", rootCmd.Flags().Lookup("output"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and starts diagnostic logging.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	return logging.Init(loggingConfig(cfg, verbose, quiet))
}

func teardown(cmd *cobra.Command, args []string) error {
	return logging.Close()
}

// loggingConfig maps configuration and verbosity flags onto the logger.
func loggingConfig(c *config.Config, verbose, quiet bool) logging.Config {
	lc := logging.Config{
		Level:        c.Logging.Level,
		Path:         c.Logging.Path,
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.Console,
	}
	switch {
	case quiet:
		lc.ConsoleLevel = "error"
	case verbose:
		lc.ConsoleLevel = "debug"
		lc.Level = "debug"
	}
	return lc
}

// runRoot recovers the journal and performs one run.
func runRoot(cmd *cobra.Command, args []string) error {
	formatter, err := report.Get(cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, report.Available())
	}

	a, err := openApp(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := a.run(ctx)
	if res == nil {
		return runErr
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}
	return runErr
}

// run performs the recovery pass followed by the lifecycle sequence.
func (a *app) run(ctx context.Context, opts ...session.Option) (*session.Result, error) {
	runner, err := a.newRunner(opts...)
	if err != nil {
		return nil, err
	}
	runner.Recover()
	return runner.Run(ctx)
}
