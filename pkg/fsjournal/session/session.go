// Package session drives one fsjournal run: a recovery pass that replays the
// journal into the audit log, followed by the fixed lifecycle sequence with a
// journal entry after each completed step.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/journal"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/space"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
	"github.com/spf13/afero"
)

// Journal intents recorded after each completed step.
const (
	IntentDirectoryCreated = "directory created"
	IntentFilesCreated     = "files created"
	IntentFilesListed      = "files listed"
	IntentFilesDeleted     = "files deleted"
	IntentDirectoryDeleted = "directory deleted"
)

// Labels of the two size samples taken during a run.
const (
	SampleAfterCreate = "after create"
	SampleAfterDelete = "after delete"
)

// Step names as they appear in Result.Steps.
const (
	StepCreateDirectory = "create directory"
	StepCreateFiles     = "create files"
	StepListFiles       = "list files"
	StepDeleteFiles     = "delete files"
	StepDeleteDirectory = "delete directory"

	stepCount = 5
)

// ReplayMode selects how the recovery pass treats previously replayed entries.
type ReplayMode string

const (
	// ReplayAll forwards every journal entry on every recovery pass.
	ReplayAll ReplayMode = "all"

	// ReplayCheckpoint forwards only entries past the stored checkpoint.
	ReplayCheckpoint ReplayMode = "checkpoint"
)

// ErrInvalidReplayMode is returned by ParseReplayMode for unknown modes.
var ErrInvalidReplayMode = errors.New("invalid replay mode")

// ParseReplayMode parses a replay mode name. Empty means ReplayAll.
func ParseReplayMode(s string) (ReplayMode, error) {
	switch ReplayMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReplayAll, "":
		return ReplayAll, nil
	case ReplayCheckpoint:
		return ReplayCheckpoint, nil
	default:
		return ReplayAll, fmt.Errorf("%w: %q", ErrInvalidReplayMode, s)
	}
}

// Options describes what a run operates on.
type Options struct {
	Dir     string
	Count   int
	Payload string
	Replay  ReplayMode
}

// Lifecycle is the set of operations a run performs. *lifecycle.Manager
// satisfies it.
type Lifecycle interface {
	Fs() afero.Fs
	CreateDirectory(name string) error
	CreateFiles(dir string, count int, payload string) ([]types.FileEntry, error)
	ListFiles(dir string) ([]types.FileEntry, error)
	DeleteFiles(dir string) ([]types.FileEntry, error)
	DeleteDirectory(dir string) error
}

// Journal records intents and replays them. *journal.Journal satisfies it.
type Journal interface {
	RecordIntent(description string) error
	Replay(rec journal.Recorder, opts ...journal.ReplayOption) (journal.ReplayResult, error)
}

// StepResult reports the outcome of one lifecycle step.
type StepResult struct {
	Name      string `json:"name" yaml:"name"`
	Completed bool   `json:"completed" yaml:"completed"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result describes a run, complete or not.
type Result struct {
	RunID    string    `json:"run_id" yaml:"run_id"`
	Dir      string    `json:"dir" yaml:"dir"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`

	Recovery    journal.ReplayResult `json:"recovery" yaml:"recovery"`
	RecoveryErr string               `json:"recovery_error,omitempty" yaml:"recovery_error,omitempty"`

	Steps   []StepResult       `json:"steps" yaml:"steps"`
	Created []types.FileEntry  `json:"created" yaml:"created"`
	Listed  []types.FileEntry  `json:"listed" yaml:"listed"`
	Deleted []types.FileEntry  `json:"deleted" yaml:"deleted"`
	Samples []types.SizeSample `json:"samples" yaml:"samples"`

	// JournalFailures counts intents that could not be journaled.
	JournalFailures int `json:"journal_failures" yaml:"journal_failures"`
}

// Succeeded reports whether every step completed.
func (r *Result) Succeeded() bool {
	if len(r.Steps) != stepCount {
		return false
	}
	for _, s := range r.Steps {
		if !s.Completed {
			return false
		}
	}
	return true
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Runner executes runs. It is not safe for concurrent use.
type Runner struct {
	opts       Options
	lifecycle  Lifecycle
	journal    Journal
	audit      journal.Recorder
	checkpoint journal.Checkpointer
	now        func() time.Time
	newID      func() string
	log        *logging.Logger

	recovery    journal.ReplayResult
	recoveryErr error
}

// Option configures a Runner.
type Option func(*Runner)

// WithCheckpoint sets the store used in ReplayCheckpoint mode.
func WithCheckpoint(cp journal.Checkpointer) Option {
	return func(r *Runner) {
		r.checkpoint = cp
	}
}

// WithClock sets the time source for timestamps and samples.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.newID = func() string { return id }
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Runner. rec receives replayed journal entries during
// Recover; it is normally the same audit log the lifecycle writes to.
func New(opts Options, lc Lifecycle, jr Journal, rec journal.Recorder, options ...Option) (*Runner, error) {
	if lc == nil || jr == nil || rec == nil {
		return nil, errors.New("session: lifecycle, journal and recorder are required")
	}
	if opts.Dir == "" {
		return nil, errors.New("session: directory is required")
	}
	if opts.Count < 0 {
		return nil, fmt.Errorf("session: file count must not be negative, got %d", opts.Count)
	}
	if opts.Replay == "" {
		opts.Replay = ReplayAll
	}

	r := &Runner{
		opts:      opts,
		lifecycle: lc,
		journal:   jr,
		audit:     rec,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logging.Get("session"),
	}
	for _, o := range options {
		o(r)
	}

	if opts.Replay == ReplayCheckpoint && r.checkpoint == nil {
		return nil, errors.New("session: checkpoint replay mode needs a checkpoint store")
	}
	return r, nil
}

// Recover replays the journal into the audit log. Failures are logged and
// kept for the next Result; they never prevent a run.
func (r *Runner) Recover() journal.ReplayResult {
	var opts []journal.ReplayOption
	if r.opts.Replay == ReplayCheckpoint {
		opts = append(opts, journal.WithCheckpoint(r.checkpoint))
	}

	res, err := r.journal.Replay(r.audit, opts...)
	r.recovery, r.recoveryErr = res, err

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Info("no journal to replay", "error", err)
		} else {
			r.log.Warn("journal replay failed", "error", err)
		}
		return res
	}
	if res.Failed > 0 {
		r.log.Warn("some journal entries could not be replayed", "failed", res.Failed, "replayed", res.Replayed)
	}
	r.log.Info("journal replayed", "mode", string(r.opts.Replay), "from", res.From, "to", res.To, "entries", res.Replayed)
	return res
}

// Run performs the lifecycle sequence. The first failing step stops the run;
// its error is returned together with the partial Result. ctx is checked
// before each step and never interrupts a step in progress.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:    r.newID(),
		Dir:      r.opts.Dir,
		Started:  r.now(),
		Recovery: r.recovery,
	}
	if r.recoveryErr != nil {
		res.RecoveryErr = r.recoveryErr.Error()
	}

	log := r.log.With("run", res.RunID)
	log.Info("run started", "dir", r.opts.Dir, "count", r.opts.Count)

	steps := []struct {
		name   string
		intent string
		run    func() error
		after  func()
	}{
		{
			name:   StepCreateDirectory,
			intent: IntentDirectoryCreated,
			run:    func() error { return r.lifecycle.CreateDirectory(r.opts.Dir) },
		},
		{
			name:   StepCreateFiles,
			intent: IntentFilesCreated,
			run: func() error {
				var err error
				res.Created, err = r.lifecycle.CreateFiles(r.opts.Dir, r.opts.Count, r.opts.Payload)
				return err
			},
			after: func() { r.sample(res, log, SampleAfterCreate) },
		},
		{
			name:   StepListFiles,
			intent: IntentFilesListed,
			run: func() error {
				var err error
				res.Listed, err = r.lifecycle.ListFiles(r.opts.Dir)
				return err
			},
		},
		{
			name:   StepDeleteFiles,
			intent: IntentFilesDeleted,
			run: func() error {
				var err error
				res.Deleted, err = r.lifecycle.DeleteFiles(r.opts.Dir)
				return err
			},
			after: func() { r.sample(res, log, SampleAfterDelete) },
		},
		{
			name:   StepDeleteDirectory,
			intent: IntentDirectoryDeleted,
			run:    func() error { return r.lifecycle.DeleteDirectory(r.opts.Dir) },
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			res.Finished = r.now()
			log.Warn("run cancelled", "before", step.name, "error", err)
			return res, fmt.Errorf("run cancelled before %s: %w", step.name, err)
		}

		if err := step.run(); err != nil {
			res.Steps = append(res.Steps, StepResult{Name: step.name, Error: err.Error()})
			res.Finished = r.now()
			log.Error("step failed", "step", step.name, "error", err)
			return res, fmt.Errorf("%s: %w", step.name, err)
		}
		res.Steps = append(res.Steps, StepResult{Name: step.name, Completed: true})

		if err := r.journal.RecordIntent(step.intent); err != nil {
			res.JournalFailures++
			log.Warn("journal write failed", "intent", step.intent, "error", err)
		}

		if step.after != nil {
			step.after()
		}
	}

	res.Finished = r.now()
	log.Info("run completed", "duration", res.Duration())
	return res, nil
}

// sample measures the run directory and appends the sample to res. A failed
// measurement is logged and leaves no sample.
func (r *Runner) sample(res *Result, log *logging.Logger, label string) {
	s, err := space.Sample(r.lifecycle.Fs(), r.opts.Dir, label)
	if err != nil {
		log.Warn("space measurement failed", "label", label, "error", err)
		return
	}
	s.Taken = r.now()
	res.Samples = append(res.Samples, s)
	log.Info("space used", "label", label, "bytes", s.Bytes)
}
