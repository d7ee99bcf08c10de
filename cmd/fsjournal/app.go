package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/audit"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/checkpoint"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/config"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/journal"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/lifecycle"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
	"github.com/spf13/afero"
)

// app holds the handles shared by the commands.
type app struct {
	cfg        *config.Config
	fs         afero.Fs
	replay     session.ReplayMode
	audit      *audit.Log
	journal    *journal.Journal
	checkpoint *checkpoint.Store // nil unless replay is checkpoint
	log        *logging.Logger
}

// openApp opens the audit log, the journal and, in checkpoint mode, the
// checkpoint store described by c.
func openApp(c *config.Config, fsys afero.Fs) (*app, error) {
	mode, err := session.ParseReplayMode(c.Journal.Replay)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    c,
		fs:     fsys,
		replay: mode,
		log:    logging.Get("cli"),
	}

	a.audit, err = audit.New(fsys, c.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	if err := a.audit.EnsureDir(); err != nil {
		return nil, err
	}

	a.journal, err = journal.New(fsys, c.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if dir := filepath.Dir(c.Journal.Path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	if mode == session.ReplayCheckpoint {
		a.checkpoint, err = checkpoint.Open(c.CheckpointPath())
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close releases the checkpoint store if one is open.
func (a *app) Close() error {
	if a.checkpoint == nil {
		return nil
	}
	err := a.checkpoint.Close()
	a.checkpoint = nil
	return err
}

// newRunner builds a session runner from the configuration.
func (a *app) newRunner(opts ...session.Option) (*session.Runner, error) {
	mgr := lifecycle.New(a.fs, a.audit, lifecycle.WithPrefix(a.cfg.Files.Prefix))

	if a.checkpoint != nil {
		opts = append(opts, session.WithCheckpoint(a.checkpoint))
	}
	return session.New(a.sessionOptions(), mgr, a.journal, a.audit, opts...)
}

// sessionOptions maps the configuration onto session options.
func (a *app) sessionOptions() session.Options {
	return session.Options{
		Dir:     a.cfg.Directory,
		Count:   a.cfg.Files.Count,
		Payload: a.cfg.Files.Payload,
		Replay:  a.replay,
	}
}

// replayOptions returns the journal replay options for the configured mode.
func (a *app) replayOptions() []journal.ReplayOption {
	if a.checkpoint == nil {
		return nil
	}
	return []journal.ReplayOption{journal.WithCheckpoint(a.checkpoint)}
}

// clearCheckpoint removes the stored replay position for the journal. The
// store is opened only if it already exists on disk.
func (a *app) clearCheckpoint() error {
	if a.checkpoint != nil {
		return a.checkpoint.Clear(a.journal.Path())
	}

	path := a.cfg.CheckpointPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking checkpoint store: %w", err)
	}

	store, err := checkpoint.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Clear(a.journal.Path())
}
