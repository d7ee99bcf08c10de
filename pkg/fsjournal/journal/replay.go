package journal

import (
	"fmt"
)

// Recorder receives replayed descriptions. *audit.Log satisfies it.
type Recorder interface {
	Record(description string) error
}

// Checkpointer persists how far the journal has been replayed.
// *checkpoint.Store satisfies it.
type Checkpointer interface {
	Get(journal string) (int64, bool, error)
	Commit(journal string, offset int64) error
	Clear(journal string) error
}

// ReplayResult summarises one replay pass.
type ReplayResult struct {
	// From is the byte offset the pass started at.
	From int64

	// To is the byte offset just past the last entry read.
	To int64

	// Replayed counts entries forwarded to the recorder successfully.
	Replayed int

	// Failed counts entries the recorder rejected.
	Failed int
}

// ReplayOption configures a replay pass.
type ReplayOption func(*replayConfig)

type replayConfig struct {
	checkpoint Checkpointer
}

// WithCheckpoint makes Replay resume from the offset stored in cp and commit
// progress back to it after each forwarded entry. Once an entry fails to be
// recorded no further progress is committed, so it is retried next time.
func WithCheckpoint(cp Checkpointer) ReplayOption {
	return func(c *replayConfig) {
		c.checkpoint = cp
	}
}

// Replay forwards every stored description to rec in order, as each line is
// read. When the journal cannot be opened the error is returned and nothing
// is forwarded. Recorder failures do not stop the pass; they are counted in
// Failed.
func (j *Journal) Replay(rec Recorder, opts ...ReplayOption) (ReplayResult, error) {
	var cfg replayConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var res ReplayResult
	if cfg.checkpoint != nil {
		from, err := j.resumeOffset(cfg.checkpoint)
		if err != nil {
			return res, err
		}
		res.From = from
	}
	res.To = res.From

	committing := cfg.checkpoint != nil
	for entry, err := range j.EntriesFrom(res.From) {
		if err != nil {
			return res, err
		}
		res.To = entry.Next

		if err := rec.Record(entry.Description); err != nil {
			res.Failed++
			committing = false
			continue
		}
		res.Replayed++

		if committing {
			if err := cfg.checkpoint.Commit(j.path, entry.Next); err != nil {
				return res, fmt.Errorf("%w: committing checkpoint: %w", ErrJournalIO, err)
			}
		}
	}

	return res, nil
}

// resumeOffset returns the stored offset, or 0 when none is stored. A stored
// offset past the end of the journal, or one that does not follow a newline,
// means the journal was rewritten externally; the checkpoint is cleared and
// replay restarts from the beginning.
func (j *Journal) resumeOffset(cp Checkpointer) (int64, error) {
	offset, ok, err := cp.Get(j.path)
	if err != nil {
		return 0, fmt.Errorf("%w: loading checkpoint: %w", ErrJournalIO, err)
	}
	if !ok {
		return 0, nil
	}

	size, err := j.Size()
	if err != nil {
		return 0, err
	}
	atBoundary := size >= offset
	if atBoundary && offset > 0 {
		atBoundary, err = j.followsNewline(offset)
		if err != nil {
			return 0, err
		}
	}
	if !atBoundary {
		if err := cp.Clear(j.path); err != nil {
			return 0, fmt.Errorf("%w: clearing checkpoint: %w", ErrJournalIO, err)
		}
		return 0, nil
	}
	return offset, nil
}
