package journal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/audit"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecorder collects descriptions and optionally fails selected ones.
type fakeRecorder struct {
	got    []string
	failOn map[string]bool
}

func (r *fakeRecorder) Record(description string) error {
	if r.failOn[description] {
		return errors.New("recorder unavailable")
	}
	r.got = append(r.got, description)
	return nil
}

// memCheckpoint is an in-memory Checkpointer.
type memCheckpoint struct {
	offsets map[string]int64
	commits int
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{offsets: make(map[string]int64)}
}

func (m *memCheckpoint) Get(journal string) (int64, bool, error) {
	off, ok := m.offsets[journal]
	return off, ok, nil
}

func (m *memCheckpoint) Commit(journal string, offset int64) error {
	m.commits++
	if offset > m.offsets[journal] {
		m.offsets[journal] = offset
	}
	return nil
}

func (m *memCheckpoint) Clear(journal string) error {
	delete(m.offsets, journal)
	return nil
}

func writeIntents(t *testing.T, j *Journal, descriptions ...string) {
	t.Helper()
	for _, d := range descriptions {
		require.NoError(t, j.RecordIntent(d))
	}
}

func TestReplay_ForwardsEveryEntryInOrder(t *testing.T) {
	j, _ := setupTestJournal(t)
	writeIntents(t, j, "directory created", "files created", "files listed")

	rec := &fakeRecorder{}
	res, err := j.Replay(rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"directory created", "files created", "files listed"}, rec.got)
	assert.Equal(t, 3, res.Replayed)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.From)
	size, err := j.Size()
	require.NoError(t, err)
	assert.Equal(t, size, res.To)
}

func TestReplay_MissingJournalIsNoop(t *testing.T) {
	j, _ := setupTestJournal(t)

	rec := &fakeRecorder{}
	res, err := j.Replay(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJournalIO)
	assert.Empty(t, rec.got)
	assert.Zero(t, res.Replayed)
}

func TestReplay_RecorderFailureContinues(t *testing.T) {
	j, _ := setupTestJournal(t)
	writeIntents(t, j, "a", "b", "c")

	rec := &fakeRecorder{failOn: map[string]bool{"b": true}}
	res, err := j.Replay(rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, rec.got)
	assert.Equal(t, 2, res.Replayed)
	assert.Equal(t, 1, res.Failed)
}

// Replay has no completion tracking: replaying twice doubles the audit
// records for the same operation set.
func TestReplay_IsNotIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	j, err := New(fsys, "/journal.txt")
	require.NoError(t, err)
	writeIntents(t, j, "directory created", "files created", "files listed", "files deleted", "directory deleted")

	log, err := audit.New(fsys, "/operation_log.txt", audit.WithClock(func() time.Time {
		return time.Date(2026, time.October, 14, 12, 0, 0, 0, time.Local)
	}))
	require.NoError(t, err)

	_, err = j.Replay(log)
	require.NoError(t, err)
	once, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, once, 5)

	_, err = j.Replay(log)
	require.NoError(t, err)
	twice, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, twice, 10)

	for i := range once {
		assert.Equal(t, once[i].Description, twice[i+5].Description)
	}

	data, err := afero.ReadFile(fsys, "/operation_log.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), ": directory created\n"))
}

func TestReplay_WithCheckpoint(t *testing.T) {
	t.Parallel()

	t.Run("second pass replays nothing", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "a", "b")
		cp := newMemCheckpoint()

		rec := &fakeRecorder{}
		res, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Equal(t, 2, res.Replayed)

		res, err = j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Zero(t, res.Replayed)
		assert.Equal(t, []string{"a", "b"}, rec.got)
		assert.Equal(t, int64(4), res.From)
	})

	t.Run("resumes with new entries only", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "a")
		cp := newMemCheckpoint()

		rec := &fakeRecorder{}
		_, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)

		writeIntents(t, j, "b", "c")
		_, err = j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, rec.got)
	})

	t.Run("stops committing after a failure", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "a", "b", "c")
		cp := newMemCheckpoint()

		rec := &fakeRecorder{failOn: map[string]bool{"b": true}}
		_, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Equal(t, int64(2), cp.offsets[j.Path()])

		// The failed entry and everything after it is offered again.
		retry := &fakeRecorder{}
		_, err = j.Replay(retry, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, retry.got)
	})

	t.Run("restarts after an external reset", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "long description one", "long description two")
		cp := newMemCheckpoint()

		_, err := j.Replay(&fakeRecorder{}, WithCheckpoint(cp))
		require.NoError(t, err)

		require.NoError(t, j.Reset())
		writeIntents(t, j, "x")

		rec := &fakeRecorder{}
		res, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Zero(t, res.From)
		assert.Equal(t, []string{"x"}, rec.got)
		assert.Equal(t, int64(2), cp.offsets[j.Path()])
	})

	t.Run("restarts when rewritten past the old offset", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "directory created")
		cp := newMemCheckpoint()

		_, err := j.Replay(&fakeRecorder{}, WithCheckpoint(cp))
		require.NoError(t, err)
		require.Equal(t, int64(18), cp.offsets[j.Path()])

		// The new content is longer than the old offset, which now falls
		// inside "files listed".
		require.NoError(t, j.Reset())
		writeIntents(t, j, "files created", "files listed")

		rec := &fakeRecorder{}
		res, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Zero(t, res.From)
		assert.Equal(t, []string{"files created", "files listed"}, rec.got)
		assert.Equal(t, int64(27), cp.offsets[j.Path()])
	})

	t.Run("keeps a checkpoint that ends a line", func(t *testing.T) {
		t.Parallel()
		j, _ := setupTestJournal(t)
		writeIntents(t, j, "a", "b")
		cp := newMemCheckpoint()

		_, err := j.Replay(&fakeRecorder{}, WithCheckpoint(cp))
		require.NoError(t, err)

		writeIntents(t, j, "c")
		rec := &fakeRecorder{}
		res, err := j.Replay(rec, WithCheckpoint(cp))
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.From)
		assert.Equal(t, []string{"c"}, rec.got)
	})
}
