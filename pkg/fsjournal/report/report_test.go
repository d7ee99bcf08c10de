package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/journal"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var started = time.Date(2026, 3, 4, 9, 5, 7, 0, time.UTC)

func completedResult() *session.Result {
	files := []types.FileEntry{
		{Name: "file1.txt", Path: "testdir/file1.txt", Size: 39},
		{Name: "file2.txt", Path: "testdir/file2.txt", Size: 39},
		{Name: "file3.txt", Path: "testdir/file3.txt", Size: 39},
	}
	return &session.Result{
		RunID:    "5b0c7a4e-1f5e-4c1b-9a55-0e7b8f3d2a11",
		Dir:      "testdir",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Recovery: journal.ReplayResult{From: 0, To: 72, Replayed: 5},
		Steps: []session.StepResult{
			{Name: session.StepCreateDirectory, Completed: true},
			{Name: session.StepCreateFiles, Completed: true},
			{Name: session.StepListFiles, Completed: true},
			{Name: session.StepDeleteFiles, Completed: true},
			{Name: session.StepDeleteDirectory, Completed: true},
		},
		Created: files,
		Listed:  files,
		Deleted: files,
		Samples: []types.SizeSample{
			{Label: session.SampleAfterCreate, Dir: "testdir", Bytes: 117, Taken: started},
			{Label: session.SampleAfterDelete, Dir: "testdir", Bytes: 0, Taken: started},
		},
	}
}

func failedResult() *session.Result {
	return &session.Result{
		RunID:       "run-2",
		Dir:         "testdir",
		Started:     started,
		Finished:    started,
		RecoveryErr: "journal I/O failed: opening journal.txt: file does not exist",
		Steps: []session.StepResult{
			{Name: session.StepCreateDirectory, Error: "CreateDirectory testdir: directory create failed: file exists"},
		},
		JournalFailures: 0,
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register("plain", func() Formatter { return &PlainFormatter{} })

	f, err := registry.Get("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)

	_, err = registry.Get("xml")
	assert.ErrorContains(t, err, "unknown formatter: xml")

	assert.Equal(t, []string{"plain"}, registry.Available())
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	for _, name := range Available() {
		t.Run(name, func(t *testing.T) {
			f, err := Get(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			assert.ErrorIs(t, f.Format(&buf, nil), ErrNoResult)

			require.NoError(t, f.Format(&buf, completedResult()))
			assert.NotEmpty(t, buf.String())

			buf.Reset()
			require.NoError(t, f.Format(&buf, failedResult()))
			assert.NotEmpty(t, buf.String())
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, completedResult()))

	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "testdir", doc.Run.Dir)
	assert.True(t, doc.Run.Succeeded)
	assert.Equal(t, "1.5s", doc.Run.Duration)
	assert.Equal(t, 5, doc.Recovery.Replayed)
	assert.Equal(t, int64(72), doc.Recovery.To)
	require.Len(t, doc.Samples, 2)
	assert.Equal(t, int64(117), doc.Samples[0].Bytes)
	assert.Equal(t, "117 B", doc.Samples[0].SizeHuman)
	assert.Len(t, doc.Listed, 3)
	assert.Equal(t, "39 B", doc.Listed[0].SizeHuman)
}

func TestJSONFormatter_Failed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, failedResult()))

	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.False(t, doc.Run.Succeeded)
	assert.Empty(t, doc.Run.Duration)
	assert.Contains(t, doc.Recovery.Error, "file does not exist")
	require.Len(t, doc.Steps, 1)
	assert.False(t, doc.Steps[0].Completed)

	// Empty collections encode as arrays, not null.
	assert.Contains(t, buf.String(), `"listed": []`)
	assert.Contains(t, buf.String(), `"samples": []`)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, completedResult()))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "5b0c7a4e-1f5e-4c1b-9a55-0e7b8f3d2a11", doc.Run.ID)
	assert.Len(t, doc.Steps, 5)
	assert.Len(t, doc.Deleted, 3)
	assert.Contains(t, buf.String(), "size_human: 39 B")
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, completedResult()))
	out := buf.String()

	assert.Contains(t, out, "RUN      5b0c7a4e")
	assert.Contains(t, out, "REPLAYED 5")
	assert.Contains(t, out, "create directory ok")
	assert.Contains(t, out, "after create 117")
	assert.Contains(t, out, "39   testdir/file1.txt")
	assert.NotContains(t, out, "\x1b[")
	assert.NotContains(t, out, "JOURNAL FAILURES")
	assert.NotContains(t, out, "REPLAY ERROR")
}

func TestPlainFormatter_Failed(t *testing.T) {
	var buf bytes.Buffer
	r := failedResult()
	r.JournalFailures = 2
	require.NoError(t, (&PlainFormatter{}).Format(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "directory create failed: file exists")
	assert.Contains(t, out, "JOURNAL FAILURES")
	assert.Contains(t, out, "REPLAY ERROR     journal I/O failed: opening journal.txt: file does not exist")
	assert.NotContains(t, out, "SAMPLE")
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, completedResult()))
	out := buf.String()

	assert.Contains(t, out, "testdir")
	assert.Contains(t, out, "5 entries replayed")
	assert.Contains(t, out, "create directory")
	assert.Contains(t, out, "117 B")
	assert.Contains(t, out, "testdir/file2.txt")
	assert.Contains(t, out, "All operations completed")
}

func TestPrettyFormatter_Failed(t *testing.T) {
	var buf bytes.Buffer
	r := failedResult()
	r.JournalFailures = 1
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "Run failed")
	assert.Contains(t, out, "directory create failed")
	assert.Contains(t, out, "0 entries replayed (journal I/O failed: opening journal.txt: file does not exist)")
	assert.Contains(t, out, "1 journal write failed")
	assert.NotContains(t, out, "Space used")
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "entry", plural(1, "entry", "entries"))
	assert.Equal(t, "entries", plural(0, "entry", "entries"))
	assert.Equal(t, "entries", plural(2, "entry", "entries"))
}
