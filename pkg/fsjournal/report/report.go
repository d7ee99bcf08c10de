// Package report renders session results in the formats offered by the
// fsjournal CLI (pretty, plain, json, yaml).
//
// Formatters are held in a registry so the CLI can select one by name:
//
//	formatter, err := report.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package report

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
)

var logger = logging.Get("report")

// ErrNoResult is returned when a formatter is given a nil result.
var ErrNoResult = errors.New("no result to format")

// Formatter is the interface that all report formatters implement.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *session.Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		logger.Debug("unknown formatter requested", "name", name)
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted names of all registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// document is the structured view shared by the json and yaml formatters.
type document struct {
	Run      runMeta              `json:"run" yaml:"run"`
	Recovery recoveryInfo         `json:"recovery" yaml:"recovery"`
	Steps    []session.StepResult `json:"steps" yaml:"steps"`
	Samples  []sampleRow          `json:"samples" yaml:"samples"`
	Created  []fileRow            `json:"created" yaml:"created"`
	Listed   []fileRow            `json:"listed" yaml:"listed"`
	Deleted  []fileRow            `json:"deleted" yaml:"deleted"`
}

type runMeta struct {
	ID              string    `json:"id" yaml:"id"`
	Dir             string    `json:"dir" yaml:"dir"`
	Succeeded       bool      `json:"succeeded" yaml:"succeeded"`
	Started         time.Time `json:"started" yaml:"started"`
	Finished        time.Time `json:"finished" yaml:"finished"`
	Duration        string    `json:"duration,omitempty" yaml:"duration,omitempty"`
	JournalFailures int       `json:"journal_failures" yaml:"journal_failures"`
}

type recoveryInfo struct {
	From     int64  `json:"from" yaml:"from"`
	To       int64  `json:"to" yaml:"to"`
	Replayed int    `json:"replayed" yaml:"replayed"`
	Failed   int    `json:"failed" yaml:"failed"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

type sampleRow struct {
	Label     string    `json:"label" yaml:"label"`
	Bytes     int64     `json:"bytes" yaml:"bytes"`
	SizeHuman string    `json:"size_human" yaml:"size_human"`
	Taken     time.Time `json:"taken" yaml:"taken"`
}

type fileRow struct {
	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path" yaml:"path"`
	Size      int64  `json:"size" yaml:"size"`
	SizeHuman string `json:"size_human" yaml:"size_human"`
}

func buildDocument(r *session.Result) document {
	doc := document{
		Run: runMeta{
			ID:              r.RunID,
			Dir:             r.Dir,
			Succeeded:       r.Succeeded(),
			Started:         r.Started,
			Finished:        r.Finished,
			JournalFailures: r.JournalFailures,
		},
		Recovery: recoveryInfo{
			From:     r.Recovery.From,
			To:       r.Recovery.To,
			Replayed: r.Recovery.Replayed,
			Failed:   r.Recovery.Failed,
			Error:    r.RecoveryErr,
		},
		Steps:   r.Steps,
		Created: fileRows(r.Created),
		Listed:  fileRows(r.Listed),
		Deleted: fileRows(r.Deleted),
	}
	if d := r.Duration(); d > 0 {
		doc.Run.Duration = d.String()
	}
	if doc.Steps == nil {
		doc.Steps = []session.StepResult{}
	}

	doc.Samples = make([]sampleRow, 0, len(r.Samples))
	for _, s := range r.Samples {
		doc.Samples = append(doc.Samples, sampleRow{
			Label:     s.Label,
			Bytes:     s.Bytes,
			SizeHuman: types.FormatSize(s.Bytes),
			Taken:     s.Taken,
		})
	}
	return doc
}

func fileRows(entries []types.FileEntry) []fileRow {
	rows := make([]fileRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, fileRow{
			Name:      e.Name,
			Path:      e.Path,
			Size:      e.Size,
			SizeHuman: e.HumanSize(),
		})
	}
	return rows
}

// status returns "ok" or "failed" for a step.
func status(s session.StepResult) string {
	if s.Completed {
		return "ok"
	}
	return "failed"
}
