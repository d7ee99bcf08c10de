package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Directory != DefaultDirectory {
		t.Errorf("Directory = %q, want %q", cfg.Directory, DefaultDirectory)
	}
	if cfg.Files.Prefix != DefaultFilePrefix {
		t.Errorf("Files.Prefix = %q, want %q", cfg.Files.Prefix, DefaultFilePrefix)
	}
	if cfg.Files.Count != DefaultFileCount {
		t.Errorf("Files.Count = %d, want %d", cfg.Files.Count, DefaultFileCount)
	}
	if cfg.Files.Payload != DefaultPayload {
		t.Errorf("Files.Payload = %q, want %q", cfg.Files.Payload, DefaultPayload)
	}
	if cfg.Audit.Path != DefaultAuditPath {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, DefaultAuditPath)
	}
	if cfg.Journal.Path != DefaultJournalPath {
		t.Errorf("Journal.Path = %q, want %q", cfg.Journal.Path, DefaultJournalPath)
	}
	if cfg.Journal.Replay != ReplayAll {
		t.Errorf("Journal.Replay = %q, want %q", cfg.Journal.Replay, ReplayAll)
	}
	if cfg.Output.Format != DefaultOutputFormat {
		t.Errorf("Output.Format = %q, want %q", cfg.Output.Format, DefaultOutputFormat)
	}
	if cfg.Logging.Console != DefaultConsoleLevel {
		t.Errorf("Logging.Console = %q, want %q", cfg.Logging.Console, DefaultConsoleLevel)
	}
	if cfg.CheckpointPath() != DefaultCheckpointPath() {
		t.Errorf("CheckpointPath() = %q, want %q", cfg.CheckpointPath(), DefaultCheckpointPath())
	}
}

func TestLoad_FromHomeConfig(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "fsjournal"), `
directory: scratch
files:
  prefix: data
  count: 5
  payload: t
audit:
  path: ~/logs/audit.txt
journal:
  path: /var/tmp/journal.txt
  replay: checkpoint
  checkpoint_path: /var/tmp/checkpoint
output:
  format: json
logging:
  level: debug
  components:
    journal: warn
`)

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Directory != "scratch" {
		t.Errorf("Directory = %q, want scratch", cfg.Directory)
	}
	if cfg.Files.Prefix != "data" || cfg.Files.Count != 5 || cfg.Files.Payload != "t" {
		t.Errorf("Files = %+v", cfg.Files)
	}
	if want := filepath.Join(home, "logs", "audit.txt"); cfg.Audit.Path != want {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, want)
	}
	if cfg.Journal.Replay != ReplayCheckpoint {
		t.Errorf("Journal.Replay = %q, want %q", cfg.Journal.Replay, ReplayCheckpoint)
	}
	if cfg.CheckpointPath() != "/var/tmp/checkpoint" {
		t.Errorf("CheckpointPath() = %q", cfg.CheckpointPath())
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %q, want json", cfg.Output.Format)
	}
	if cfg.Logging.Components["journal"] != "warn" {
		t.Errorf("Logging.Components = %v", cfg.Logging.Components)
	}
}

func TestLoad_XDGConfigHomeTakesPrecedence(t *testing.T) {
	home := isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)

	writeConfig(t, filepath.Join(home, ".config", "fsjournal"), "directory: from-home\n")
	writeConfig(t, filepath.Join(xdgHome, "fsjournal"), "directory: from-xdg\n")

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Directory != "from-xdg" {
		t.Errorf("Directory = %q, want from-xdg", cfg.Directory)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "files:\n  count: 1\n")

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Files.Count != 1 {
		t.Errorf("Files.Count = %d, want 1", cfg.Files.Count)
	}
	// Unset keys keep their defaults.
	if cfg.Directory != DefaultDirectory {
		t.Errorf("Directory = %q, want %q", cfg.Directory, DefaultDirectory)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing explicit file")
	}
}

func TestLoad_IgnoresEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("FSJOURNAL_DIRECTORY", "from-env")
	t.Setenv("DIRECTORY", "from-env")

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Directory != DefaultDirectory {
		t.Errorf("Directory = %q, want %q", cfg.Directory, DefaultDirectory)
	}
}

func TestLoad_OverridesTakePrecedence(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "fsjournal"), "directory: from-file\n")

	v := NewViper()
	v.Set("directory", "from-flag")

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Directory != "from-flag" {
		t.Errorf("Directory = %q, want from-flag", cfg.Directory)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative count", "files:\n  count: -2\n", "files.count"},
		{"empty directory", "directory: \"\"\n", "directory"},
		{"bad replay mode", "journal:\n  replay: sometimes\n", "journal.replay"},
		{"prefix with separator", "files:\n  prefix: a/b\n", "files.prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := writeConfig(t, t.TempDir(), tt.content)

			_, err := Load(NewViper(), path)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	home := isolate(t)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if want := filepath.Join(home, ".config", "fsjournal", "config.yaml"); path != want {
		t.Errorf("WriteDefault() path = %q, want %q", path, want)
	}

	// The written file loads back to the defaults.
	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Files.Payload != DefaultPayload {
		t.Errorf("Files.Payload = %q, want %q", cfg.Files.Payload, DefaultPayload)
	}
	if cfg.Journal.Replay != DefaultReplayMode {
		t.Errorf("Journal.Replay = %q, want %q", cfg.Journal.Replay, DefaultReplayMode)
	}

	// A second call leaves an edited file alone.
	if err := os.WriteFile(path, []byte("directory: edited\n"), 0o644); err != nil {
		t.Fatalf("failed to edit config: %v", err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != "directory: edited\n" {
		t.Errorf("config was overwritten: %q", data)
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		input string
		want  string
	}{
		{"~/journal.txt", filepath.Join(home, "journal.txt")},
		{"/abs/journal.txt", "/abs/journal.txt"},
		{"journal.txt", "journal.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		got, err := ExpandPath(tt.input)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDirs(t *testing.T) {
	if !strings.HasSuffix(DataDir(), "fsjournal") {
		t.Errorf("DataDir() = %q", DataDir())
	}
	if !strings.HasSuffix(StateDir(), "fsjournal") {
		t.Errorf("StateDir() = %q", StateDir())
	}
	if filepath.Base(DefaultCheckpointPath()) != "checkpoint" {
		t.Errorf("DefaultCheckpointPath() = %q", DefaultCheckpointPath())
	}
}
