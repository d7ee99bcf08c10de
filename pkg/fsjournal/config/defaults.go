// Package config provides configuration management for fsjournal.
package config

// Default configuration values.
const (
	// DefaultDirectory is the directory a run creates and removes.
	DefaultDirectory = "testdir"

	// DefaultFilePrefix is the name prefix of created files.
	DefaultFilePrefix = "file"

	// DefaultFileCount is the number of files created per run.
	DefaultFileCount = 3

	// DefaultPayload is written, followed by a newline, into each file.
	DefaultPayload = "Das ist ein nicht ganz so langer Test."

	// DefaultAuditPath is the audit log location.
	DefaultAuditPath = "operation_log.txt"

	// DefaultJournalPath is the operation journal location.
	DefaultJournalPath = "journal.txt"

	// DefaultReplayMode replays every journal entry on startup.
	DefaultReplayMode = ReplayAll

	// DefaultOutputFormat is the report format of the root command.
	DefaultOutputFormat = "pretty"

	// DefaultLogLevel is the diagnostic log level.
	DefaultLogLevel = "info"

	// DefaultConsoleLevel is the level at which diagnostics reach stderr.
	DefaultConsoleLevel = "warn"
)

// Replay modes accepted by journal.replay.
const (
	ReplayAll        = "all"
	ReplayCheckpoint = "checkpoint"
)
