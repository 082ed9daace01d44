package journal

import "github.com/rs/zerolog"

// DiskConfig is the immutable configuration snapshot a DiskJournal is
// constructed with.
type DiskConfig struct {
	// LogPart1Filename and LogPart2Filename are the paths of the two
	// fragment files the journal cycles through.
	LogPart1Filename string
	LogPart2Filename string

	// MaxLogSizeInMb is the fragment rotation threshold.
	MaxLogSizeInMb int

	// ForcedWriteEnabled makes Force issue a real disk sync. Disabling it
	// voids the durability guarantee and is unsafe for production.
	ForcedWriteEnabled bool

	// ForceBatchingEnabled lets concurrent Force calls coalesce into a
	// shared disk sync.
	ForceBatchingEnabled bool

	// FilterLogStatus suppresses all but the load-bearing statuses
	// (COMMITTING, COMMITTED, UNKNOWN) at write time.
	FilterLogStatus bool

	// SkipCorruptedLogs makes scans collect corrupted record indices and
	// continue instead of aborting on the first corrupted record.
	SkipCorruptedLogs bool

	// Logger receives the journal's structured log events. Defaults to a
	// no-op logger.
	Logger zerolog.Logger
}

// DefaultDiskConfig returns the production defaults.
func DefaultDiskConfig() DiskConfig {
	return DiskConfig{
		LogPart1Filename:     "btm1.tlog",
		LogPart2Filename:     "btm2.tlog",
		MaxLogSizeInMb:       2,
		ForcedWriteEnabled:   true,
		ForceBatchingEnabled: true,
		Logger:               zerolog.Nop(),
	}
}

func (c DiskConfig) maxFileLength() int64 {
	return int64(c.MaxLogSizeInMb) * 1024 * 1024
}
