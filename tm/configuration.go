// Package tm wires the journal and the recovery engine together: it holds
// the configuration model, the named journal factories, and the
// process-wide services containers the embedding application reaches the
// subsystems through.
package tm

import (
	"github.com/rs/zerolog"

	"github.com/ilyalabun/btm/journal"
)

// Recognized property keys.
const (
	propServerID                   = "bitronix.tm.serverId"
	propJournal                    = "bitronix.tm.journal"
	propPrimaryJournal             = "bitronix.tm.journal.primary"
	propSecondaryJournal           = "bitronix.tm.journal.secondary"
	propFailOnRecordCorruption     = "bitronix.tm.journal.multiplexed.failOnRecordCorruption"
	propCurrentNodeOnlyRecovery    = "bitronix.tm.currentNodeOnlyRecovery"
	propBackgroundRecoveryInterval = "bitronix.tm.timer.backgroundRecoveryIntervalSeconds"
	propDefaultTransactionTimeout  = "bitronix.tm.timer.defaultTransactionTimeout"
	propGracefulShutdownInterval   = "bitronix.tm.timer.gracefulShutdownInterval"

	diskPrefix          = "bitronix.tm.journal.disk"
	primaryDiskPrefix   = "bitronix.tm.journal.primary.disk"
	secondaryDiskPrefix = "bitronix.tm.journal.secondary.disk"
)

// Journal kind names accepted by the journal property.
const (
	JournalDisk        = "disk"
	JournalNull        = "null"
	JournalMultiplexed = "multiplexed"
)

// Configuration is the transaction manager core configuration. Once a
// services container has built its journal, SetConfiguration refuses to
// replace it. The container keeps the pointer it was given, so writes to
// the fields of that struct are not detected.
type Configuration struct {
	// ServerID is the US-ASCII prefix (at most 51 bytes) embedded in every
	// generated Uid. When empty the local IP address is used, with a
	// warning.
	ServerID string

	// Journal selects the journal implementation: disk, null, multiplexed,
	// or the name of a factory registered with RegisterJournalFactory.
	Journal string

	// DiskConfiguration configures the single disk journal.
	DiskConfiguration *DiskJournalConfiguration

	// PrimaryJournal and SecondaryJournal select the implementations of
	// the two multiplexed legs.
	PrimaryJournal   string
	SecondaryJournal string

	// PrimaryDiskConfiguration and SecondaryDiskConfiguration configure
	// the fragment files of each multiplexed leg.
	PrimaryDiskConfiguration   *DiskJournalConfiguration
	SecondaryDiskConfiguration *DiskJournalConfiguration

	// FailOnRecordCorruption makes the multiplexed journal fail reads when
	// both legs agree on the same corrupted record.
	FailOnRecordCorruption bool

	// CurrentNodeOnlyRecovery restricts recovery to Xids generated by this
	// node.
	CurrentNodeOnlyRecovery bool

	// BackgroundRecoveryIntervalSeconds is the period of the background
	// recoverer; 0 disables it.
	BackgroundRecoveryIntervalSeconds int

	// DefaultTransactionTimeoutSeconds and GracefulShutdownIntervalSeconds
	// are consumed by the transaction manager front-end.
	DefaultTransactionTimeoutSeconds int
	GracefulShutdownIntervalSeconds  int

	// Logger is the root logger all subsystems derive theirs from.
	Logger zerolog.Logger
}

// DiskJournalConfiguration configures one disk journal. Prefix records the
// property namespace the values were read from, standing in for the
// original's back reference to the parent configuration.
type DiskJournalConfiguration struct {
	Prefix string

	LogPart1Filename     string
	LogPart2Filename     string
	ForcedWriteEnabled   bool
	ForceBatchingEnabled bool
	MaxLogSizeInMb       int
	FilterLogStatus      bool
	SkipCorruptedLogs    bool
}

// NewConfiguration returns the default configuration.
func NewConfiguration() *Configuration {
	return ConfigurationFromProperties(NewProperties())
}

// ConfigurationFromProperties builds a configuration from a property set,
// applying the documented defaults for anything absent.
func ConfigurationFromProperties(p *Properties) *Configuration {
	return &Configuration{
		ServerID:                   p.GetString(propServerID, ""),
		Journal:                    p.GetString(propJournal, JournalDisk),
		DiskConfiguration:          diskConfigurationFromProperties(p, diskPrefix, "btm1.tlog", "btm2.tlog"),
		PrimaryJournal:             p.GetString(propPrimaryJournal, JournalDisk),
		SecondaryJournal:           p.GetString(propSecondaryJournal, JournalDisk),
		PrimaryDiskConfiguration:   diskConfigurationFromProperties(p, primaryDiskPrefix, "btm1-primary.tlog", "btm2-primary.tlog"),
		SecondaryDiskConfiguration: diskConfigurationFromProperties(p, secondaryDiskPrefix, "btm1-secondary.tlog", "btm2-secondary.tlog"),
		FailOnRecordCorruption:     p.GetBool(propFailOnRecordCorruption, true),
		CurrentNodeOnlyRecovery:    p.GetBool(propCurrentNodeOnlyRecovery, true),

		BackgroundRecoveryIntervalSeconds: p.GetInt(propBackgroundRecoveryInterval, 60),
		DefaultTransactionTimeoutSeconds:  p.GetInt(propDefaultTransactionTimeout, 60),
		GracefulShutdownIntervalSeconds:   p.GetInt(propGracefulShutdownInterval, 60),

		Logger: zerolog.Nop(),
	}
}

func diskConfigurationFromProperties(p *Properties, prefix, defaultPart1, defaultPart2 string) *DiskJournalConfiguration {
	return &DiskJournalConfiguration{
		Prefix:               prefix,
		LogPart1Filename:     p.GetString(prefix+".logPart1Filename", defaultPart1),
		LogPart2Filename:     p.GetString(prefix+".logPart2Filename", defaultPart2),
		ForcedWriteEnabled:   p.GetBool(prefix+".forcedWriteEnabled", true),
		ForceBatchingEnabled: p.GetBool(prefix+".forceBatchingEnabled", true),
		MaxLogSizeInMb:       p.GetInt(prefix+".maxLogSize", 2),
		FilterLogStatus:      p.GetBool(prefix+".filterLogStatus", false),
		SkipCorruptedLogs:    p.GetBool(prefix+".skipCorruptedLogs", false),
	}
}

// toDiskConfig converts to the journal package's configuration snapshot.
func (c *DiskJournalConfiguration) toDiskConfig(logger zerolog.Logger) journal.DiskConfig {
	return journal.DiskConfig{
		LogPart1Filename:     c.LogPart1Filename,
		LogPart2Filename:     c.LogPart2Filename,
		MaxLogSizeInMb:       c.MaxLogSizeInMb,
		ForcedWriteEnabled:   c.ForcedWriteEnabled,
		ForceBatchingEnabled: c.ForceBatchingEnabled,
		FilterLogStatus:      c.FilterLogStatus,
		SkipCorruptedLogs:    c.SkipCorruptedLogs,
		Logger:               logger,
	}
}
