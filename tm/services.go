package tm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/recovery"
	"github.com/ilyalabun/btm/resource"
	"github.com/ilyalabun/btm/uid"
)

// DefaultKey is the services container key used when the application does
// not run multiple independent transaction manager instances.
const DefaultKey = "DEFAULT_KEY"

var containers sync.Map // key → *Services

// Attach returns the services container for the given key, creating it on
// first use. Every caller attaching to the same key observes the same
// container; different keys yield independent containers.
func Attach(key string) *Services {
	if s, ok := containers.Load(key); ok {
		return s.(*Services)
	}
	created := newServices(key)
	actual, _ := containers.LoadOrStore(key, created)
	return actual.(*Services)
}

// Default returns the container for DefaultKey.
func Default() *Services {
	return Attach(DefaultKey)
}

// AllKeys returns the keys of every live container.
func AllKeys() []string {
	var keys []string
	containers.Range(func(k, _ interface{}) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}

// RemoveServices drops the container for key; a subsequent Attach creates
// a fresh one. Intended for shutdown and tests.
func RemoveServices(key string) {
	containers.Delete(key)
}

// JournalFactory builds a custom journal implementation from the frozen
// configuration.
type JournalFactory func(cfg *Configuration) (journal.Journal, error)

var journalFactories sync.Map // name → JournalFactory

// RegisterJournalFactory makes a custom journal implementation selectable
// through the journal configuration property.
func RegisterJournalFactory(name string, factory JournalFactory) {
	journalFactories.Store(name, factory)
}

// Services is the container of one transaction manager instance's core
// services. Each sub-service initializes lazily under compare-and-set, so
// it is a singleton per container no matter how many goroutines race to
// reach it first.
type Services struct {
	key string

	configuration atomic.Pointer[Configuration]
	journalRef    atomic.Pointer[journalHolder]
	recoverer     atomic.Pointer[recovery.Recoverer]
	incremental   atomic.Pointer[recovery.IncrementalRecoverer]
	resources     atomic.Pointer[resource.Registry]
	inFlight      atomic.Pointer[recovery.InFlightRegistry]
	uidGenerator  atomic.Pointer[uid.Generator]

	bgMu   sync.Mutex
	bgStop chan struct{}
}

// journalHolder boxes the Journal interface for atomic publication.
type journalHolder struct {
	journal journal.Journal
}

func newServices(key string) *Services {
	return &Services{key: key}
}

// Key returns the container key.
func (s *Services) Key() string {
	return s.key
}

// Configuration returns the container configuration, creating the default
// one on first access.
func (s *Services) Configuration() *Configuration {
	if cfg := s.configuration.Load(); cfg != nil {
		return cfg
	}
	created := NewConfiguration()
	if s.configuration.CompareAndSwap(nil, created) {
		return created
	}
	return s.configuration.Load()
}

// SetConfiguration installs a configuration. It fails once the journal has
// been built: the configuration is frozen from that point on.
func (s *Services) SetConfiguration(cfg *Configuration) error {
	if s.journalRef.Load() != nil {
		return errors.New("cannot change the configuration while the transaction manager is running")
	}
	s.configuration.Store(cfg)
	return nil
}

// Journal returns the transactions journal, building it from the
// configuration on first access.
func (s *Services) Journal() (journal.Journal, error) {
	if h := s.journalRef.Load(); h != nil {
		return h.journal, nil
	}

	cfg := s.Configuration()
	built, err := buildJournal(cfg)
	if err != nil {
		return nil, err
	}
	if s.journalRef.CompareAndSwap(nil, &journalHolder{journal: built}) {
		return built, nil
	}
	// another goroutine won the race; its journal is the singleton
	built.Shutdown()
	return s.journalRef.Load().journal, nil
}

// ResourceRegistry returns the container's recoverable resource registry.
func (s *Services) ResourceRegistry() *resource.Registry {
	if r := s.resources.Load(); r != nil {
		return r
	}
	created := resource.NewRegistry()
	if s.resources.CompareAndSwap(nil, created) {
		return created
	}
	return s.resources.Load()
}

// InFlightRegistry returns the in-flight transaction registry consulted by
// the recoverer's skip rule.
func (s *Services) InFlightRegistry() *recovery.InFlightRegistry {
	if r := s.inFlight.Load(); r != nil {
		return r
	}
	created := recovery.NewInFlightRegistry()
	if s.inFlight.CompareAndSwap(nil, created) {
		return created
	}
	return s.inFlight.Load()
}

// UidGenerator returns the container's Uid generator, configured with the
// server id.
func (s *Services) UidGenerator() *uid.Generator {
	if g := s.uidGenerator.Load(); g != nil {
		return g
	}
	cfg := s.Configuration()
	created := uid.NewGenerator(cfg.ServerID, cfg.Logger)
	if s.uidGenerator.CompareAndSwap(nil, created) {
		return created
	}
	return s.uidGenerator.Load()
}

// Recoverer returns the container's recoverer.
func (s *Services) Recoverer() (*recovery.Recoverer, error) {
	if r := s.recoverer.Load(); r != nil {
		return r, nil
	}

	j, err := s.Journal()
	if err != nil {
		return nil, err
	}
	cfg := s.Configuration()
	created := recovery.NewRecoverer(j, s.ResourceRegistry(), recovery.Config{
		ServerID:                s.UidGenerator().ServerID(),
		CurrentNodeOnlyRecovery: cfg.CurrentNodeOnlyRecovery,
		InFlight:                s.InFlightRegistry(),
		Logger:                  cfg.Logger,
	})
	if s.recoverer.CompareAndSwap(nil, created) {
		return created, nil
	}
	return s.recoverer.Load(), nil
}

// IncrementalRecoverer returns the single-resource recoverer used when a
// resource registers while the manager is already running.
func (s *Services) IncrementalRecoverer() (*recovery.IncrementalRecoverer, error) {
	if r := s.incremental.Load(); r != nil {
		return r, nil
	}

	j, err := s.Journal()
	if err != nil {
		return nil, err
	}
	cfg := s.Configuration()
	created := recovery.NewIncrementalRecoverer(j, recovery.Config{
		ServerID:                s.UidGenerator().ServerID(),
		CurrentNodeOnlyRecovery: cfg.CurrentNodeOnlyRecovery,
		Logger:                  cfg.Logger,
	})
	if s.incremental.CompareAndSwap(nil, created) {
		return created, nil
	}
	return s.incremental.Load(), nil
}

// RegisterResource registers a resource and immediately runs incremental
// recovery on it, so in-doubt branches held by a late-joining resource are
// resolved without waiting for the next full pass.
func (s *Services) RegisterResource(res resource.Recoverable) error {
	if err := s.ResourceRegistry().Register(res); err != nil {
		return err
	}
	ir, err := s.IncrementalRecoverer()
	if err != nil {
		return err
	}
	return ir.Recover(res)
}

// StartBackgroundRecovery starts the periodic recoverer per the configured
// interval. With an interval of 0 it does nothing.
func (s *Services) StartBackgroundRecovery() error {
	cfg := s.Configuration()
	if cfg.BackgroundRecoveryIntervalSeconds <= 0 {
		return nil
	}
	recoverer, err := s.Recoverer()
	if err != nil {
		return err
	}

	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgStop != nil {
		return nil
	}
	stop := make(chan struct{})
	s.bgStop = stop

	interval := time.Duration(cfg.BackgroundRecoveryIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				recoverer.Run()
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// StopBackgroundRecovery stops the periodic recoverer, if running.
func (s *Services) StopBackgroundRecovery() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgStop != nil {
		close(s.bgStop)
		s.bgStop = nil
	}
}

// Shutdown stops background recovery, shuts the journal down and clears
// every service reference. The container can be reused afterwards; every
// service re-initializes lazily.
func (s *Services) Shutdown() {
	s.StopBackgroundRecovery()
	if h := s.journalRef.Load(); h != nil {
		h.journal.Shutdown()
	}
	s.clear()
}

func (s *Services) clear() {
	s.journalRef.Store(nil)
	s.recoverer.Store(nil)
	s.incremental.Store(nil)
	s.resources.Store(nil)
	s.inFlight.Store(nil)
	s.uidGenerator.Store(nil)
	s.configuration.Store(nil)
}

// buildJournal constructs the journal selected by the configuration.
func buildJournal(cfg *Configuration) (journal.Journal, error) {
	if cfg.Journal == JournalMultiplexed {
		primary, err := createJournal(cfg.PrimaryJournal, cfg.PrimaryDiskConfiguration, cfg)
		if err != nil {
			return nil, err
		}
		secondary, err := createJournal(cfg.SecondaryJournal, cfg.SecondaryDiskConfiguration, cfg)
		if err != nil {
			return nil, err
		}
		return journal.NewMultiplexedJournal(primary, secondary, cfg.FailOnRecordCorruption, cfg.Logger), nil
	}
	return createJournal(cfg.Journal, cfg.DiskConfiguration, cfg)
}

func createJournal(kind string, diskCfg *DiskJournalConfiguration, cfg *Configuration) (journal.Journal, error) {
	switch kind {
	case "", JournalNull:
		return journal.NewNullJournal(), nil
	case JournalDisk:
		return journal.NewDiskJournal(diskCfg.toDiskConfig(cfg.Logger)), nil
	default:
		if f, ok := journalFactories.Load(kind); ok {
			return f.(JournalFactory)(cfg)
		}
		return nil, errors.Errorf("invalid journal implementation %q", kind)
	}
}
