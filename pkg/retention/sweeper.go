package retention

import (
	"sync"
	"time"

	"github.com/rubiojr/places/pkg/log"
	"github.com/rubiojr/places/pkg/storage"
)

// Defaults: history entries expire after 42 days, the first sweep runs
// shortly after startup so it never competes with the initial cache load,
// and later sweeps run hourly.
const (
	DefaultMaxAge        = 42 * 24 * time.Hour
	DefaultInitialDelay  = 20 * time.Second
	DefaultSweepInterval = time.Hour
)

// Config adjusts sweep timing. Zero values fall back to the defaults.
type Config struct {
	MaxAge        time.Duration
	InitialDelay  time.Duration
	SweepInterval time.Duration
}

// Sweeper periodically deletes expired, non-bookmarked places from the
// store. Bookmarked entries are never touched.
type Sweeper struct {
	config Config
	store  *storage.Store
	logger *log.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	// onSweep, when set, runs after every successful sweep that removed
	// rows. The engine hooks its cache reload here.
	onSweep func(removed int64)
}

func NewSweeper(config Config, store *storage.Store) *Sweeper {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	return &Sweeper{
		config: config,
		store:  store,
		logger: log.ForComponent("retention"),
	}
}

// OnSweep registers a callback invoked after each sweep that removed at
// least one row. Must be called before Start.
func (s *Sweeper) OnSweep(fn func(removed int64)) {
	s.onSweep = fn
}

// Start launches the sweep loop. The first sweep runs after the initial
// delay, then repeats at the sweep interval until Stop is called.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run()

	s.logger.Infof("Retention sweeper started (max age %v, first sweep in %v, then every %v)",
		s.config.MaxAge, s.config.InitialDelay, s.config.SweepInterval)
}

// Stop halts the sweep loop and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Infof("Retention sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	initial := time.NewTimer(s.config.InitialDelay)
	defer initial.Stop()

	select {
	case <-initial.C:
		s.Sweep()
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one expiry pass immediately and returns the number of rows
// removed. Safe to call outside the loop.
func (s *Sweeper) Sweep() int64 {
	cutoff := time.Now().Add(-s.config.MaxAge).UnixMilli()
	removed, err := s.store.DeleteExpired(cutoff)
	if err != nil {
		s.logger.Errorf("Sweep failed: %v", err)
		return 0
	}
	if removed > 0 {
		s.logger.Infof("Swept %d expired places", removed)
		if s.onSweep != nil {
			s.onSweep(removed)
		}
	}
	return removed
}
