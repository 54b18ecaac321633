package breaker

import (
	"sync"
	"time"
)

// State is the circuit position for one provider.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Settings control when a breaker trips and how long it stays open.
type Settings struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

func defaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker isolates one failing provider. All transitions happen under a
// single mutex so that concurrent batch workers observe a consistent state;
// in particular the open→half-open transition reserves the single trial
// slot inside Allow, so exactly one caller gets the probe.
type Breaker struct {
	mu sync.Mutex

	settings Settings

	state         State
	failures      int
	lastFailureAt time.Time
	openedAt      time.Time
	trialInFlight bool
}

func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = defaultSettings().FailureThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = defaultSettings().ResetTimeout
	}
	return &Breaker{
		settings: settings,
		state:    StateClosed,
	}
}

// Allow reports whether a call may proceed right now. When the reset timeout
// on an open breaker has elapsed, the first Allow call claims the half-open
// trial slot and returns true; every other caller keeps getting false until
// the trial resolves via RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.settings.ResetTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess notes a successful provider call. A half-open trial success
// closes the circuit and resets the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.trialInFlight = false
}

// RecordFailure notes a failed provider call. Enough consecutive failures
// open the circuit; a failed half-open trial re-opens it with a fresh
// timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailureAt = time.Now()

	if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.trialInFlight = false
	}
}

// Snapshot returns the current state and consecutive failure count without
// triggering any transition. An open breaker whose timeout has elapsed still
// reports open here; only Allow moves it to half-open.
func (b *Breaker) Snapshot() (State, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.failures
}

// Registry holds one breaker per provider name, created lazily and never
// removed. It is shared across requests via the composition root.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	settings map[string]Settings
}

// NewRegistry builds a registry with optional per-provider settings;
// providers without an entry get defaults.
func NewRegistry(perProvider map[string]Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		settings: perProvider,
	}
}

// Get returns the breaker for a provider, creating it on first use.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[provider]; ok {
		return b
	}

	settings, ok := r.settings[provider]
	if !ok {
		settings = defaultSettings()
	}
	b := New(settings)
	r.breakers[provider] = b
	return b
}

// AnyOpen reports whether any registered breaker is currently open. Uses
// read-only snapshots, so it never flips an expired open breaker to
// half-open.
func (r *Registry) AnyOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		if state, _ := b.Snapshot(); state == StateOpen {
			return true
		}
	}
	return false
}
