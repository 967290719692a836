package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/registry"
)

// Settings are the tracker parameters the admin console can change at runtime.
type Settings struct {
	mu            sync.RWMutex
	validateTime  int
	validateTries int
	shareEnabled  bool
	adminPass     string
}

// NewSettings creates settings with the given initial values.
func NewSettings(validateTime, validateTries int, shareEnabled bool, adminPass string) *Settings {
	return &Settings{
		validateTime:  validateTime,
		validateTries: validateTries,
		shareEnabled:  shareEnabled,
		adminPass:     adminPass,
	}
}

// ValidateTime is the number of minutes between validation passes.
func (s *Settings) ValidateTime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateTime
}

// ValidateTries is the number of failed probes a record survives.
func (s *Settings) ValidateTries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateTries
}

func (s *Settings) ShareEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shareEnabled
}

func (s *Settings) AdminPass() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminPass
}

// SetVerification updates the validation period and retry threshold together.
func (s *Settings) SetVerification(validateTime, validateTries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validateTime = validateTime
	s.validateTries = validateTries
}

func (s *Settings) SetShareEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareEnabled = v
}

// Info is the static part of the configuration the handlers need.
type Info struct {
	PrivateHostToAccept string
	TrackerName         string
	TrackerHost         string
	CSSTemplate         string
	ImageDir            string
	LogFile             string
}

// TrackerState is the shared state of one tracker process: the registry, the
// peer list, the runtime settings and the statistics shown to operators.
type TrackerState struct {
	Registry *registry.Registry
	Peers    *registry.PeerList
	Settings *Settings
	Info     Info

	hits          atomic.Int64
	registrations atomic.Int64

	validating     atomic.Int32
	lastCheck      atomic.Int64 // unix nanos, 0 before the first pass
	lastValidation atomic.Value // string
}

// New creates a TrackerState around an empty registry.
func New(settings *Settings, peers []domain.PeerTracker, info Info) *TrackerState {
	s := &TrackerState{
		Registry: registry.New(),
		Peers:    registry.NewPeerList(peers),
		Settings: settings,
		Info:     info,
	}
	s.lastValidation.Store(domain.NeverValidated)
	return s
}

// Hit counts one status page view and returns the new total.
func (s *TrackerState) Hit() int64 { return s.hits.Add(1) }

func (s *TrackerState) Hits() int64 { return s.hits.Load() }

// Registered counts one successful REGUP.
func (s *TrackerState) Registered() { s.registrations.Add(1) }

func (s *TrackerState) Registrations() int64 { return s.registrations.Load() }

// BeginValidation marks a validation pass as running.
func (s *TrackerState) BeginValidation(at time.Time) {
	s.validating.Add(1)
	s.lastCheck.Store(at.UnixNano())
}

// EndValidation marks the pass as done and records the display timestamp.
func (s *TrackerState) EndValidation(at time.Time) {
	s.lastValidation.Store(domain.FormatTime(at))
	s.validating.Add(-1)
}

// ValidationInProgress reports whether a pass is running.
func (s *TrackerState) ValidationInProgress() bool { return s.validating.Load() > 0 }

// LastCheck is the start time of the latest pass, zero before the first one.
func (s *TrackerState) LastCheck() time.Time {
	ns := s.lastCheck.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastValidation is the end time of the latest pass or "never".
func (s *TrackerState) LastValidation() string {
	return s.lastValidation.Load().(string)
}

// Stats is a read-only view of the counters.
type Stats struct {
	PagesServed       int64  `json:"pages_served"`
	RegupProcessed    int64  `json:"regup_processed"`
	ClientsRegistered int    `json:"clients_registered"`
	Peers             int    `json:"peers"`
	InProgress        bool   `json:"validation_in_progress"`
	LastValidation    string `json:"last_validation"`
	ValidateTime      int    `json:"validate_time"`
	ValidateTries     int    `json:"validate_tries"`
	ShareEnabled      bool   `json:"share_enabled"`
}

// Stats collects the current counters and settings.
func (s *TrackerState) Stats() Stats {
	return Stats{
		PagesServed:       s.Hits(),
		RegupProcessed:    s.Registrations(),
		ClientsRegistered: s.Registry.Len(),
		Peers:             s.Peers.Len(),
		InProgress:        s.ValidationInProgress(),
		LastValidation:    s.LastValidation(),
		ValidateTime:      s.Settings.ValidateTime(),
		ValidateTries:     s.Settings.ValidateTries(),
		ShareEnabled:      s.Settings.ShareEnabled(),
	}
}
