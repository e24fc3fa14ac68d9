package settings

import (
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/storekit/internal/limiter"
	"github.com/roach88/storekit/internal/store"
)

// DefaultSaveDebounce coalesces bursts of save requests.
const DefaultSaveDebounce = 300 * time.Millisecond

// Environment holds the settings store's dependencies and the external
// event sources bridged into it.
type Environment struct {
	Repository Repository

	// Inputs, bridged into dispatches by Subscriber.
	SaveRequested *store.Subject[struct{}]
	SpeechSpeed   *store.Subject[SpeechSpeed]
	MusicPlaying  *store.Subject[bool]
	StorySetting  *store.Subject[StorySetting]
	CustomPrompt  *store.Subject[string]

	// Updated receives every successfully saved state. The save waits for
	// each listener to take the state, so listeners must keep draining
	// until Close.
	Updated *store.Subject[State]

	saves *limiter.Limiter
}

// EnvOption configures an Environment.
type EnvOption func(*envConfig)

type envConfig struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WithSaveDebounce sets how long SaveRequested bursts are coalesced.
func WithSaveDebounce(d time.Duration) EnvOption {
	return func(c *envConfig) {
		c.debounce = d
	}
}

// WithEnvLogger sets the logger for the save limiter.
func WithEnvLogger(logger *slog.Logger) EnvOption {
	return func(c *envConfig) {
		c.logger = logger
	}
}

// NewEnvironment creates an environment persisting through repo.
func NewEnvironment(repo Repository, opts ...EnvOption) *Environment {
	cfg := envConfig{debounce: DefaultSaveDebounce, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Environment{
		Repository:    repo,
		SaveRequested: store.NewSubject[struct{}](),
		SpeechSpeed:   store.NewSubject[SpeechSpeed](),
		MusicPlaying:  store.NewSubject[bool](),
		StorySetting:  store.NewSubject[StorySetting](),
		CustomPrompt:  store.NewSubject[string](),
		Updated:       store.NewSubject[State](),
		saves:         limiter.New(cfg.debounce, limiter.WithLogger(cfg.logger)),
	}
}

// Close stops pending debounced saves and completes every subject.
func (e *Environment) Close() {
	e.saves.Stop()
	e.SaveRequested.Close()
	e.SpeechSpeed.Close()
	e.MusicPlaying.Close()
	e.StorySetting.Close()
	e.CustomPrompt.Close()
	e.Updated.Close()
}

// Subscriber bridges the environment's inputs into s.
func Subscriber(s *Store, env *Environment) {
	store.Subscribe(s, env.SaveRequested, func(s *Store, _ struct{}) {
		env.saves.Request(func() { s.Dispatch(SaveSettings{}) })
	})

	store.Subscribe(s, env.SpeechSpeed, func(s *Store, speed SpeechSpeed) {
		s.Dispatch(UpdateSpeechSpeed{Speed: speed})
	})

	store.Subscribe(s, env.MusicPlaying, func(s *Store, playing bool) {
		next := s.State()
		next.PlayingMusic = playing
		s.Dispatch(SettingsLoaded{Settings: next})
	})

	store.Subscribe(s, env.CustomPrompt, func(s *Store, prompt string) {
		if prompt == "" {
			return
		}
		next := s.State()
		next.CustomPrompts = append(slices.Clone(next.CustomPrompts), NormalizePrompt(prompt))
		s.Dispatch(SettingsLoaded{Settings: next})
	})

	store.Subscribe(s, env.StorySetting, func(s *Store, setting StorySetting) {
		next := s.State()
		next.StorySetting = setting
		s.Dispatch(SettingsLoaded{Settings: next})
	})
}
