package settings

import (
	"time"

	"github.com/roach88/storekit/internal/harness"
)

// NewTarget is the harness factory for scenarios targeting "settings".
// Each target persists to a fresh in-memory repository seeded with the
// defaults.
func NewTarget(cfg harness.TargetConfig) (harness.Target, error) {
	opts := []EnvOption{WithSaveDebounce(50 * time.Millisecond)}
	if cfg.Logger != nil {
		opts = append(opts, WithEnvLogger(cfg.Logger))
	}
	env := NewEnvironment(NewMemoryRepository(DefaultState()), opts...)
	s := New(env, cfg.StoreOptions()...)
	return &target{
		Target: harness.Bind(harness.Wrap(s, cfg.HarnessOptions()...), harness.Decoder[Action](DecodeAction)),
		env:    env,
	}, nil
}

type target struct {
	harness.Target
	env *Environment
}

func (t *target) Close() {
	t.Target.Close()
	t.env.Close()
}
