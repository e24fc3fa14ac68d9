package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/storekit/internal/store"
)

// meter is a small feature used to exercise the harness.
type meter struct {
	Ticks   int      `json:"ticks"`
	Fetched []string `json:"fetched,omitempty"`
	Failed  int      `json:"failed"`
}

type meterAction interface{ isMeterAction() }

type (
	Tick        struct{}
	Add         struct{ N int `json:"n"` }
	Fetch       struct{ Key string `json:"key"` }
	Fetched     struct{ Value string `json:"value"` }
	FetchFailed struct{ Reason string `json:"reason"` }
	Never       struct{}
)

func (Tick) isMeterAction()        {}
func (Add) isMeterAction()         {}
func (Fetch) isMeterAction()       {}
func (Fetched) isMeterAction()     {}
func (FetchFailed) isMeterAction() {}
func (Never) isMeterAction()       {}

func reduceMeter(state meter, action meterAction) meter {
	switch a := action.(type) {
	case Tick:
		state.Ticks++
	case Add:
		state.Ticks += a.N
	case Fetched:
		state.Fetched = append(append([]string(nil), state.Fetched...), a.Value)
	case FetchFailed:
		state.Failed++
	}
	return state
}

type meterEnv struct {
	latency time.Duration
}

func meterMiddleware(ctx context.Context, _ meter, action meterAction, env meterEnv) (meterAction, bool) {
	fetch, ok := action.(Fetch)
	if !ok {
		return nil, false
	}
	select {
	case <-time.After(env.latency):
	case <-ctx.Done():
		return FetchFailed{Reason: ctx.Err().Error()}, true
	}
	if fetch.Key == "" {
		return FetchFailed{Reason: "empty key"}, true
	}
	return Fetched{Value: "v:" + fetch.Key}, true
}

func decodeMeter(name string, args map[string]any) (meterAction, error) {
	switch name {
	case "Tick":
		return Tick{}, nil
	case "Add":
		return DecodeArgs[Add](args)
	case "Fetch":
		return DecodeArgs[Fetch](args)
	case "Fetched":
		return DecodeArgs[Fetched](args)
	case "FetchFailed":
		return DecodeArgs[FetchFailed](args)
	}
	return nil, fmt.Errorf("unknown action %q", name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMeterHarness(t *testing.T, opts ...store.Option) *Harness[meter, meterAction, meterEnv] {
	t.Helper()
	opts = append([]store.Option{store.WithLogger(quietLogger())}, opts...)
	s := store.New(meter{}, reduceMeter, meterEnv{latency: 5 * time.Millisecond}, meterMiddleware, opts...)
	h := Wrap(s)
	t.Cleanup(func() {
		h.Close()
		s.Close()
	})
	return h
}

func meterFactory(cfg TargetConfig) (Target, error) {
	s := store.New(meter{}, reduceMeter, meterEnv{latency: 5 * time.Millisecond}, meterMiddleware, cfg.StoreOptions()...)
	return Bind(Wrap(s, cfg.HarnessOptions()...), Decoder[meterAction](decodeMeter)), nil
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("meter", meterFactory)
	return r
}
