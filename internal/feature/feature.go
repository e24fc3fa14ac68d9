// Package feature registers the storekit feature stores as scenario
// targets.
package feature

import (
	"github.com/roach88/storekit/internal/feature/counter"
	"github.com/roach88/storekit/internal/feature/settings"
	"github.com/roach88/storekit/internal/harness"
)

// Registry returns a registry holding every feature target.
func Registry() *harness.Registry {
	r := harness.NewRegistry()
	r.Register("counter", counter.NewTarget)
	r.Register("settings", settings.NewTarget)
	return r
}
