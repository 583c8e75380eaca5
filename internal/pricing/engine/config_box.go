package engine

import (
	"sync/atomic"

	"github.com/force23airr/NexusX-sub001/internal/config"
)

// configBox holds a PricingConfig behind an atomic pointer so reads and
// writes never tear: UpdateConfig publishes a whole new value, and every
// in-flight ComputePrice call sees either the old or new snapshot.
type configBox struct {
	p atomic.Pointer[config.PricingConfig]
}

func newConfigBox(cfg config.PricingConfig) *configBox {
	b := &configBox{}
	b.store(cfg)
	return b
}

func (b *configBox) store(cfg config.PricingConfig) {
	c := cfg
	b.p.Store(&c)
}

func (b *configBox) load() config.PricingConfig {
	return *b.p.Load()
}
