package discriminator

import (
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/metrics"
)

// Discriminator composes one Framer with a non-empty ordered list of
// Masqueraders. Construction with an empty masquerader list is a
// programmer error and panics immediately: this cannot arise in a
// correctly composed node.
type Discriminator struct {
	framer       Framer
	masqueraders []Masquerader
	metrics      *metrics.Metrics
}

// SetMetrics attaches m so subsequent TakeChunk calls record
// classified/dropped frame counters on it. Nil-safe if never called.
func (d *Discriminator) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// NewDiscriminator builds a Discriminator. It panics if masqueraders
// is empty, per spec.md §4.4's fail-fast requirement for this
// programmer error.
func NewDiscriminator(framer Framer, masqueraders []Masquerader) *Discriminator {
	if len(masqueraders) == 0 {
		panic("discriminator: constructed with an empty masquerader list")
	}
	return &Discriminator{framer: framer, masqueraders: masqueraders}
}

// AddData delegates to the underlying framer.
func (d *Discriminator) AddData(data []byte) {
	d.framer.AddData(data)
}

// TakeChunk pulls one frame from the framer and tries each
// masquerader in registration order, returning the first match. If no
// masquerader recognizes the frame, it is unrecoverable and is
// dropped: masqueraders are mutually exclusive by design, so a frame
// accepted by the framer but by no masquerader cannot be salvaged.
func (d *Discriminator) TakeChunk() (identity.Component, []byte, bool) {
	frame, ok := d.framer.TakeFrame()
	if !ok {
		return 0, nil, false
	}

	for _, m := range d.masqueraders {
		if component, payload, ok := m.TryUnmask(frame); ok {
			if d.metrics != nil {
				d.metrics.FramesClassified.WithLabelValues(m.Name()).Inc()
			}
			return component, payload, true
		}
	}
	if d.metrics != nil {
		d.metrics.FramesDropped.Inc()
	}
	return 0, nil, false
}

// Mask encodes data for component using the given masquerader,
// wrapping the result in the length-prefixed frame the Framer on the
// receiving end expects.
func (d *Discriminator) Mask(masquerader Masquerader, component identity.Component, data []byte) ([]byte, error) {
	masked, err := masquerader.Mask(component, data)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(masked), nil
}

// Factory produces fresh Discriminators for each new connection. It is
// itself immutable after construction and therefore safe to share (by
// value or pointer) across listener goroutines.
type Factory struct {
	masqueraders []Masquerader
	newFramer    func() Framer
	metrics      *metrics.Metrics
}

// SetMetrics attaches m so every Discriminator this factory produces
// from then on records frame counters on it. Nil-safe if never called.
func (f *Factory) SetMetrics(m *metrics.Metrics) {
	f.metrics = m
}

// NewFactory builds a Factory with a fixed, ordered masquerader list
// and a constructor for fresh per-connection Framers.
func NewFactory(masqueraders []Masquerader, newFramer func() Framer) *Factory {
	if len(masqueraders) == 0 {
		panic("discriminator: factory constructed with an empty masquerader list")
	}
	if newFramer == nil {
		newFramer = func() Framer { return NewLengthPrefixedFramer() }
	}
	return &Factory{masqueraders: masqueraders, newFramer: newFramer}
}

// New returns a fresh Discriminator: a new Framer and the factory's
// shared, stateless masquerader list.
func (f *Factory) New() *Discriminator {
	d := NewDiscriminator(f.newFramer(), f.masqueraders)
	d.metrics = f.metrics
	return d
}

// Clone returns a Factory sharing the same masquerader list and framer
// constructor, safe to hand to another listener goroutine.
func (f *Factory) Clone() *Factory {
	masqueraders := make([]Masquerader, len(f.masqueraders))
	copy(masqueraders, f.masqueraders)
	return &Factory{masqueraders: masqueraders, newFramer: f.newFramer}
}
