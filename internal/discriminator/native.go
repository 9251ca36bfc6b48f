package discriminator

import (
	"fmt"

	"github.com/hopcore/hopcore/internal/identity"
)

// nativeMagic tags a frame as unambiguously belonging to the native
// masquerader: two bytes that are vanishingly unlikely to appear as
// the start of any other masquerader's output.
var nativeMagic = [2]byte{0x4d, 0x4d} // "MM"

// NativeMasquerader is the simplest masquerader: magic prefix +
// component byte + raw payload, with no attempt to resemble another
// protocol. It exists so take_chunk's first-match semantics have a
// second, trivially-distinguishable alternative alongside
// HTTPChunkMasquerader.
type NativeMasquerader struct{}

// NewNativeMasquerader returns a NativeMasquerader.
func NewNativeMasquerader() *NativeMasquerader {
	return &NativeMasquerader{}
}

// Name implements Masquerader.
func (m *NativeMasquerader) Name() string { return "native" }

// TryUnmask implements Masquerader.
func (m *NativeMasquerader) TryUnmask(frame []byte) (identity.Component, []byte, bool) {
	if len(frame) < 3 || frame[0] != nativeMagic[0] || frame[1] != nativeMagic[1] {
		return 0, nil, false
	}
	component := identity.Component(frame[2])
	if !component.IsKnown() {
		return 0, nil, false
	}
	return component, frame[3:], true
}

// Mask implements Masquerader.
func (m *NativeMasquerader) Mask(component identity.Component, data []byte) ([]byte, error) {
	if !component.IsKnown() {
		return nil, fmt.Errorf("%w: %s: unknown component %d", ErrMasquerade, m.Name(), component)
	}
	out := make([]byte, 0, 3+len(data))
	out = append(out, nativeMagic[0], nativeMagic[1], byte(component))
	out = append(out, data...)
	return out, nil
}
