package discriminator

import (
	"errors"

	"github.com/hopcore/hopcore/internal/identity"
)

// ErrMasquerade is the sentinel wrapped by masking failures.
var ErrMasquerade = errors.New("discriminator: masquerade failed")

// Masquerader is a stateless codec for obfuscated frames: TryUnmask
// attempts to decode a frame and only succeeds if it bears this
// masquerader's signature; Mask encodes a payload for a given
// component into that signature.
type Masquerader interface {
	// Name identifies the masquerader for logging.
	Name() string

	// TryUnmask returns (component, payload, true) if frame bears
	// this masquerader's signature, or (_, _, false) otherwise.
	TryUnmask(frame []byte) (identity.Component, []byte, bool)

	// Mask encodes data addressed to component into this
	// masquerader's wire signature.
	Mask(component identity.Component, data []byte) ([]byte, error)
}
