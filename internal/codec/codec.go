// Package codec provides the deterministic, self-describing wire
// encoding used for every route and package type in the hop-routing
// engine. It wraps github.com/fxamacker/cbor/v2 in its canonical
// encoding mode (CanonicalEncOptions) so that identical values always produce
// identical bytes, matching the byte-exact wire compatibility spec.md
// §6 requires.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build canonical encode mode: %v", err))
	}
	encMode = m

	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build decode mode: %v", err))
	}
	decMode = dm
}

// Encode serializes v into its canonical CBOR representation. Encode
// is deterministic: the same value always produces the same bytes.
func Encode(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

// Decode deserializes data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	return nil
}
