// Package onion implements the Route/Hop model: an ordered sequence of
// encrypted hops that peels one layer at a time as a package travels
// the mix network, plus the package forms that travel alongside it.
package onion

import (
	"github.com/hopcore/hopcore/internal/codec"
	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
)

// Hop is the cleartext form of one routing instruction: where the
// package goes next, and which local component should receive it if
// next_key names this node itself.
type Hop struct {
	NextKey   identity.Key        `cbor:"next_key"`
	Component identity.Component `cbor:"component"`
}

// IsTerminal reports whether this hop names the given node as the
// final recipient.
func (h Hop) IsTerminal(selfKey identity.Key) bool {
	return h.NextKey.Equal(selfKey)
}

// EncryptedHop is the ciphertext form of a Hop, addressed to the peer
// named by the key it was encrypted under. Every EncryptedHop in a
// given Route has the same byte length (see Route.Shift).
type EncryptedHop []byte

// encodeHop seals a Hop's codec form under key, producing an
// EncryptedHop.
func encodeHop(engine crypto.Engine, key identity.Key, hop Hop) (EncryptedHop, error) {
	plain, err := codec.Encode(hop)
	if err != nil {
		return nil, err
	}
	cipher, err := engine.Encode(key, plain)
	if err != nil {
		return nil, err
	}
	return EncryptedHop(cipher), nil
}

// decodeHop opens an EncryptedHop using this node's private key.
func decodeHop(engine crypto.Engine, eh EncryptedHop) (Hop, error) {
	plain, err := engine.Decode(eh)
	if err != nil {
		return Hop{}, err
	}
	var hop Hop
	if err := codec.Decode(plain, &hop); err != nil {
		return Hop{}, err
	}
	return hop, nil
}
