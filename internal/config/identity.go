package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
)

// seedSize is the size of the hex-encoded private key material this
// package accepts: one 32-byte Ed25519 seed, from which both the
// signing keypair and (after clamping) the X25519 ECDH keypair are
// derived. One seed per node keeps operator key management to a
// single hex string, at the cost of coupling the two keyspaces -
// acceptable here since nothing in this system needs them
// independently rotatable.
const seedSize = 32

// ResolveEngine builds a crypto.Engine from NodeConfig.PrivateKey.
// "auto" generates a fresh keypair (only suitable for ephemeral
// nodes); any other value is parsed as a hex-encoded 32-byte seed.
func ResolveEngine(node NodeConfig) (*crypto.SealedEngine, error) {
	if node.PrivateKey == "auto" {
		return crypto.GenerateSealedEngine()
	}

	seed, err := hex.DecodeString(node.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("node.private_key: invalid hex: %w", err)
	}
	if len(seed) != seedSize {
		return nil, fmt.Errorf("node.private_key: expected %d bytes, got %d", seedSize, len(seed))
	}

	signPrivate := ed25519.NewKeyFromSeed(seed)
	signPublic := signPrivate.Public().(ed25519.PublicKey)

	var ecdhPrivate [identity.KeySize]byte
	copy(ecdhPrivate[:], seed)
	ecdhPrivate[0] &= 248
	ecdhPrivate[31] &= 127
	ecdhPrivate[31] |= 64

	var ecdhPublic [identity.KeySize]byte
	curve25519.ScalarBaseMult(&ecdhPublic, &ecdhPrivate)

	return crypto.NewSealedEngine(ecdhPublic, ecdhPrivate, signPublic, signPrivate), nil
}
