// Package crypto implements the CryptoEngine capability: asymmetric
// encode/decode keyed by an opaque public key, plus signing. It is
// grounded on the teacher's sealed-box (X25519 + HKDF-SHA256 +
// ChaCha20-Poly1305) and Ed25519 signing primitives, generalized so a
// single engine can encode to any peer's key rather than one fixed
// recipient.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/hopcore/hopcore/internal/identity"
)

const (
	nonceSize = 12
	tagSize   = 16

	// sealOverhead is the bytes added to every Encode call: ephemeral
	// public key, nonce, and auth tag.
	sealOverhead = identity.KeySize + nonceSize + tagSize

	hkdfInfo = "hopcore-sealed-v1"
)

// ErrDecryptionFailed is returned when authentication fails during Decode.
var ErrDecryptionFailed = errors.New("sealed box decryption failed")

// ErrInvalidCiphertext is returned when a ciphertext is too short to
// contain a valid sealed box.
var ErrInvalidCiphertext = errors.New("invalid sealed box ciphertext")

// ErrInvalidPublicKey is returned when a zero or otherwise invalid
// public key is used as an Encode recipient or ECDH peer.
var ErrInvalidPublicKey = errors.New("invalid public key")

// Engine is the CryptoEngine capability required by the routing core:
// asymmetric encode/decode keyed by an opaque public key, plus
// signing. Implementations are read-only and safe for concurrent use
// by multiple actors (see concurrency model: the engine is shared by
// reference).
type Engine interface {
	// PublicKey returns this node's long-term public key.
	PublicKey() identity.Key

	// Encode seals plain so that only the holder of key's private
	// key can Decode it.
	Encode(key identity.Key, plain []byte) ([]byte, error)

	// Decode opens a ciphertext produced by Encode(PublicKey(), ...).
	Decode(cipher []byte) ([]byte, error)

	// Sign produces a signature over msg using this node's signing key.
	Sign(msg []byte) []byte

	// Verify reports whether sig is a valid signature of msg under key.
	Verify(key identity.Key, msg, sig []byte) bool

	// RandomBytes returns n cryptographically secure random bytes,
	// used by Route.Shift to synthesize garbage hops of fixed length.
	RandomBytes(n int) ([]byte, error)
}

// SealedEngine is the concrete Engine backing production nodes: X25519
// ECDH + HKDF-SHA256 + ChaCha20-Poly1305 for Encode/Decode (grounded on
// the teacher's internal/crypto/sealed.go SealedBox), Ed25519 for
// Sign/Verify (grounded on internal/crypto/signing.go).
type SealedEngine struct {
	ecdhPublic  [identity.KeySize]byte
	ecdhPrivate [identity.KeySize]byte

	signPublic  ed25519.PublicKey
	signPrivate ed25519.PrivateKey
}

// NewSealedEngine builds an engine from an X25519 keypair and an
// Ed25519 signing keypair. Both are typically loaded from NodeConfig.
func NewSealedEngine(ecdhPublic, ecdhPrivate [identity.KeySize]byte, signPublic ed25519.PublicKey, signPrivate ed25519.PrivateKey) *SealedEngine {
	return &SealedEngine{
		ecdhPublic:  ecdhPublic,
		ecdhPrivate: ecdhPrivate,
		signPublic:  signPublic,
		signPrivate: signPrivate,
	}
}

// GenerateSealedEngine generates a fresh X25519 + Ed25519 keypair
// pair, for "auto" node keys, the route CLI's throwaway engine, and
// tests.
func GenerateSealedEngine() (*SealedEngine, error) {
	var ecdhPrivate [identity.KeySize]byte
	if _, err := io.ReadFull(rand.Reader, ecdhPrivate[:]); err != nil {
		return nil, fmt.Errorf("generate ecdh private key: %w", err)
	}
	ecdhPrivate[0] &= 248
	ecdhPrivate[31] &= 127
	ecdhPrivate[31] |= 64

	var ecdhPublic [identity.KeySize]byte
	curve25519.ScalarBaseMult(&ecdhPublic, &ecdhPrivate)

	signPublic, signPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}

	return NewSealedEngine(ecdhPublic, ecdhPrivate, signPublic, signPrivate), nil
}

// PublicKey implements Engine.
func (e *SealedEngine) PublicKey() identity.Key {
	return identity.Key(e.ecdhPublic)
}

// Encode implements Engine. The output format matches the teacher's
// sealed box: ephemeral_public_key || nonce || ciphertext || tag.
func (e *SealedEngine) Encode(key identity.Key, plain []byte) ([]byte, error) {
	if key.IsZero() {
		return nil, ErrInvalidPublicKey
	}

	var ephemeralPrivate, ephemeralPublic [identity.KeySize]byte
	if _, err := io.ReadFull(rand.Reader, ephemeralPrivate[:]); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	ephemeralPrivate[0] &= 248
	ephemeralPrivate[31] &= 127
	ephemeralPrivate[31] |= 64
	curve25519.ScalarBaseMult(&ephemeralPublic, &ephemeralPrivate)

	recipient := [identity.KeySize]byte(key)
	sharedSecret, err := ecdh(ephemeralPrivate, recipient)
	if err != nil {
		return nil, fmt.Errorf("compute ecdh: %w", err)
	}
	defer zero(sharedSecret[:])

	symmetricKey, err := deriveKey(sharedSecret, ephemeralPublic, recipient)
	if err != nil {
		return nil, err
	}
	defer zero(symmetricKey)

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := chacha20poly1305.New(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	out := make([]byte, identity.KeySize+nonceSize, sealOverhead+len(plain))
	copy(out[0:identity.KeySize], ephemeralPublic[:])
	copy(out[identity.KeySize:identity.KeySize+nonceSize], nonce[:])
	out = aead.Seal(out, nonce[:], plain, nil)

	return out, nil
}

// Decode implements Engine.
func (e *SealedEngine) Decode(cipher []byte) ([]byte, error) {
	if len(cipher) < sealOverhead {
		return nil, ErrInvalidCiphertext
	}

	var ephemeralPublic [identity.KeySize]byte
	copy(ephemeralPublic[:], cipher[0:identity.KeySize])

	var nonce [nonceSize]byte
	copy(nonce[:], cipher[identity.KeySize:identity.KeySize+nonceSize])

	sharedSecret, err := ecdh(e.ecdhPrivate, ephemeralPublic)
	if err != nil {
		return nil, fmt.Errorf("compute ecdh: %w", err)
	}
	defer zero(sharedSecret[:])

	symmetricKey, err := deriveKey(sharedSecret, ephemeralPublic, e.ecdhPublic)
	if err != nil {
		return nil, err
	}
	defer zero(symmetricKey)

	aead, err := chacha20poly1305.New(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plain, err := aead.Open(nil, nonce[:], cipher[identity.KeySize+nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plain, nil
}

// Sign implements Engine.
func (e *SealedEngine) Sign(msg []byte) []byte {
	return ed25519.Sign(e.signPrivate, msg)
}

// Verify implements Engine. key is the signer's Ed25519 public key,
// carried in the same opaque 32-byte identity.Key vocabulary as an
// ECDH recipient key.
func (e *SealedEngine) Verify(key identity.Key, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(key.Bytes()), msg, sig)
}

// RandomBytes implements Engine.
func (e *SealedEngine) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

func ecdh(privateKey, remotePublic [identity.KeySize]byte) ([identity.KeySize]byte, error) {
	var shared [identity.KeySize]byte
	var zeroKey [identity.KeySize]byte
	if remotePublic == zeroKey {
		return shared, ErrInvalidPublicKey
	}
	curve25519.ScalarMult(&shared, &privateKey, &remotePublic)
	if shared == zeroKey {
		return shared, errors.New("low-order ecdh result")
	}
	return shared, nil
}

func deriveKey(sharedSecret, ephemeralPublic, recipientPublic [identity.KeySize]byte) ([]byte, error) {
	salt := make([]byte, identity.KeySize*2)
	copy(salt[0:identity.KeySize], ephemeralPublic[:])
	copy(salt[identity.KeySize:], recipientPublic[:])

	key := make([]byte, identity.KeySize)
	reader := hkdf.New(sha256.New, sharedSecret[:], salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
