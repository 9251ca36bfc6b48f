package onion

import (
	"net"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
)

// CryptData is opaque ciphertext addressed to a route's terminal
// recipient.
type CryptData []byte

// PlainData is the cleartext payload carried inside a package once it
// has been decrypted, or before it has been encrypted.
type PlainData []byte

// LiveCoresPackage is the on-the-wire form of a package: a route and
// its still-encrypted payload.
type LiveCoresPackage struct {
	Route   Route     `cbor:"route"`
	Payload CryptData `cbor:"payload"`
}

// IncipientCoresPackage is a package about to be sent, produced
// locally and never seen on the wire. PayloadDestinationKey names the
// key the payload must be encrypted under before transmission; the
// route itself separately carries the same key as its terminal hop.
type IncipientCoresPackage struct {
	Route                 Route        `cbor:"route"`
	Payload               PlainData    `cbor:"payload"`
	PayloadDestinationKey identity.Key `cbor:"payload_destination_key"`
}

// ExpiredCoresPackage is what an application component receives when a
// package terminates at this node.
type ExpiredCoresPackage struct {
	RemainingRoute Route     `cbor:"remaining_route"`
	Payload        PlainData `cbor:"payload"`
}

// ExpiredCoresPackagePackage wraps an ExpiredCoresPackage with the
// ingress peer address, for the Neighborhood sink alone, which must
// know who delivered the package.
type ExpiredCoresPackagePackage struct {
	Expired  ExpiredCoresPackage `cbor:"expired"`
	SenderIP net.IP              `cbor:"sender_ip"`
}

// ToLive encrypts pkg's payload under its destination key, producing
// the on-wire form. The destination key itself is discarded: the
// route alone carries routing information from this point on.
func (pkg IncipientCoresPackage) ToLive(engine crypto.Engine) (LiveCoresPackage, error) {
	cipher, err := engine.Encode(pkg.PayloadDestinationKey, pkg.Payload)
	if err != nil {
		return LiveCoresPackage{}, err
	}
	return LiveCoresPackage{
		Route:   pkg.Route,
		Payload: CryptData(cipher),
	}, nil
}

// ToExpired decrypts live's payload with this node's private key,
// producing the form delivered to a local application sink.
func (live LiveCoresPackage) ToExpired(engine crypto.Engine) (ExpiredCoresPackage, error) {
	plain, err := engine.Decode(live.Payload)
	if err != nil {
		return ExpiredCoresPackage{}, err
	}
	return ExpiredCoresPackage{
		RemainingRoute: live.Route,
		Payload:        PlainData(plain),
	}, nil
}
