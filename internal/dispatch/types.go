// Package dispatch implements ConsumingService and RoutingService: the
// two operations that turn a locally originated package into on-wire
// bytes, and on-wire bytes back into a package that either relays
// onward or terminates at a local sink.
package dispatch

import (
	"net"

	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/onion"
)

// sentinelAddr is a net.Addr whose String() is unmistakably not a
// real network address, so it cannot be confused with a genuine peer
// in logs or metrics.
type sentinelAddr string

func (s sentinelAddr) Network() string { return "loopback" }
func (s sentinelAddr) String() string  { return string(s) }

// LoopbackPlaceholder is the peer_addr synthesized for a zero-hop
// (self-addressed) package: semantically irrelevant, but named so it
// never appears to be a real remote address.
var LoopbackPlaceholder net.Addr = sentinelAddr("LOOPBACK_PLACEHOLDER")

// InboundClientData is the unit delivered by the transport layer to
// the routing core.
type InboundClientData struct {
	PeerAddr       net.Addr
	ReceptionPort  *int
	LastData       bool
	SequenceNumber *uint64
	IsClandestine  bool
	Data           []byte
}

// EndpointKind distinguishes the two Endpoint variants.
type EndpointKind int

const (
	// EndpointKeyKind addresses a peer by its long-term public key;
	// the dispatcher resolves it to a live connection.
	EndpointKeyKind EndpointKind = iota
	// EndpointSocketKind addresses a peer directly by socket address.
	EndpointSocketKind
)

// Endpoint is the sum type Key(Key) | Socket(SocketAddress).
type Endpoint struct {
	kind   EndpointKind
	key    identity.Key
	socket net.Addr
}

// KeyEndpoint builds an Endpoint addressed by peer key.
func KeyEndpoint(k identity.Key) Endpoint {
	return Endpoint{kind: EndpointKeyKind, key: k}
}

// SocketEndpoint builds an Endpoint addressed by socket address.
func SocketEndpoint(addr net.Addr) Endpoint {
	return Endpoint{kind: EndpointSocketKind, socket: addr}
}

// Kind reports which variant this Endpoint holds.
func (e Endpoint) Kind() EndpointKind { return e.kind }

// Key returns the key and true if this Endpoint is key-addressed.
func (e Endpoint) Key() (identity.Key, bool) {
	return e.key, e.kind == EndpointKeyKind
}

// Socket returns the address and true if this Endpoint is socket-addressed.
func (e Endpoint) Socket() (net.Addr, bool) {
	return e.socket, e.kind == EndpointSocketKind
}

// TransmitDataMsg is the unit consumed by the transport layer.
type TransmitDataMsg struct {
	Endpoint       Endpoint
	LastData       bool
	Data           []byte
	SequenceNumber *uint64
}

// Sinks peer actors hand to the ConsumingService/RoutingService via a
// one-time binding (see internal/hopper.Actor.SendBind and PeerActors).

// HopperSink accepts a zero-hop loopback delivery: a package whose
// outermost hop addresses this node is handed directly back to the
// routing core rather than round-tripping through the transport layer.
type HopperSink interface {
	ToHopper(InboundClientData) error
}

// DispatcherSink accepts on-wire transmissions bound for a remote peer.
type DispatcherSink interface {
	ToDispatcher(TransmitDataMsg) error
}

// ProxyServerSink accepts packages terminating at the proxy-server component.
type ProxyServerSink interface {
	ToProxyServer(onion.ExpiredCoresPackage) error
}

// ProxyClientSink accepts packages terminating at the proxy-client component.
type ProxyClientSink interface {
	ToProxyClient(onion.ExpiredCoresPackage) error
}

// NeighborhoodSink accepts packages terminating at the neighborhood/
// gossip component, which additionally needs the ingress peer address.
type NeighborhoodSink interface {
	ToNeighborhood(onion.ExpiredCoresPackagePackage) error
}
