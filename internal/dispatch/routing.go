package dispatch

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/hopcore/hopcore/internal/codec"
	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
	"github.com/hopcore/hopcore/internal/onion"
)

// RoutingService processes one inbound clandestine frame through this
// node's hop: decrypt, decode, shift, apply the bootstrap admission
// policy, and dispatch to the appropriate sink.
type RoutingService struct {
	engine      crypto.Engine
	isBootstrap bool
	logger      *slog.Logger

	dispatcherSink   DispatcherSink
	proxyServerSink  ProxyServerSink
	proxyClientSink  ProxyClientSink
	neighborhoodSink NeighborhoodSink

	metrics *metrics.Metrics
}

// SetMetrics attaches m so subsequent Route calls record counters on
// it. Safe to call at most once, before the service handles traffic;
// nil-safe if never called.
func (s *RoutingService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// NewRoutingService builds a RoutingService bound to all four sinks a
// terminal or relayed hop might require.
func NewRoutingService(
	engine crypto.Engine,
	isBootstrap bool,
	logger *slog.Logger,
	dispatcherSink DispatcherSink,
	proxyServerSink ProxyServerSink,
	proxyClientSink ProxyClientSink,
	neighborhoodSink NeighborhoodSink,
) (*RoutingService, error) {
	if dispatcherSink == nil || proxyServerSink == nil || proxyClientSink == nil || neighborhoodSink == nil {
		return nil, ErrSinksNotBound
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &RoutingService{
		engine:           engine,
		isBootstrap:      isBootstrap,
		logger:           logger,
		dispatcherSink:   dispatcherSink,
		proxyServerSink:  proxyServerSink,
		proxyClientSink:  proxyClientSink,
		neighborhoodSink: neighborhoodSink,
	}, nil
}

// Route processes one InboundClientData through this node's hop. All
// failures are logged and the message dropped: format errors and
// policy rejections never propagate out of this call.
func (s *RoutingService) Route(ibcd InboundClientData) error {
	plain, err := s.engine.Decode(ibcd.Data)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Couldn't decrypt CORES package: %v", err),
			logging.KeyComponent, "routing")
		if s.metrics != nil {
			s.metrics.DecryptFailures.Inc()
		}
		return nil
	}

	var live onion.LiveCoresPackage
	if err := codec.Decode(plain, &live); err != nil {
		s.logger.Error(fmt.Sprintf("Couldn't deserialize CORES package: %v", err),
			logging.KeyComponent, "routing")
		if s.metrics != nil {
			s.metrics.DeserializeFailures.Inc()
		}
		return nil
	}

	hop, err := live.Route.Shift(s.engine)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Couldn't deserialize CORES package: %v", err),
			logging.KeyComponent, "routing")
		if s.metrics != nil {
			s.metrics.DeserializeFailures.Inc()
		}
		return nil
	}

	if s.isBootstrap && hop.Component != identity.ComponentNeighborhood {
		s.logger.Error(fmt.Sprintf("Request for Bootstrap Node to route data to %s: rejected", hop.Component),
			logging.KeyComponent, "routing")
		if s.metrics != nil {
			s.metrics.BootstrapRejections.Inc()
		}
		return nil
	}

	switch hop.Component {
	case identity.ComponentHopper:
		// A self-addressed Hopper hop would relay to this same node
		// forever; reject it rather than looping.
		if hop.NextKey.Equal(s.engine.PublicKey()) {
			s.logger.Error("Hopper hop addressed to self: rejected",
				logging.KeyComponent, "routing")
			if s.metrics != nil {
				s.metrics.SelfAddressedDrops.Inc()
			}
			return nil
		}
		if s.metrics != nil {
			s.metrics.HopsRelayed.Inc()
		}
		return s.relay(ibcd, live, hop.NextKey)

	case identity.ComponentProxyServer:
		expired, err := live.ToExpired(s.engine)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Couldn't decrypt CORES package: %v", err),
				logging.KeyComponent, "routing")
			return nil
		}
		if err := s.proxyServerSink.ToProxyServer(expired); err != nil {
			return fmt.Errorf("dispatch: to proxy server: %w", err)
		}
		if s.metrics != nil {
			s.metrics.HopsTerminated.WithLabelValues(hop.Component.String()).Inc()
		}
		return nil

	case identity.ComponentProxyClient:
		expired, err := live.ToExpired(s.engine)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Couldn't decrypt CORES package: %v", err),
				logging.KeyComponent, "routing")
			return nil
		}
		if err := s.proxyClientSink.ToProxyClient(expired); err != nil {
			return fmt.Errorf("dispatch: to proxy client: %w", err)
		}
		if s.metrics != nil {
			s.metrics.HopsTerminated.WithLabelValues(hop.Component.String()).Inc()
		}
		return nil

	case identity.ComponentNeighborhood:
		expired, err := live.ToExpired(s.engine)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Couldn't decrypt CORES package: %v", err),
				logging.KeyComponent, "routing")
			return nil
		}
		pkg := onion.ExpiredCoresPackagePackage{Expired: expired, SenderIP: addrIP(ibcd.PeerAddr)}
		if err := s.neighborhoodSink.ToNeighborhood(pkg); err != nil {
			return fmt.Errorf("dispatch: to neighborhood: %w", err)
		}
		if s.metrics != nil {
			s.metrics.HopsTerminated.WithLabelValues(hop.Component.String()).Inc()
		}
		return nil

	default:
		s.logger.Debug("unrecognized terminal component: dropping",
			logging.KeyComponent, "routing", "terminal_component", hop.Component)
		return nil
	}
}

// relay forwards live (already shifted) onward to nextKey.
func (s *RoutingService) relay(ibcd InboundClientData, live onion.LiveCoresPackage, nextKey identity.Key) error {
	plain, err := codec.Encode(live)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Couldn't serialize CORES package for relay: %v", err),
			logging.KeyComponent, "routing")
		return nil
	}

	cipher, err := s.engine.Encode(nextKey, plain)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Couldn't encrypt CORES package for relay: %v", err),
			logging.KeyComponent, "routing")
		return nil
	}

	msg := TransmitDataMsg{
		Endpoint:       KeyEndpoint(nextKey),
		LastData:       ibcd.LastData,
		Data:           cipher,
		SequenceNumber: ibcd.SequenceNumber,
	}
	if err := s.dispatcherSink.ToDispatcher(msg); err != nil {
		return fmt.Errorf("dispatch: to dispatcher: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordBytesRelayed(len(cipher))
	}
	return nil
}

// addrIP extracts an IP from a net.Addr, returning nil if it cannot be
// parsed (e.g. the loopback placeholder used for zero-hop packages).
func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			host = addr.String()
		}
		return net.ParseIP(host)
	}
}
