package dispatch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hopcore/hopcore/internal/codec"
	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
	"github.com/hopcore/hopcore/internal/onion"
)

// ErrSinksNotBound is the programmer error returned by
// NewConsumingService and NewRoutingService when a required sink is nil.
var ErrSinksNotBound = errors.New("dispatch: consuming service sinks not bound")

// ConsumingService converts a locally originated IncipientCoresPackage
// into on-wire form and hands it off to the appropriate sink.
type ConsumingService struct {
	engine      crypto.Engine
	isBootstrap bool
	logger      *slog.Logger

	hopperSink     HopperSink
	dispatcherSink DispatcherSink

	metrics *metrics.Metrics
}

// SetMetrics attaches m so subsequent Consume calls record counters
// on it. Nil-safe if never called.
func (s *ConsumingService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// NewConsumingService builds a ConsumingService bound to its sinks up
// front; both sinks are required, matching the actor model's one-time
// BindMessage semantics at the layer above.
func NewConsumingService(engine crypto.Engine, isBootstrap bool, logger *slog.Logger, hopperSink HopperSink, dispatcherSink DispatcherSink) (*ConsumingService, error) {
	if hopperSink == nil || dispatcherSink == nil {
		return nil, ErrSinksNotBound
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ConsumingService{
		engine:         engine,
		isBootstrap:    isBootstrap,
		logger:         logger,
		hopperSink:     hopperSink,
		dispatcherSink: dispatcherSink,
	}, nil
}

// Consume transforms pkg into its on-wire form and hands it to the
// loopback sink (zero-hop) or the dispatcher (remote next hop).
// Serialization or encryption failure is logged and the message is
// dropped: it was never committed to the network and has no sender to
// notify at this layer.
func (s *ConsumingService) Consume(pkg onion.IncipientCoresPackage) error {
	if s.isBootstrap {
		s.logger.Error("bootstrap node attempted to originate traffic; dropping",
			logging.KeyComponent, "consuming")
		return nil
	}

	live, err := pkg.ToLive(s.engine)
	if err != nil {
		s.logger.Error("Couldn't encrypt CORES package payload",
			logging.KeyComponent, "consuming", logging.KeyError, err)
		return nil
	}

	headHop, err := live.Route.Shift(s.engine)
	if err != nil {
		s.logger.Error("Couldn't shift origin hop off CORES package route",
			logging.KeyComponent, "consuming", logging.KeyError, err)
		return nil
	}
	nextKey := headHop.NextKey

	plain, err := codec.Encode(live)
	if err != nil {
		s.logger.Error("Couldn't serialize CORES package for transmission",
			logging.KeyComponent, "consuming", logging.KeyError, err)
		return nil
	}

	cipher, err := s.engine.Encode(nextKey, plain)
	if err != nil {
		s.logger.Error("Couldn't encrypt CORES package for transmission",
			logging.KeyComponent, "consuming", logging.KeyError, err)
		if s.metrics != nil {
			s.metrics.EncodeFailures.Inc()
		}
		return nil
	}

	if nextKey.Equal(s.engine.PublicKey()) {
		ibcd := InboundClientData{
			PeerAddr:      LoopbackPlaceholder,
			IsClandestine: true,
			LastData:      false,
			Data:          cipher,
		}
		if err := s.hopperSink.ToHopper(ibcd); err != nil {
			return fmt.Errorf("dispatch: zero-hop loopback: %w", err)
		}
		return nil
	}

	msg := TransmitDataMsg{
		Endpoint: KeyEndpoint(nextKey),
		LastData: false,
		Data:     cipher,
	}
	if err := s.dispatcherSink.ToDispatcher(msg); err != nil {
		return fmt.Errorf("dispatch: to dispatcher: %w", err)
	}
	return nil
}
