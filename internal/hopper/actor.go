// Package hopper implements HopperActor: a single-threaded message
// loop binding one ConsumingService and one RoutingService to their
// sibling actors, per spec.md §4.5.
package hopper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/dispatch"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
	"github.com/hopcore/hopcore/internal/onion"
)

// ErrMailboxFull is returned by the Send* methods when the actor's
// mailbox is saturated. Per spec.md §5, a full mailbox for a sibling
// sink (and, analogously, for the Hopper itself after binding) is a
// fatal condition: the caller should treat the node as dead.
var ErrMailboxFull = errors.New("hopper: mailbox full")

// ErrAlreadyBound names the programmer error of a second bind message:
// the actor logs it and aborts the process when it processes that
// message (SendBind itself does not return it).
var ErrAlreadyBound = errors.New("hopper: actor already bound")

// PeerActors names the sink handles delivered by a one-time
// BindMessage.
type PeerActors struct {
	HopperSink       dispatch.HopperSink
	DispatcherSink   dispatch.DispatcherSink
	ProxyServerSink  dispatch.ProxyServerSink
	ProxyClientSink  dispatch.ProxyClientSink
	NeighborhoodSink dispatch.NeighborhoodSink
}

// bindMsg, incipientMsg and inboundMsg are the three mailbox message
// shapes the actor loop switches on; unexported so only this package's
// Send methods can enqueue them, preserving the one-mailbox,
// FIFO-per-actor ordering spec.md §4.5/§5 require.
type bindMsg struct{ peers PeerActors }
type incipientMsg struct{ pkg onion.IncipientCoresPackage }
type inboundMsg struct{ ibcd dispatch.InboundClientData }

// Actor is the HopperActor: it owns one ConsumingService and one
// RoutingService, constructed lazily once BindMessage supplies their
// sink dependencies, and processes messages strictly in arrival order.
type Actor struct {
	engine      crypto.Engine
	isBootstrap bool
	logger      *slog.Logger

	mailbox chan any

	bound     bool
	consuming *dispatch.ConsumingService
	routing   *dispatch.RoutingService

	metrics *metrics.Metrics
}

// SetMetrics attaches m so the actor's mailbox and, once bound, its
// consuming/routing services record counters on it. Call before Run;
// nil-safe if never called.
func (a *Actor) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// New builds an unbound Actor. mailboxSize bounds the try-send
// mailbox; a typical value is small (tens to low hundreds) since the
// actor is meant to drain continuously.
func New(engine crypto.Engine, isBootstrap bool, logger *slog.Logger, mailboxSize int) *Actor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Actor{
		engine:      engine,
		isBootstrap: isBootstrap,
		logger:      logger,
		mailbox:     make(chan any, mailboxSize),
	}
}

// SendBind enqueues the one-time peer binding. Must be the first
// message the actor processes.
func (a *Actor) SendBind(peers PeerActors) error {
	return a.trySend(bindMsg{peers: peers})
}

// SendIncipient enqueues a locally originated package for the
// ConsumingService.
func (a *Actor) SendIncipient(pkg onion.IncipientCoresPackage) error {
	return a.trySend(incipientMsg{pkg: pkg})
}

// SendInbound enqueues inbound clandestine bytes for the
// RoutingService.
func (a *Actor) SendInbound(ibcd dispatch.InboundClientData) error {
	return a.trySend(inboundMsg{ibcd: ibcd})
}

// ToHopper implements dispatch.HopperSink: a zero-hop package
// consumed locally is handed straight back to this same actor's
// mailbox for routing, exactly like an inbound frame from the wire.
func (a *Actor) ToHopper(ibcd dispatch.InboundClientData) error {
	return a.SendInbound(ibcd)
}

func (a *Actor) trySend(msg any) error {
	select {
	case a.mailbox <- msg:
		return nil
	default:
		if a.metrics != nil {
			a.metrics.MailboxRejections.WithLabelValues("hopper").Inc()
		}
		return ErrMailboxFull
	}
}

// Run drains the mailbox until ctx is canceled, processing one message
// to completion before the next. It never returns a non-nil error for
// ordinary format/policy failures — those are handled and logged
// inside ConsumingService/RoutingService — only for context
// cancellation.
func (a *Actor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.mailbox:
			a.process(msg)
		}
	}
}

func (a *Actor) process(msg any) {
	switch m := msg.(type) {
	case bindMsg:
		if a.bound {
			a.fatal(fmt.Sprintf("hopper: %v", ErrAlreadyBound))
			return
		}
		consuming, err := dispatch.NewConsumingService(a.engine, a.isBootstrap, a.logger, m.peers.HopperSink, m.peers.DispatcherSink)
		if err != nil {
			a.fatal(fmt.Sprintf("hopper: bind consuming service: %v", err))
			return
		}
		routing, err := dispatch.NewRoutingService(a.engine, a.isBootstrap, a.logger, m.peers.DispatcherSink, m.peers.ProxyServerSink, m.peers.ProxyClientSink, m.peers.NeighborhoodSink)
		if err != nil {
			a.fatal(fmt.Sprintf("hopper: bind routing service: %v", err))
			return
		}
		if a.metrics != nil {
			consuming.SetMetrics(a.metrics)
			routing.SetMetrics(a.metrics)
		}
		a.consuming = consuming
		a.routing = routing
		a.bound = true

	case incipientMsg:
		if !a.bound {
			a.fatal("hopper: IncipientCoresPackage received before binding")
			return
		}
		if err := a.consuming.Consume(m.pkg); err != nil {
			a.fatal(fmt.Sprintf("hopper: sibling sink unreachable: %v", err))
		}

	case inboundMsg:
		if !a.bound {
			a.fatal("hopper: InboundClientData received before binding")
			return
		}
		if err := a.routing.Route(m.ibcd); err != nil {
			a.fatal(fmt.Sprintf("hopper: sibling sink unreachable: %v", err))
		}
	}
}

// fatal implements the error-taxonomy policy for programmer errors and
// sibling-actor-dead conditions (spec.md §7, classes 3 and 4): log and
// abort the process. A direct exit (rather than panic) ensures the
// abort cannot be silently swallowed by a recover() further up a
// goroutine's call stack.
func (a *Actor) fatal(msg string) {
	a.logger.Error(msg, logging.KeyComponent, "hopper")
	osExit(1)
}

// osExit is a var so tests can intercept process-abort behavior.
var osExit = os.Exit
