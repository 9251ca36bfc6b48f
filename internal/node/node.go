// Package node wires the routing core (internal/hopper,
// internal/dispatch) to the network (internal/transport) and
// observability (internal/metrics) layers, forming one runnable
// hopcore node. It has no counterpart module in spec.md: spec.md §9
// leaves "the actors/processes ... that surround HopperActor" as an
// implementation detail, so this is where that detail lives.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hopcore/hopcore/internal/config"
	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/discriminator"
	"github.com/hopcore/hopcore/internal/hopper"
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
	"github.com/hopcore/hopcore/internal/onion"
	"github.com/hopcore/hopcore/internal/transport"
)

// terminalLogSink logs and drops deliveries to the three terminal
// components spec.md leaves as hand-off points (ProxyServer,
// ProxyClient, Neighborhood): no payload interpretation or gossip
// protocol is implemented here, per spec.md §1's Non-goals.
type terminalLogSink struct {
	logger *slog.Logger
}

func (s terminalLogSink) ToProxyServer(pkg onion.ExpiredCoresPackage) error {
	s.logger.Info("terminal delivery: proxy-server", logging.KeyComponent, "node", "payload_len", len(pkg.Payload))
	return nil
}

func (s terminalLogSink) ToProxyClient(pkg onion.ExpiredCoresPackage) error {
	s.logger.Info("terminal delivery: proxy-client", logging.KeyComponent, "node", "payload_len", len(pkg.Payload))
	return nil
}

func (s terminalLogSink) ToNeighborhood(pkg onion.ExpiredCoresPackagePackage) error {
	s.logger.Info("terminal delivery: neighborhood", logging.KeyComponent, "node",
		"payload_len", len(pkg.Expired.Payload), logging.KeyRemoteAddr, pkg.SenderIP.String())
	return nil
}

// Node is one running hopcore instance: the HopperActor message loop,
// its transport listener and dialer, and the metrics they share.
type Node struct {
	cfg     *config.Config
	engine  *crypto.SealedEngine
	logger  *slog.Logger
	metrics *metrics.Metrics

	actor    *hopper.Actor
	listener *transport.Listener
	dialer   *transport.Dialer
}

// New builds a Node from cfg but does not start it.
func New(cfg *config.Config) (*Node, error) {
	engine, err := config.ResolveEngine(cfg.Node)
	if err != nil {
		return nil, fmt.Errorf("node: resolve engine: %w", err)
	}

	logger := logging.NewLogger(cfg.Node.LogLevel, cfg.Node.LogFormat)
	m := metrics.NewMetrics()

	masqueraders, err := config.BuildMasqueraders(cfg.Discriminator.Masqueraders)
	if err != nil {
		return nil, fmt.Errorf("node: build masqueraders: %w", err)
	}
	factory := discriminator.NewFactory(masqueraders, nil)
	factory.SetMetrics(m)

	directory, err := config.BuildDirectory(cfg.Peers)
	if err != nil {
		return nil, fmt.Errorf("node: build peer directory: %w", err)
	}

	actor := hopper.New(engine, cfg.Node.IsBootstrapNode, logger, 256)
	actor.SetMetrics(m)

	dialer := transport.NewDialer(directory, factory, masqueraders[0], config.DialTimeout, logger)
	dialer.SetMetrics(m)

	ln, err := net.Listen("tcp", cfg.Listen.Address)
	if err != nil {
		return nil, fmt.Errorf("node: listen on %s: %w", cfg.Listen.Address, err)
	}
	listener := transport.NewListener(ln, factory, masqueraders[0], actor, logger)
	listener.SetMetrics(m)

	sinks := hopper.PeerActors{
		HopperSink:       actor,
		DispatcherSink:   dialer,
		ProxyServerSink:  terminalLogSink{logger: logger},
		ProxyClientSink:  terminalLogSink{logger: logger},
		NeighborhoodSink: terminalLogSink{logger: logger},
	}
	if err := actor.SendBind(sinks); err != nil {
		return nil, fmt.Errorf("node: bind peer actors: %w", err)
	}

	return &Node{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		metrics:  m,
		actor:    actor,
		listener: listener,
		dialer:   dialer,
	}, nil
}

// PublicKey returns this node's long-term public key.
func (n *Node) PublicKey() identity.Key {
	return n.engine.PublicKey()
}

// Metrics returns the node's metrics registry, e.g. for wiring an
// HTTP /metrics endpoint.
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Run starts the HopperActor loop and the TCP listener, blocking until
// ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() { errCh <- n.actor.Run(ctx) }()
	go func() { errCh <- n.listener.Serve(ctx) }()

	n.logger.Info("node started", logging.KeyComponent, "node", "listen_address", n.cfg.Listen.Address)

	<-ctx.Done()
	_ = n.listener.Close()
	_ = n.dialer.Close()

	// Drain both goroutines' exit errors without blocking shutdown
	// longer than necessary.
	timeout := time.NewTimer(time.Second)
	defer timeout.Stop()
	for i := 0; i < 2; i++ {
		select {
		case <-errCh:
		case <-timeout.C:
			return ctx.Err()
		}
	}
	return ctx.Err()
}
