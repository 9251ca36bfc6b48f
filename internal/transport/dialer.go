package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hopcore/hopcore/internal/discriminator"
	"github.com/hopcore/hopcore/internal/dispatch"
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
)

// PeerDirectory resolves a key-addressed Endpoint to a dialable socket
// address. The dispatcher consults it only when no live connection to
// that key already exists.
type PeerDirectory interface {
	Resolve(key identity.Key) (net.Addr, bool)
}

// Dialer implements dispatch.DispatcherSink: it owns one outbound
// connection per peer key, dialing lazily and reusing the connection
// for subsequent TransmitDataMsg deliveries addressed to the same key.
type Dialer struct {
	dial       func(ctx context.Context, addr net.Addr) (net.Conn, error)
	directory  PeerDirectory
	factory    *discriminator.Factory
	maskWith   discriminator.Masquerader
	logger     *slog.Logger
	connectTTL time.Duration

	mu    sync.Mutex
	peers map[identity.Key]*peerStream

	metrics *metrics.Metrics
}

// SetMetrics attaches m so subsequent dial attempts record failure
// counters on it. Nil-safe if never called.
func (d *Dialer) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// PeerCount returns the number of peers with a currently open outbound
// connection.
func (d *Dialer) PeerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.peers)
}

// NewDialer builds a Dialer. connectTTL bounds each dial attempt.
func NewDialer(directory PeerDirectory, factory *discriminator.Factory, maskWith discriminator.Masquerader, connectTTL time.Duration, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	var d net.Dialer
	return &Dialer{
		dial: func(ctx context.Context, addr net.Addr) (net.Conn, error) {
			return d.DialContext(ctx, addr.Network(), addr.String())
		},
		directory:  directory,
		factory:    factory,
		maskWith:   maskWith,
		logger:     logger,
		connectTTL: connectTTL,
		peers:      make(map[identity.Key]*peerStream),
	}
}

// ToDispatcher implements dispatch.DispatcherSink: it resolves msg's
// Endpoint to a connection (dialing on first use, reusing thereafter),
// masks the payload, and writes it. Endpoint resolution failure and
// write failure are both logged and swallowed: spec.md §7 classifies
// a dispatch delivery failure as isolated to the affected peer, not
// fatal to the node.
func (d *Dialer) ToDispatcher(msg dispatch.TransmitDataMsg) error {
	key, isKeyed := msg.Endpoint.Key()
	if !isKeyed {
		addr, _ := msg.Endpoint.Socket()
		return d.writeDirect(addr, msg)
	}

	stream, err := d.streamFor(key)
	if err != nil {
		d.logger.Error("transport: dial failed", logging.KeyError, err, logging.KeyPeerKey, key.ShortString())
		if d.metrics != nil {
			d.metrics.DialFailures.Inc()
		}
		return nil
	}

	frame, err := stream.disc.Mask(d.maskWith, identity.ComponentHopper, msg.Data)
	if err != nil {
		d.logger.Error("transport: mask outbound frame failed", logging.KeyError, err)
		return nil
	}
	if _, err := stream.conn.Write(frame); err != nil {
		d.logger.Error("transport: write failed, dropping connection", logging.KeyError, err, logging.KeyPeerKey, key.ShortString())
		d.drop(key, stream)
	}
	return nil
}

func (d *Dialer) writeDirect(addr net.Addr, msg dispatch.TransmitDataMsg) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.connectTTL)
	defer cancel()

	conn, err := d.dial(ctx, addr)
	if err != nil {
		d.logger.Error("transport: direct dial failed", logging.KeyError, err, logging.KeyRemoteAddr, addr.String())
		return nil
	}
	defer conn.Close()

	disc := d.factory.New()
	frame, err := disc.Mask(d.maskWith, identity.ComponentHopper, msg.Data)
	if err != nil {
		d.logger.Error("transport: mask direct frame failed", logging.KeyError, err)
		return nil
	}
	if _, err := conn.Write(frame); err != nil {
		d.logger.Error("transport: direct write failed", logging.KeyError, err, logging.KeyRemoteAddr, addr.String())
	}
	return nil
}

func (d *Dialer) streamFor(key identity.Key) (*peerStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stream, ok := d.peers[key]; ok && !stream.closed.Load() {
		return stream, nil
	}

	addr, ok := d.directory.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("transport: no known address for peer %s", key.ShortString())
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.connectTTL)
	defer cancel()

	conn, err := d.dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	stream := &peerStream{conn: conn, disc: d.factory.New()}
	d.peers[key] = stream
	return stream, nil
}

func (d *Dialer) drop(key identity.Key, stream *peerStream) {
	stream.Close()
	d.mu.Lock()
	if current, ok := d.peers[key]; ok && current == stream {
		delete(d.peers, key)
	}
	d.mu.Unlock()
}

// Close tears down every outbound connection the Dialer owns.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, stream := range d.peers {
		stream.Close()
		delete(d.peers, key)
	}
	return nil
}
