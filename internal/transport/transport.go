// Package transport is the byte-stream-handling thread spec.md §5
// describes: it owns raw net.Conns, reassembles frames through a
// per-connection discriminator.Discriminator, and feeds the decoded
// InboundClientData to a bound hopper.Actor. On the outbound side it
// resolves a dispatch.Endpoint to a live connection and masks
// TransmitDataMsg bytes back onto the wire.
//
// Deliberately minimal, per spec.md §1: no reconnection policy, no
// backoff, no multiplexed transport variants. One TCP connection per
// peer, retried only at the caller's discretion.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hopcore/hopcore/internal/discriminator"
	"github.com/hopcore/hopcore/internal/dispatch"
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/logging"
	"github.com/hopcore/hopcore/internal/metrics"
)

// Inbound is the sink a Listener feeds decoded frames to; satisfied by
// *hopper.Actor.SendInbound.
type Inbound interface {
	SendInbound(dispatch.InboundClientData) error
}

// readBufferSize is the chunk size used for each Read call on an
// accepted connection.
const readBufferSize = 32 * 1024

// indicatesDeadStream reports whether err signals that the underlying
// connection is no longer usable and should be torn down, as opposed
// to a transient condition a caller might retry. EOF and any
// net.Error that isn't flagged Timeout are both treated as dead: this
// package has no retry policy of its own (spec.md §1), so "transient"
// here only distinguishes a clean timeout from everything else.
func indicatesDeadStream(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return true
}

// peerStream is one accepted or dialed connection's bookkeeping.
type peerStream struct {
	id     uint64
	conn   net.Conn
	disc   *discriminator.Discriminator
	closed atomic.Bool
	once   sync.Once
}

func (p *peerStream) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		err = p.conn.Close()
	})
	return err
}

// Listener accepts TCP connections, demultiplexes each through a
// fresh Discriminator, and forwards completed chunks to the bound
// Inbound sink.
type Listener struct {
	ln       net.Listener
	factory  *discriminator.Factory
	inbound  Inbound
	logger   *slog.Logger
	maskWith discriminator.Masquerader

	mu      sync.RWMutex
	streams map[uint64]*peerStream
	nextID  atomic.Uint64
	running atomic.Bool

	metrics *metrics.Metrics
}

// SetMetrics attaches m so the listener records connection and frame
// counters on it. Nil-safe if never called.
func (l *Listener) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// StreamCount returns the number of currently tracked inbound streams.
func (l *Listener) StreamCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.streams)
}

// NewListener wraps ln. factory produces one Discriminator per
// accepted connection; maskWith is the masquerader used to encode
// outbound frames written via WriteTo.
func NewListener(ln net.Listener, factory *discriminator.Factory, maskWith discriminator.Masquerader, inbound Inbound, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Listener{
		ln:       ln,
		factory:  factory,
		inbound:  inbound,
		logger:   logger,
		maskWith: maskWith,
		streams:  make(map[uint64]*peerStream),
	}
}

// Serve accepts connections until ctx is canceled or the listener is
// closed. Accept errors are logged and do not terminate the listener:
// per spec.md §7, byte-stream-handling failures are isolated to the
// one affected connection, never the whole node.
func (l *Listener) Serve(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		l.ln.Close()
		return ctx.Err()
	})

	g.Go(func() error {
		for {
			conn, err := l.ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("transport: accept failed", logging.KeyError, err)
				continue
			}
			stream := l.newStream(conn)
			g.Go(func() error {
				l.readLoop(ctx, stream)
				return nil
			})
		}
	})

	return g.Wait()
}

func (l *Listener) newStream(conn net.Conn) *peerStream {
	id := l.nextID.Add(1)
	stream := &peerStream{id: id, conn: conn, disc: l.factory.New()}

	l.mu.Lock()
	l.streams[id] = stream
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ConnectionsAccepted.Inc()
		l.metrics.ConnectionsActive.Inc()
	}
	return stream
}

func (l *Listener) dropStream(stream *peerStream) {
	stream.Close()
	l.mu.Lock()
	delete(l.streams, stream.id)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ConnectionsActive.Dec()
	}
}

func (l *Listener) readLoop(ctx context.Context, stream *peerStream) {
	defer l.dropStream(stream)

	peerAddr := stream.conn.RemoteAddr()
	buf := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := stream.conn.Read(buf)
		if n > 0 {
			stream.disc.AddData(buf[:n])
			l.drainChunks(stream, peerAddr)
		}
		if err != nil {
			if indicatesDeadStream(err) {
				return
			}
			l.logger.Error("transport: transient read error", logging.KeyError, err, logging.KeyRemoteAddr, peerAddr.String())
			continue
		}
	}
}

func (l *Listener) drainChunks(stream *peerStream, peerAddr net.Addr) {
	for {
		component, payload, ok := stream.disc.TakeChunk()
		if !ok {
			return
		}

		ibcd := dispatch.InboundClientData{
			PeerAddr:      peerAddr,
			IsClandestine: component == identity.ComponentHopper,
			Data:          payload,
		}
		if err := l.inbound.SendInbound(ibcd); err != nil {
			l.logger.Error("transport: hopper mailbox rejected inbound frame", logging.KeyError, err, logging.KeyRemoteAddr, peerAddr.String())
		}
	}
}

// WriteTo masks payload for component and writes it to the
// connection registered under streamID, if still open.
func (l *Listener) WriteTo(streamID uint64, component identity.Component, payload []byte) error {
	l.mu.RLock()
	stream, ok := l.streams[streamID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no active stream %d", streamID)
	}

	frame, err := stream.disc.Mask(l.maskWith, component, payload)
	if err != nil {
		return fmt.Errorf("transport: mask frame: %w", err)
	}
	_, err = stream.conn.Write(frame)
	return err
}

// Close tears down every tracked connection and the listening socket.
func (l *Listener) Close() error {
	l.mu.Lock()
	for id, stream := range l.streams {
		stream.Close()
		delete(l.streams, id)
	}
	l.mu.Unlock()
	return l.ln.Close()
}
