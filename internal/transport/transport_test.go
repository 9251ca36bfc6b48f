package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hopcore/hopcore/internal/discriminator"
	"github.com/hopcore/hopcore/internal/dispatch"
	"github.com/hopcore/hopcore/internal/identity"
)

func testFactory() *discriminator.Factory {
	return discriminator.NewFactory([]discriminator.Masquerader{discriminator.NewNativeMasquerader()}, nil)
}

type recordingInbound struct {
	mu       sync.Mutex
	received []dispatch.InboundClientData
}

func (r *recordingInbound) SendInbound(ibcd dispatch.InboundClientData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, ibcd)
	return nil
}

func (r *recordingInbound) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestListenerDeliversDecodedFrameToInbound(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	inbound := &recordingInbound{}
	native := discriminator.NewNativeMasquerader()
	listener := NewListener(ln, testFactory(), native, inbound, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go listener.Serve(ctx)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	masked, err := native.Mask(identity.ComponentHopper, []byte("payload"))
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	if _, err := conn.Write(discriminator.EncodeFrame(masked)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if inbound.count() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if inbound.count() != 1 {
		t.Fatalf("expected 1 delivered frame, got %d", inbound.count())
	}
	got := inbound.received[0]
	if string(got.Data) != "payload" {
		t.Fatalf("got payload %q, want %q", got.Data, "payload")
	}
	if !got.IsClandestine {
		t.Fatal("expected IsClandestine true for a Hopper-component frame")
	}
}

func TestIndicatesDeadStreamClassification(t *testing.T) {
	if !indicatesDeadStream(io.EOF) {
		t.Fatal("io.EOF should be classified as a dead stream")
	}
	if !indicatesDeadStream(net.ErrClosed) {
		t.Fatal("net.ErrClosed should be classified as a dead stream")
	}
	if indicatesDeadStream(nil) {
		t.Fatal("nil should not be classified as a dead stream")
	}

	timeoutErr := &net.OpError{Err: errTimeout{}}
	if indicatesDeadStream(timeoutErr) {
		t.Fatal("a timeout net.Error should not be classified as a dead stream")
	}
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

type staticDirectory struct {
	addr net.Addr
	key  identity.Key
}

func (s staticDirectory) Resolve(key identity.Key) (net.Addr, bool) {
	if key.Equal(s.key) {
		return s.addr, true
	}
	return nil, false
}

func TestDialerRoundTripsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	inbound := &recordingInbound{}
	native := discriminator.NewNativeMasquerader()
	listener := NewListener(ln, testFactory(), native, inbound, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Serve(ctx)

	var peerKey identity.Key
	peerKey[0] = 0x42
	directory := staticDirectory{addr: ln.Addr(), key: peerKey}

	dialer := NewDialer(directory, testFactory(), native, time.Second, nil)
	defer dialer.Close()

	err = dialer.ToDispatcher(dispatch.TransmitDataMsg{
		Endpoint: dispatch.KeyEndpoint(peerKey),
		Data:     []byte("onward"),
	})
	if err != nil {
		t.Fatalf("ToDispatcher: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if inbound.count() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if inbound.count() != 1 {
		t.Fatalf("expected 1 delivered frame, got %d", inbound.count())
	}
	if string(inbound.received[0].Data) != "onward" {
		t.Fatalf("got payload %q, want %q", inbound.received[0].Data, "onward")
	}
}

func TestDialerResolveFailureIsNonFatal(t *testing.T) {
	directory := staticDirectory{}
	native := discriminator.NewNativeMasquerader()
	dialer := NewDialer(directory, testFactory(), native, 100*time.Millisecond, nil)

	var unknownKey identity.Key
	unknownKey[0] = 0x99
	err := dialer.ToDispatcher(dispatch.TransmitDataMsg{
		Endpoint: dispatch.KeyEndpoint(unknownKey),
		Data:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("ToDispatcher should swallow resolution failures, got %v", err)
	}
}

func TestListenerWriteToUnknownStreamFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	listener := NewListener(ln, testFactory(), discriminator.NewNativeMasquerader(), &recordingInbound{}, nil)
	if err := listener.WriteTo(999, identity.ComponentHopper, []byte("x")); err == nil {
		t.Fatal("expected an error writing to an unregistered stream id")
	}
}
