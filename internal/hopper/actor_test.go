package hopper

import (
	"context"
	"testing"
	"time"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/dispatch"
	"github.com/hopcore/hopcore/internal/identity"
	"github.com/hopcore/hopcore/internal/onion"
)

type fakeHopperSink struct{ n int }

func (f *fakeHopperSink) ToHopper(dispatch.InboundClientData) error { f.n++; return nil }

type fakeDispatcherSink struct{ n int }

func (f *fakeDispatcherSink) ToDispatcher(dispatch.TransmitDataMsg) error { f.n++; return nil }

type fakeProxySink struct{ n int }

func (f *fakeProxySink) ToProxyServer(onion.ExpiredCoresPackage) error { f.n++; return nil }
func (f *fakeProxySink) ToProxyClient(onion.ExpiredCoresPackage) error { f.n++; return nil }

type fakeNeighborhoodSink struct{ n int }

func (f *fakeNeighborhoodSink) ToNeighborhood(onion.ExpiredCoresPackagePackage) error {
	f.n++
	return nil
}

func mustEngine(t *testing.T) *crypto.SealedEngine {
	t.Helper()
	e, err := crypto.GenerateSealedEngine()
	if err != nil {
		t.Fatalf("GenerateSealedEngine: %v", err)
	}
	return e
}

func testPeers() PeerActors {
	return PeerActors{
		HopperSink:       &fakeHopperSink{},
		DispatcherSink:   &fakeDispatcherSink{},
		ProxyServerSink:  &fakeProxySink{},
		ProxyClientSink:  &fakeProxySink{},
		NeighborhoodSink: &fakeNeighborhoodSink{},
	}
}

func TestActorFatalsOnUseBeforeBinding(t *testing.T) {
	var exitCode int
	osExit = func(code int) { exitCode = code }
	defer func() { osExit = func(int) {} }()

	engine := mustEngine(t)
	a := New(engine, false, nil, 4)
	if err := a.SendIncipient(onion.IncipientCoresPackage{}); err != nil {
		t.Fatalf("SendIncipient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go a.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	if exitCode != 1 {
		t.Fatalf("expected fatal exit code 1 for use-before-binding, got %d", exitCode)
	}
}

func TestActorProcessesBoundMessagesFIFO(t *testing.T) {
	osExit = func(int) { t.Error("unexpected fatal exit") }
	defer func() { osExit = func(int) {} }()

	self := mustEngine(t)
	a := New(self, false, nil, 8)
	peers := testPeers()

	if err := a.SendBind(peers); err != nil {
		t.Fatalf("SendBind: %v", err)
	}

	route, err := onion.Construct([]onion.RouteSegment{{
		Keys:              []identity.Key{self.PublicKey(), self.PublicKey()},
		TerminalComponent: identity.ComponentNeighborhood,
	}}, self)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	pkg := onion.IncipientCoresPackage{
		Route:                  *route,
		Payload:                onion.PlainData("abcd"),
		PayloadDestinationKey: self.PublicKey(),
	}
	if err := a.SendIncipient(pkg); err != nil {
		t.Fatalf("SendIncipient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go a.Run(ctx)

	time.Sleep(30 * time.Millisecond)

	hopperSink := peers.HopperSink.(*fakeHopperSink)
	if hopperSink.n != 1 {
		t.Fatalf("expected 1 loopback delivery from zero-hop consume, got %d", hopperSink.n)
	}
}

func TestSendBindTwiceIsFatal(t *testing.T) {
	var exitCode int
	osExit = func(code int) { exitCode = code }
	defer func() { osExit = func(int) {} }()

	engine := mustEngine(t)
	a := New(engine, false, nil, 4)
	peers := testPeers()

	if err := a.SendBind(peers); err != nil {
		t.Fatalf("SendBind: %v", err)
	}
	if err := a.SendBind(peers); err != nil {
		t.Fatalf("SendBind (second): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go a.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	if exitCode != 1 {
		t.Fatalf("expected fatal exit code 1 for double bind, got %d", exitCode)
	}
}

func TestMailboxFullReturnsError(t *testing.T) {
	engine := mustEngine(t)
	a := New(engine, false, nil, 1)

	if err := a.SendIncipient(onion.IncipientCoresPackage{}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := a.SendIncipient(onion.IncipientCoresPackage{}); err == nil {
		t.Fatal("expected ErrMailboxFull on a saturated mailbox")
	}
}
