package onion

import (
	"testing"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
)

func mustEngine(t *testing.T) *crypto.SealedEngine {
	t.Helper()
	e, err := crypto.GenerateSealedEngine()
	if err != nil {
		t.Fatalf("GenerateSealedEngine: %v", err)
	}
	return e
}

func TestConstructRejectsShortSegment(t *testing.T) {
	engine := mustEngine(t)
	var onlyKey identity.Key
	onlyKey[0] = 1

	_, err := Construct([]RouteSegment{{Keys: []identity.Key{onlyKey}, TerminalComponent: identity.ComponentNeighborhood}}, engine)
	if err == nil {
		t.Fatal("expected error for segment with fewer than 2 keys")
	}
}

func TestConstructRejectsEmptySegmentList(t *testing.T) {
	engine := mustEngine(t)
	if _, err := Construct(nil, engine); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

func TestRouteLengthPreservationAcrossShift(t *testing.T) {
	self := mustEngine(t)
	peer := mustEngine(t)

	route, err := Construct([]RouteSegment{{
		Keys:              []identity.Key{self.PublicKey(), peer.PublicKey()},
		TerminalComponent: identity.ComponentNeighborhood,
	}}, self)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	before := len(*route)
	lengths := make([]int, before)
	for i, h := range *route {
		lengths[i] = len(h)
	}

	if _, err := route.Shift(self); err != nil {
		t.Fatalf("Shift: %v", err)
	}

	if len(*route) != before {
		t.Fatalf("route length changed: got %d want %d", len(*route), before)
	}
	for i, h := range *route {
		if len(h) != lengths[0] {
			t.Fatalf("hop %d length = %d, want uniform length %d", i, len(h), lengths[0])
		}
	}
}

func TestOnionRoundTrip(t *testing.T) {
	k0 := mustEngine(t)
	k1 := mustEngine(t)
	k2 := mustEngine(t)

	route, err := Construct([]RouteSegment{{
		Keys:              []identity.Key{k0.PublicKey(), k1.PublicKey(), k2.PublicKey()},
		TerminalComponent: identity.ComponentProxyServer,
	}}, k0)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	hop0, err := route.Shift(k0)
	if err != nil {
		t.Fatalf("Shift at k0: %v", err)
	}
	if !hop0.NextKey.Equal(k1.PublicKey()) || hop0.Component != identity.ComponentHopper {
		t.Fatalf("hop0 = %+v, want next_key=k1 component=Hopper", hop0)
	}

	hop1, err := route.Shift(k1)
	if err != nil {
		t.Fatalf("Shift at k1: %v", err)
	}
	if !hop1.NextKey.Equal(k2.PublicKey()) || hop1.Component != identity.ComponentHopper {
		t.Fatalf("hop1 = %+v, want next_key=k2 component=Hopper", hop1)
	}

	hop2, err := route.Shift(k2)
	if err != nil {
		t.Fatalf("Shift at k2: %v", err)
	}
	if !hop2.NextKey.Equal(k2.PublicKey()) || hop2.Component != identity.ComponentProxyServer {
		t.Fatalf("hop2 = %+v, want next_key=k2 component=ProxyServer", hop2)
	}
}

func TestMultiSegmentConstruct(t *testing.T) {
	k0 := mustEngine(t)
	k1 := mustEngine(t)
	k2 := mustEngine(t)

	shared := k1.PublicKey()

	route, err := Construct([]RouteSegment{
		{Keys: []identity.Key{k0.PublicKey(), shared}, TerminalComponent: identity.ComponentHopper},
		{Keys: []identity.Key{shared, k2.PublicKey()}, TerminalComponent: identity.ComponentProxyClient},
	}, k0)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if len(*route) != 3 {
		t.Fatalf("len(route) = %d, want 3", len(*route))
	}

	hop0, err := route.Shift(k0)
	if err != nil {
		t.Fatalf("Shift at k0: %v", err)
	}
	if !hop0.NextKey.Equal(shared) || hop0.Component != identity.ComponentHopper {
		t.Fatalf("hop0 = %+v", hop0)
	}

	hop1, err := route.Shift(k1)
	if err != nil {
		t.Fatalf("Shift at k1: %v", err)
	}
	if !hop1.NextKey.Equal(k2.PublicKey()) || hop1.Component != identity.ComponentHopper {
		t.Fatalf("hop1 = %+v", hop1)
	}

	hop2, err := route.Shift(k2)
	if err != nil {
		t.Fatalf("Shift at k2: %v", err)
	}
	if !hop2.NextKey.Equal(k2.PublicKey()) || hop2.Component != identity.ComponentProxyClient {
		t.Fatalf("hop2 = %+v", hop2)
	}
}

func TestShiftEmptyRoute(t *testing.T) {
	engine := mustEngine(t)
	route := Route{}
	if _, err := route.Shift(engine); err == nil {
		t.Fatal("expected error shifting an empty route")
	}
}
