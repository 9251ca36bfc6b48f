package onion

import (
	"bytes"
	"testing"

	"github.com/hopcore/hopcore/internal/identity"
)

func TestIncipientToLiveToExpiredRoundTrip(t *testing.T) {
	self := mustEngine(t)

	route, err := Construct([]RouteSegment{{
		Keys:              []identity.Key{self.PublicKey(), self.PublicKey()},
		TerminalComponent: identity.ComponentNeighborhood,
	}}, self)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	incipient := IncipientCoresPackage{
		Route:                  *route,
		Payload:                PlainData("abcd"),
		PayloadDestinationKey: self.PublicKey(),
	}

	live, err := incipient.ToLive(self)
	if err != nil {
		t.Fatalf("ToLive: %v", err)
	}

	expired, err := live.ToExpired(self)
	if err != nil {
		t.Fatalf("ToExpired: %v", err)
	}

	if !bytes.Equal(expired.Payload, incipient.Payload) {
		t.Fatalf("payload mismatch: got %q want %q", expired.Payload, incipient.Payload)
	}
}
