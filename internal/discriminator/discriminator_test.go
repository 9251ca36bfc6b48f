package discriminator

import (
	"bytes"
	"testing"

	"github.com/hopcore/hopcore/internal/identity"
)

type stubMasquerader struct {
	name    string
	result  []byte
	comp    identity.Component
	matches bool
	invoked int
}

func (s *stubMasquerader) Name() string { return s.name }

func (s *stubMasquerader) TryUnmask(frame []byte) (identity.Component, []byte, bool) {
	s.invoked++
	if !s.matches {
		return 0, nil, false
	}
	return s.comp, s.result, true
}

func (s *stubMasquerader) Mask(component identity.Component, data []byte) ([]byte, error) {
	return data, nil
}

// S6 — discriminator selection.
func TestTakeChunkFirstMatchWins(t *testing.T) {
	framer := NewLengthPrefixedFramer()
	framer.AddData(EncodeFrame([]byte("booga")))

	m1 := &stubMasquerader{name: "m1", matches: true, comp: identity.ComponentProxyClient, result: []byte("choose me")}
	m2 := &stubMasquerader{name: "m2", matches: true, comp: identity.ComponentProxyServer, result: []byte("don't choose me")}

	d := NewDiscriminator(framer, []Masquerader{m1, m2})

	comp, payload, ok := d.TakeChunk()
	if !ok {
		t.Fatal("expected a chunk")
	}
	if comp != identity.ComponentProxyClient || string(payload) != "choose me" {
		t.Fatalf("got (%v, %q), want (ProxyClient, %q)", comp, payload, "choose me")
	}
	if m2.invoked != 0 {
		t.Fatalf("second masquerader was invoked %d times, want 0", m2.invoked)
	}
}

func TestTakeChunkNoMatchDropsFrame(t *testing.T) {
	framer := NewLengthPrefixedFramer()
	framer.AddData(EncodeFrame([]byte("unrecognized")))

	m1 := &stubMasquerader{name: "m1", matches: false}
	d := NewDiscriminator(framer, []Masquerader{m1})

	if _, _, ok := d.TakeChunk(); ok {
		t.Fatal("expected no match")
	}
	// The frame was consumed even though no masquerader claimed it.
	framer.AddData(EncodeFrame([]byte("next")))
	if frame, ok := framer.TakeFrame(); !ok || string(frame) != "next" {
		t.Fatalf("expected the next frame to be %q, got (%q, %v)", "next", frame, ok)
	}
}

func TestNewDiscriminatorPanicsOnEmptyMasqueraderList(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic constructing a discriminator with no masqueraders")
		}
	}()
	NewDiscriminator(NewLengthPrefixedFramer(), nil)
}

func TestNativeMasqueraderRoundTrip(t *testing.T) {
	m := NewNativeMasquerader()
	masked, err := m.Mask(identity.ComponentHopper, []byte("payload"))
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	comp, payload, ok := m.TryUnmask(masked)
	if !ok || comp != identity.ComponentHopper || !bytes.Equal(payload, []byte("payload")) {
		t.Fatalf("got (%v, %q, %v)", comp, payload, ok)
	}
}

func TestHTTPChunkMasqueraderRoundTrip(t *testing.T) {
	m := NewHTTPChunkMasquerader()
	masked, err := m.Mask(identity.ComponentProxyServer, []byte("clandestine"))
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	comp, payload, ok := m.TryUnmask(masked)
	if !ok || comp != identity.ComponentProxyServer || !bytes.Equal(payload, []byte("clandestine")) {
		t.Fatalf("got (%v, %q, %v)", comp, payload, ok)
	}
}

func TestHTTPChunkMasqueraderRejectsNativeFrame(t *testing.T) {
	native := NewNativeMasquerader()
	masked, err := native.Mask(identity.ComponentHopper, []byte("x"))
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	httpM := NewHTTPChunkMasquerader()
	if _, _, ok := httpM.TryUnmask(masked); ok {
		t.Fatal("expected http-chunk masquerader to reject a native-masqueraded frame")
	}
}

func TestFactoryProducesFreshFramerPerDiscriminator(t *testing.T) {
	factory := NewFactory([]Masquerader{NewNativeMasquerader()}, nil)

	d1 := factory.New()
	d1.AddData(EncodeFrame([]byte("x")))

	d2 := factory.New()
	if _, _, ok := d2.TakeChunk(); ok {
		t.Fatal("expected a fresh discriminator to have no buffered data from another connection")
	}
}
