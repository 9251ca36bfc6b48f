package identity

import "testing"

func TestParseKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"[:64], false},
		{"with 0x prefix", "0x" + "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", false},
		{"with whitespace", "  00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff  ", false},
		{"too short", "abcd", true},
		{"not hex", "zz112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && k.String() == "" {
				t.Fatal("expected non-empty string representation")
			}
		})
	}
}

func TestKeyFromBytesLengthCheck(t *testing.T) {
	if _, err := KeyFromBytes(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short byte slice")
	}
	if _, err := KeyFromBytes(make([]byte, KeySize)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKeyEqualAndZero(t *testing.T) {
	var a, b Key
	if !a.IsZero() {
		t.Fatal("zero-value key should report IsZero")
	}
	a[0] = 1
	if a.Equal(b) {
		t.Fatal("keys differing in one byte must not be equal")
	}
	b[0] = 1
	if !a.Equal(b) {
		t.Fatal("identical keys must be equal")
	}
}

func TestKeyCBORRoundTrip(t *testing.T) {
	var k Key
	for i := range k {
		k[i] = byte(i)
	}

	data, err := k.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}

	var decoded Key
	if err := decoded.UnmarshalCBOR(data); err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}

	if decoded != k {
		t.Fatalf("round trip mismatch: got %x want %x", decoded, k)
	}
}

func TestComponentString(t *testing.T) {
	cases := map[Component]string{
		ComponentProxyServer:  "ProxyServer",
		ComponentProxyClient:  "ProxyClient",
		ComponentHopper:       "Hopper",
		ComponentNeighborhood: "Neighborhood",
		Component(200):        "Unknown",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Errorf("Component(%d).String() = %q, want %q", c, got, want)
		}
	}
}
