package discriminator

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/hopcore/hopcore/internal/identity"
)

var crlf = []byte("\r\n")

// HTTPChunkMasquerader disguises a clandestine frame as a single
// HTTP/1.1 chunked-transfer-encoding body chunk:
//
//	<hex size>\r\n<component byte><payload>\r\n
//
// so that clandestine traffic blends with ordinary chunked HTTP
// bodies on the wire, the same fingerprint-evasion idea the teacher
// applies at the transport layer (internal/transport/h2.go) rather
// than at the frame layer.
type HTTPChunkMasquerader struct{}

// NewHTTPChunkMasquerader returns an HTTPChunkMasquerader.
func NewHTTPChunkMasquerader() *HTTPChunkMasquerader {
	return &HTTPChunkMasquerader{}
}

// Name implements Masquerader.
func (m *HTTPChunkMasquerader) Name() string { return "http-chunk" }

// TryUnmask implements Masquerader.
func (m *HTTPChunkMasquerader) TryUnmask(frame []byte) (identity.Component, []byte, bool) {
	sep := bytes.Index(frame, crlf)
	if sep <= 0 {
		return 0, nil, false
	}

	size, err := strconv.ParseUint(string(frame[:sep]), 16, 32)
	if err != nil {
		return 0, nil, false
	}
	if size < 1 {
		return 0, nil, false
	}

	body := frame[sep+len(crlf):]
	want := int(size) + len(crlf)
	if len(body) != want {
		return 0, nil, false
	}
	if !bytes.Equal(body[size:], crlf) {
		return 0, nil, false
	}

	component := identity.Component(body[0])
	if !component.IsKnown() {
		return 0, nil, false
	}
	return component, body[1:size], true
}

// Mask implements Masquerader.
func (m *HTTPChunkMasquerader) Mask(component identity.Component, data []byte) ([]byte, error) {
	if !component.IsKnown() {
		return nil, fmt.Errorf("%w: %s: unknown component %d", ErrMasquerade, m.Name(), component)
	}

	size := 1 + len(data)
	var out bytes.Buffer
	fmt.Fprintf(&out, "%x\r\n", size)
	out.WriteByte(byte(component))
	out.Write(data)
	out.Write(crlf)
	return out.Bytes(), nil
}
