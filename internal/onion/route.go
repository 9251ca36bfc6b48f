package onion

import (
	"errors"
	"fmt"

	"github.com/hopcore/hopcore/internal/crypto"
	"github.com/hopcore/hopcore/internal/identity"
)

// ErrEmptyRoute is returned by Shift on a route with no hops left.
var ErrEmptyRoute = errors.New("onion: route has no hops")

// ErrRouteTooShort is returned by validation when a route's hop count
// falls below the minimum of 2.
var ErrRouteTooShort = errors.New("onion: route must have at least 2 hops")

// RouteError names the construction failures RouteSegment validation
// can produce.
type RouteError struct {
	Op  string
	Err error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("onion: %s: %v", e.Op, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// ErrInvalidSegments is the sentinel wrapped by a RouteError when a
// segment has fewer than 2 keys.
var ErrInvalidSegments = errors.New("route segment must name at least 2 keys")

// Route is an ordered, non-empty list of EncryptedHop. Invariant:
// len(Route) >= 2.
type Route []EncryptedHop

// RouteSegment names a leg of a route under construction: a sequence
// of peer keys and the component that should receive the package once
// it reaches the last key in the sequence.
type RouteSegment struct {
	Keys              []identity.Key
	TerminalComponent identity.Component
}

// Construct builds an end-to-end Route from one or more segments. Each
// segment's i-th key encrypts a hop naming the (i+1)-th key as next
// hop with component Hopper; the final key of the final segment
// encrypts a terminal hop naming itself as next hop with the segment's
// terminal component. Consecutive segments are expected to share their
// boundary key (the last key of segment m equal to the first key of
// segment m+1) so that the concatenated hops form one continuous path.
func Construct(segments []RouteSegment, engine crypto.Engine) (*Route, error) {
	if len(segments) == 0 {
		return nil, &RouteError{Op: "construct", Err: ErrInvalidSegments}
	}

	var hops Route
	for si, seg := range segments {
		if len(seg.Keys) < 2 {
			return nil, &RouteError{Op: "construct", Err: ErrInvalidSegments}
		}

		n := len(seg.Keys) - 1
		for i := 0; i < n; i++ {
			hop := Hop{NextKey: seg.Keys[i+1], Component: identity.ComponentHopper}
			eh, err := encodeHop(engine, seg.Keys[i], hop)
			if err != nil {
				return nil, fmt.Errorf("onion: construct hop %d of segment %d: %w", i, si, err)
			}
			hops = append(hops, eh)
		}

		if si == len(segments)-1 {
			last := seg.Keys[n]
			hop := Hop{NextKey: last, Component: seg.TerminalComponent}
			eh, err := encodeHop(engine, last, hop)
			if err != nil {
				return nil, fmt.Errorf("onion: construct terminal hop of segment %d: %w", si, err)
			}
			hops = append(hops, eh)
		}
	}

	if len(hops) < 2 {
		return nil, &RouteError{Op: "construct", Err: ErrRouteTooShort}
	}
	return &hops, nil
}

// Shift decrypts the leading hop using this node's private key,
// removes it from the front of the route, and appends a freshly
// generated garbage hop of identical ciphertext length at the tail.
// This preserves both the route's total length and the ciphertext
// length at every position, so an observer watching hop lengths alone
// cannot infer a packet's position along its route.
func (r *Route) Shift(engine crypto.Engine) (Hop, error) {
	if len(*r) == 0 {
		return Hop{}, ErrEmptyRoute
	}

	leading := (*r)[0]
	hop, err := decodeHop(engine, leading)
	if err != nil {
		return Hop{}, err
	}

	garbage, err := engine.RandomBytes(len(leading))
	if err != nil {
		return Hop{}, fmt.Errorf("onion: generate garbage hop: %w", err)
	}

	next := make(Route, 0, len(*r))
	next = append(next, (*r)[1:]...)
	next = append(next, EncryptedHop(garbage))
	*r = next

	return hop, nil
}

// Len returns the number of hops remaining in the route.
func (r Route) Len() int {
	return len(r)
}

// Clone returns an independent copy of the route's hop slice.
func (r Route) Clone() Route {
	out := make(Route, len(r))
	for i, h := range r {
		eh := make(EncryptedHop, len(h))
		copy(eh, h)
		out[i] = eh
	}
	return out
}
