package config

import (
	"net"

	"github.com/hopcore/hopcore/internal/identity"
)

// Directory is a static transport.PeerDirectory built from Config.Peers.
type Directory struct {
	addrs map[identity.Key]net.Addr
}

// BuildDirectory parses every PeerConfig's key and address. Peers are
// assumed already validated (see Config.Validate); a malformed entry
// here is a programmer error, so the build is represented as returning
// an error rather than panicking, leaving the caller free to decide.
func BuildDirectory(peers []PeerConfig) (*Directory, error) {
	addrs := make(map[identity.Key]net.Addr, len(peers))
	for _, p := range peers {
		key, err := identity.ParseKey(p.Key)
		if err != nil {
			return nil, err
		}
		addr, err := net.ResolveTCPAddr("tcp", p.Address)
		if err != nil {
			return nil, err
		}
		addrs[key] = addr
	}
	return &Directory{addrs: addrs}, nil
}

// Resolve implements transport.PeerDirectory.
func (d *Directory) Resolve(key identity.Key) (net.Addr, bool) {
	addr, ok := d.addrs[key]
	return addr, ok
}
