package node

import (
	"encoding/json"
	"net/http"
)

// Stats mirrors what an operator needs to confirm a node is alive and
// routing, grounded on the health-check JSON shape a control process
// polls over HTTP.
type Stats struct {
	Status          string `json:"status"`
	Running         bool   `json:"running"`
	PublicKey       string `json:"public_key"`
	IsBootstrapNode bool   `json:"is_bootstrap_node"`
	ListenAddress   string `json:"listen_address"`
	InboundStreams  int    `json:"inbound_streams"`
	OutboundPeers   int    `json:"outbound_peers"`
	BytesRelayed    uint64 `json:"bytes_relayed"`
}

// Stats reports the node's current status. Safe to call concurrently
// with Run.
func (n *Node) Stats() Stats {
	return Stats{
		Status:          "healthy",
		Running:         true,
		PublicKey:       n.engine.PublicKey().String(),
		IsBootstrapNode: n.cfg.Node.IsBootstrapNode,
		ListenAddress:   n.cfg.Listen.Address,
		InboundStreams:  n.listener.StreamCount(),
		OutboundPeers:   n.dialer.PeerCount(),
		BytesRelayed:    n.metrics.BytesRelayed(),
	}
}

// HealthHandler serves Stats as JSON on /healthz, in the shape the
// "status" CLI subcommand expects.
func (n *Node) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(n.Stats())
	}
}
