package netconn

import (
	"net"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"vision-node/common"
)

// ParentFetchLimiter bounds how many distinct parent-fetch requests one
// peer can trigger per window: up to MaxParentRequestsPerPeer distinct
// parent hashes per ParentRequestWindow.
type ParentFetchLimiter struct {
	mu       sync.Mutex
	seen     map[string]mapset.Set // nodeID -> set of requested parent hashes
	windowAt map[string]time.Time
}

const (
	MaxParentRequestsPerPeer = 10
	ParentRequestWindow      = 60 * time.Second
)

// NewParentFetchLimiter constructs an empty limiter.
func NewParentFetchLimiter() *ParentFetchLimiter {
	return &ParentFetchLimiter{
		seen:     make(map[string]mapset.Set),
		windowAt: make(map[string]time.Time),
	}
}

// Allow reports whether nodeID may request parentHash right now, recording
// the request if so. The per-peer set resets once ParentRequestWindow has
// elapsed since it was first populated.
func (l *ParentFetchLimiter) Allow(nodeID string, parentHash common.Hash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if started, ok := l.windowAt[nodeID]; !ok || now.Sub(started) > ParentRequestWindow {
		l.seen[nodeID] = mapset.NewSet()
		l.windowAt[nodeID] = now
	}

	set := l.seen[nodeID]
	key := parentHash.Hex()
	if set.Contains(key) {
		return true // already requested this one, no new slot consumed
	}
	if set.Cardinality() >= MaxParentRequestsPerPeer {
		return false
	}
	set.Add(key)
	return true
}

// diversityFilter keeps at most max entries and drops duplicates and
// entries sharing a /24 with one already kept, matching spec.md §4.6's
// "diversity and IPv4-publicness filters" for peer exchange.
func diversityFilter(peers []PeerInfo, max int) []PeerInfo {
	seenNode := mapset.NewSet()
	seenSubnet := mapset.NewSet()
	out := make([]PeerInfo, 0, max)
	for _, p := range peers {
		if len(out) >= max {
			break
		}
		if p.NodeID == "" || seenNode.Contains(p.NodeID) {
			continue
		}
		if !isPublicIPv4(p.Address) {
			continue
		}
		subnet := subnet24(p.Address)
		if seenSubnet.Contains(subnet) {
			continue
		}
		seenNode.Add(p.NodeID)
		seenSubnet.Add(subnet)
		out = append(out, p)
	}
	return out
}

func isPublicIPv4(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return !(v4.IsPrivate() || v4.IsLoopback() || v4.IsLinkLocalUnicast() || v4.IsUnspecified())
}

func subnet24(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return addr
	}
	return strings.Join(parts[:3], ".")
}
