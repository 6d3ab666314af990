package vision

import (
	"errors"
	"net"

	"vision-node/netconn"
	"vision-node/peer"
)

var errSelfConnect = errors.New("vision: refusing to connect to self")

// localHandshake builds the Handshake this node presents to every peer,
// outbound or inbound, per spec.md §4.6's field list.
func (n *Node) localHandshake() *netconn.Handshake {
	_, height := n.state.Tip()
	seeds := make([]string, 0, len(n.cfg.Seeds))
	for _, s := range n.cfg.Seeds {
		seeds = append(seeds, s.Address)
	}
	return &netconn.Handshake{
		ProtocolVersion:           n.cfg.MaxProtocolVersion,
		ChainID:                   n.identity.ChainID,
		GenesisHash:               n.identity.GenesisHash,
		NodeNonce:                 n.nonce,
		ChainHeight:               height,
		NodeVersion:               n.cfg.NodeVersion,
		NetworkID:                 n.identity.NetworkID,
		NodeBuild:                 n.identity.NodeBuild,
		NodeTag:                   n.cfg.NodeTag,
		NodeID:                    n.cfg.NodeID,
		Role:                      n.cfg.Role,
		EBID:                      n.cfg.EBID,
		BootstrapCheckpointHeight: n.identity.BootstrapCheckpointHeight,
		BootstrapCheckpointHash:   n.identity.BootstrapCheckpointHash,
		BootstrapPrefix:           n.identity.BootstrapPrefix,
		SeedPeers:                 seeds,
		EconHash:                  n.identity.EconHash,
	}
}

// dial opens a raw connection, negotiates and validates the handshake, and
// records the result against the peer manager before handing the plain
// net.Conn back to the outbound maintainer for admission.
func (n *Node) dial(address string) (net.Conn, error) {
	raw, err := net.DialTimeout("tcp", address, n.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	remote, err := netconn.Negotiate(raw, netconn.DirectionOutbound, n.localHandshake())
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	if netconn.IsSelfConnect(n.nonce, remote.NodeNonce) {
		_ = raw.Close()
		return nil, errSelfConnect
	}
	if err := n.identity.Validate(remote); err != nil {
		_ = raw.Close()
		n.peers.RecordMisbehavior(remote.NodeID, peer.MisbehaviorBadHandshake)
		return nil, err
	}
	n.recordHandshake(remote, address, peer.StateConnected)
	return raw, nil
}

// handleInbound negotiates an inbound handshake, admits the connection, and
// runs its message loop until it closes or is evicted.
func (n *Node) handleInbound(raw net.Conn) {
	remote, err := netconn.Negotiate(raw, netconn.DirectionInbound, n.localHandshake())
	if err != nil {
		n.log.Debug("inbound handshake failed", "remote", raw.RemoteAddr(), "err", err)
		_ = raw.Close()
		return
	}
	if netconn.IsSelfConnect(n.nonce, remote.NodeNonce) {
		_ = raw.Close()
		return
	}
	if err := n.identity.Validate(remote); err != nil {
		n.log.Debug("inbound handshake rejected", "node", remote.NodeID, "err", err)
		n.peers.RecordMisbehavior(remote.NodeID, peer.MisbehaviorBadHandshake)
		_ = raw.Close()
		return
	}

	host, _, _ := net.SplitHostPort(raw.RemoteAddr().String())
	n.recordHandshake(remote, host, peer.StateConnected)

	wrapped := &netconn.Conn{Conn: raw, NodeID: remote.NodeID, Direction: netconn.DirectionInbound}
	if !n.conns.Admit(wrapped) {
		return
	}
	n.serve(wrapped)
}

func (n *Node) recordHandshake(remote *netconn.Handshake, address string, state peer.State) {
	n.peers.RecordHandshake(remote.NodeID, address, remote.AdvertisedPort, peer.Identity{
		ChainID:         remote.ChainID,
		GenesisHash:     remote.GenesisHash,
		ProtocolVersion: remote.ProtocolVersion,
		NodeBuild:       remote.NodeBuild,
		BootstrapPrefix: remote.BootstrapPrefix,
	}, remote.ChainHeight, state)
}

// serve runs a connection's read/dispatch/reply loop until it errors or is
// closed by its peer, then deregisters it.
func (n *Node) serve(c *netconn.Conn) {
	defer func() {
		n.conns.Remove(c.NodeID, c)
		_ = c.Close()
	}()
	for {
		env, err := netconn.ReadMessage(c)
		if err != nil {
			n.log.Debug("connection closed", "node", c.NodeID, "err", err)
			return
		}
		reply, err := n.dispatcher.Handle(c.NodeID, env)
		if err != nil {
			n.log.Debug("message handling failed", "node", c.NodeID, "type", env.Type, "err", err)
			continue
		}
		if reply == nil {
			continue
		}
		if reply.Type != "" {
			if err := netconn.WriteMessage(c, reply.Type, reply.Payload); err != nil {
				n.log.Debug("reply write failed", "node", c.NodeID, "err", err)
				return
			}
		}
		if reply.Close {
			n.log.Debug("disconnecting peer", "node", c.NodeID, "reason", env.Type)
			return
		}
	}
}
