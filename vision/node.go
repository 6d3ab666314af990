// Package vision wires storage, chain, difficulty, mempool, pow, miner,
// peer, and netconn into one running node, the "owned chain with explicit
// locks" §9 design note calls for in place of a process-global mutable
// chain: every lock lives inside the component that owns the state it
// guards, and Node only holds references.
package vision

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/internal/vlog"
	"vision-node/mempool"
	"vision-node/miner"
	"vision-node/netconn"
	"vision-node/peer"
	"vision-node/pow"
	"vision-node/storage"
	"vision-node/vtypes"
)

// Node owns every long-lived component a running instance needs and is the
// one value `cmd/visionnode`'s main constructs and shuts down.
type Node struct {
	cfg Config
	log *vlog.Logger

	db      storage.Database
	tracker *difficulty.Tracker
	pool    *mempool.Pool
	state   *chain.State
	engine  *pow.Engine
	miner   *miner.Miner

	peers      *peer.Manager
	conns      *netconn.ConnManager
	dispatcher *netconn.Dispatcher
	maintainer *netconn.Maintainer

	identity netconn.LocalIdentity
	nonce    uint64

	listener net.Listener
	exitCh   chan struct{}
}

// New opens the node's storage, bootstraps genesis if the database is
// fresh, and wires every component, but starts nothing: call Start to begin
// mining, dialing, and accepting connections.
func New(cfg Config) (*Node, error) {
	log := vlog.NewContext("component", "vision")

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("vision: open storage: %w", err)
	}

	tracker := difficulty.NewTracker(cfg.Difficulty, cfg.GenesisDifficulty)
	pool := mempool.New(cfg.Mempool, cfg.GenesisBaseFee)
	state := chain.New(db, cfg.Chain, tracker, pool)

	genesis := &vtypes.Block{Header: &vtypes.BlockHeader{
		ParentHash: common.Hash{},
		Height:     0,
		Timestamp:  cfg.GenesisTimestamp,
		Difficulty: cfg.GenesisDifficulty,
		BaseFee:    cfg.GenesisBaseFee,
	}}
	genesis.RecomputeTxRoot()
	if err := state.Bootstrap(genesis); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vision: bootstrap genesis: %w", err)
	}

	engine := pow.NewEngine()

	var m *miner.Miner
	if cfg.Mining {
		m = miner.New(state, pool, tracker, engine, cfg.Miner, common.SystemClock{})
	}

	peers := peer.New(cfg.Peer, common.SystemClock{})
	conns := netconn.NewConnManager(cfg.NodeID)
	dispatcher := netconn.NewDispatcher(state, pool, peers)

	identity := netconn.LocalIdentity{
		ChainID:                   cfg.ChainID,
		GenesisHash:               state.GenesisHash(),
		NetworkID:                 cfg.NetworkID,
		NodeBuild:                 cfg.NodeBuild,
		BootstrapPrefix:           cfg.BootstrapPrefix,
		BootstrapCheckpointHeight: cfg.BootstrapCheckpointHeight,
		BootstrapCheckpointHash:   cfg.BootstrapCheckpointHash,
		EconHash:                  cfg.EconHash,
		MinProtocolVersion:        cfg.MinProtocolVersion,
		MaxProtocolVersion:        cfg.MaxProtocolVersion,
	}

	n := &Node{
		cfg:        cfg,
		log:        log,
		db:         db,
		tracker:    tracker,
		pool:       pool,
		state:      state,
		engine:     engine,
		miner:      m,
		peers:      peers,
		conns:      conns,
		dispatcher: dispatcher,
		identity:   identity,
		nonce:      randomNonce(),
		exitCh:     make(chan struct{}),
	}
	n.maintainer = netconn.NewMaintainer(cfg.Maintainer, conns, peers, cfg.Seeds, n.dial)
	return n, nil
}

// randomNonce generates the self-connect-detection nonce carried in every
// outbound handshake.
func randomNonce() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

// Start begins mining (if configured), the outbound connection maintainer,
// and the inbound listener. Safe to call once.
func (n *Node) Start() error {
	ln, err := net.Listen("tcp", n.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("vision: listen %s: %w", n.cfg.ListenAddress, err)
	}
	n.listener = ln

	if n.miner != nil {
		n.miner.Start()
		n.engine.SetThreads(n.cfg.MinerThreads)
	}
	n.maintainer.Start()
	go n.acceptLoop()

	n.log.Info("node started", "listen", n.cfg.ListenAddress, "chainId", n.identity.ChainID, "mining", n.cfg.Mining)
	return nil
}

// Stop halts every running component and closes storage. Safe to call once.
func (n *Node) Stop() error {
	close(n.exitCh)
	if n.listener != nil {
		_ = n.listener.Close()
	}
	n.maintainer.Stop()
	if n.miner != nil {
		n.engine.SetThreads(0)
		n.miner.Stop()
	}
	return n.db.Close()
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.exitCh:
				return
			default:
				n.log.Warn("accept failed", "err", err)
				continue
			}
		}
		go n.handleInbound(conn)
	}
}
