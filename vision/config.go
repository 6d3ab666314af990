package vision

import (
	"time"

	"github.com/holiman/uint256"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/mempool"
	"vision-node/miner"
	"vision-node/netconn"
	"vision-node/peer"
)

// Config bounds everything a running node needs at boot: where its data
// lives, who it claims to be on the wire, who it should dial, and whether
// it mines. The `config` package is what actually produces one of these
// from a TOML file plus a flag overlay; this struct is the landing target.
type Config struct {
	DataDir string

	// ChainID is the fixed network identity exchanged and compared at
	// handshake; unlike GenesisHash (derived from the bootstrapped genesis
	// block), it's a baked-in constant set independently of chain state.
	ChainID common.Hash

	NetworkID                string
	NodeBuild                 string
	NodeTag                   string
	NodeID                    string
	Role                      string
	EBID                      string
	BootstrapPrefix           string
	BootstrapCheckpointHeight uint64
	BootstrapCheckpointHash   string
	EconHash                  string
	MinProtocolVersion        uint32
	MaxProtocolVersion        uint32
	NodeVersion               uint32

	ListenAddress string
	Seeds         []netconn.DialTarget
	DialTimeout   time.Duration

	Mining       bool
	MinerThreads int

	GenesisTimestamp  int64
	GenesisDifficulty uint64
	GenesisBaseFee    *uint256.Int

	Chain      chain.Config
	Difficulty difficulty.Config
	Mempool    mempool.Config
	Miner      miner.Config
	Peer       peer.Config
	Maintainer netconn.MaintainerConfig
}

// DefaultConfig returns a single-node-friendly default: mainnet identifiers,
// an empty seed list, and every sub-package's own DefaultConfig.
func DefaultConfig() Config {
	return Config{
		NetworkID:          "vision-mainnet",
		NodeBuild:          "dev",
		NodeTag:            "VISIONNODE",
		Role:               "full",
		BootstrapPrefix:    "vision-bootstrap-1",
		MinProtocolVersion: 1,
		MaxProtocolVersion: 1,
		NodeVersion:        1,
		ListenAddress:      ":30333",
		DialTimeout:        10 * time.Second,
		MinerThreads:       0,
		GenesisTimestamp:   1_700_000_000,
		GenesisDifficulty:  1,
		GenesisBaseFee:     uint256.NewInt(0),
		Chain:              chain.DefaultConfig(),
		Difficulty:         difficulty.DefaultConfig(),
		Mempool: mempool.Config{
			MaxPerTier:     4096,
			TTLSeconds:     3600,
			KeepBlocks:     64,
			BlockTargetTxs: 2000,
		},
		Miner:      miner.DefaultConfig(),
		Peer:       peer.DefaultConfig(),
		Maintainer: netconn.DefaultMaintainerConfig(),
	}
}
