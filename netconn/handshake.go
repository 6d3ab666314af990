package netconn

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"vision-node/common"
)

// handshakeMagic, handshakeWireVersion, and MaxHandshakeSize follow the
// node's own wire constants: a 9-byte magic distinguishes the handshake
// frame from a regular length-prefixed message before either side has
// agreed on anything else.
var handshakeMagic = [9]byte{'V', 'I', 'S', 'I', 'O', 'N', '-', 'P', '2'}

const (
	handshakeWireVersion = 3
	MaxHandshakeSize     = 10 * 1024
)

// Handshake is what each side exchanges before any regular framed message.
// Field set matches spec.md §4.6: protocol/chain identity, self-connect
// detection, the bootstrap quarantine prefix, and advertised reachability.
type Handshake struct {
	ProtocolVersion uint32      `json:"protocolVersion"`
	ChainID         common.Hash `json:"chainId"`
	GenesisHash     common.Hash `json:"genesisHash"`
	NodeNonce       uint64      `json:"nodeNonce"`
	ChainHeight     uint64      `json:"chainHeight"`
	NodeVersion     uint32      `json:"nodeVersion"`
	NetworkID       string      `json:"networkId"`
	NodeBuild       string      `json:"nodeBuild"`
	NodeTag         string      `json:"nodeTag"`
	NodeID          string      `json:"nodeId"`
	Role            string      `json:"role"`
	EBID            string      `json:"ebid"`

	AdvertisedIP   string `json:"advertisedIp,omitempty"`
	AdvertisedPort uint16 `json:"advertisedPort,omitempty"`

	BootstrapCheckpointHeight uint64 `json:"bootstrapCheckpointHeight"`
	BootstrapCheckpointHash   string `json:"bootstrapCheckpointHash"`
	BootstrapPrefix           string `json:"bootstrapPrefix"`

	SeedPeers []string `json:"seedPeers,omitempty"`

	EconHash string `json:"econHash,omitempty"`
}

var (
	errBadMagic          = errors.New("netconn: handshake magic mismatch")
	errBadWireVersion     = errors.New("netconn: unsupported handshake wire version")
	errHandshakeTooLarge = errors.New("netconn: handshake payload exceeds size cap")
)

// WriteHandshake frames hs as magic + version + 2-byte big-endian length +
// JSON payload, the distinct framing the initial handshake uses before
// regular message framing applies.
func WriteHandshake(w io.Writer, hs *Handshake) error {
	body, err := json.Marshal(hs)
	if err != nil {
		return err
	}
	if len(body) > MaxHandshakeSize {
		return errHandshakeTooLarge
	}
	var buf bytes.Buffer
	buf.Write(handshakeMagic[:])
	buf.WriteByte(handshakeWireVersion)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)
	_, err = w.Write(buf.Bytes())
	return err
}

// ReadHandshake reads and validates the magic/version framing, then decodes
// the JSON payload.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	var magic [9]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != handshakeMagic {
		return nil, errBadMagic
	}
	var versionByte [1]byte
	if _, err := io.ReadFull(r, versionByte[:]); err != nil {
		return nil, err
	}
	if versionByte[0] != handshakeWireVersion {
		return nil, errBadWireVersion
	}
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > MaxHandshakeSize {
		return nil, errHandshakeTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var hs Handshake
	if err := json.Unmarshal(body, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

// LocalIdentity is the set of values the running node compares an incoming
// handshake against. All fields are fixed at process start.
type LocalIdentity struct {
	ChainID                   common.Hash
	GenesisHash               common.Hash
	NetworkID                 string
	NodeBuild                 string
	BootstrapPrefix           string
	BootstrapCheckpointHeight uint64
	BootstrapCheckpointHash   string
	EconHash                  string
	MinProtocolVersion        uint32
	MaxProtocolVersion        uint32
}

// Validate checks every field spec.md §4.6 requires to match, in the order
// listed there; the first mismatch is returned. All checks must pass.
func (id LocalIdentity) Validate(remote *Handshake) error {
	if remote.BootstrapPrefix != id.BootstrapPrefix {
		return fmt.Errorf("netconn: bootstrap prefix mismatch: local=%q remote=%q", id.BootstrapPrefix, remote.BootstrapPrefix)
	}
	if remote.ProtocolVersion < id.MinProtocolVersion || remote.ProtocolVersion > id.MaxProtocolVersion {
		return fmt.Errorf("netconn: protocol version %d outside supported range [%d,%d]", remote.ProtocolVersion, id.MinProtocolVersion, id.MaxProtocolVersion)
	}
	if remote.NodeBuild != id.NodeBuild {
		return fmt.Errorf("netconn: build tag mismatch: local=%q remote=%q", id.NodeBuild, remote.NodeBuild)
	}
	if remote.NetworkID != id.NetworkID {
		return fmt.Errorf("netconn: network id mismatch: local=%q remote=%q", id.NetworkID, remote.NetworkID)
	}
	if remote.ChainID != id.ChainID {
		return fmt.Errorf("netconn: chain id mismatch")
	}
	if remote.GenesisHash != id.GenesisHash {
		return fmt.Errorf("netconn: genesis hash mismatch")
	}
	if id.EconHash != "" && remote.EconHash != "" && remote.EconHash != id.EconHash {
		return fmt.Errorf("netconn: economics fingerprint mismatch")
	}
	if id.BootstrapCheckpointHeight != 0 && remote.BootstrapCheckpointHeight == id.BootstrapCheckpointHeight {
		if remote.BootstrapCheckpointHash != id.BootstrapCheckpointHash {
			return fmt.Errorf("netconn: bootstrap checkpoint hash mismatch at height %d", id.BootstrapCheckpointHeight)
		}
	}
	return nil
}

// IsSelfConnect reports whether remote carries this node's own handshake
// nonce, the standard self-dial detection.
func IsSelfConnect(localNonce, remoteNonce uint64) bool {
	return localNonce == remoteNonce
}
