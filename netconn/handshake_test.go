package netconn

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-node/common"
)

func sampleHandshake() *Handshake {
	return &Handshake{
		ProtocolVersion:           1,
		ChainID:                   common.Hash{0x01},
		GenesisHash:               common.Hash{0x02},
		NodeNonce:                 12345,
		ChainHeight:               10,
		NodeVersion:               100,
		NetworkID:                 "mainnet",
		NodeBuild:                 "v1.0.0",
		NodeTag:                   "VNODE-TEST",
		NodeID:                    "node-a",
		Role:                      "peer",
		EBID:                      "ebid-a",
		BootstrapPrefix:           "vision-bootstrap-1",
		BootstrapCheckpointHeight: 9,
		BootstrapCheckpointHash:   "deadbeef",
	}
}

func localIdentityFor(hs *Handshake) LocalIdentity {
	return LocalIdentity{
		ChainID:                   hs.ChainID,
		GenesisHash:               hs.GenesisHash,
		NetworkID:                 hs.NetworkID,
		NodeBuild:                 hs.NodeBuild,
		BootstrapPrefix:           hs.BootstrapPrefix,
		BootstrapCheckpointHeight: hs.BootstrapCheckpointHeight,
		BootstrapCheckpointHash:   hs.BootstrapCheckpointHash,
		MinProtocolVersion:        1,
		MaxProtocolVersion:        1,
	}
}

func TestWriteReadHandshakeRoundTrips(t *testing.T) {
	hs := sampleHandshake()
	var buf bytes.Buffer
	require.NoError(t, WriteHandshake(&buf, hs))

	got, err := ReadHandshake(&buf)
	require.NoError(t, err)
	require.Equal(t, hs.NodeID, got.NodeID)
	require.Equal(t, hs.ChainID, got.ChainID)
	require.Equal(t, hs.BootstrapCheckpointHash, got.BootstrapCheckpointHash)
}

func TestReadHandshakeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NOTMAGIC!")
	buf.WriteByte(handshakeWireVersion)
	buf.Write([]byte{0x00, 0x01})
	buf.WriteByte('{')

	_, err := ReadHandshake(&buf)
	require.ErrorIs(t, err, errBadMagic)
}

func TestLocalIdentityValidateAcceptsMatchingHandshake(t *testing.T) {
	hs := sampleHandshake()
	id := localIdentityFor(hs)
	require.NoError(t, id.Validate(hs))
}

func TestLocalIdentityValidateRejectsChainIDMismatch(t *testing.T) {
	hs := sampleHandshake()
	id := localIdentityFor(hs)
	hs.ChainID = common.Hash{0xFF}

	err := id.Validate(hs)
	require.Error(t, err)
}

func TestLocalIdentityValidateRejectsCheckpointMismatch(t *testing.T) {
	hs := sampleHandshake()
	id := localIdentityFor(hs)
	hs.BootstrapCheckpointHash = "wrong"

	err := id.Validate(hs)
	require.Error(t, err)
}

func TestLocalIdentityValidateRejectsProtocolVersionOutOfRange(t *testing.T) {
	hs := sampleHandshake()
	id := localIdentityFor(hs)
	hs.ProtocolVersion = 99

	err := id.Validate(hs)
	require.Error(t, err)
}

func TestIsSelfConnectDetectsMatchingNonce(t *testing.T) {
	require.True(t, IsSelfConnect(42, 42))
	require.False(t, IsSelfConnect(42, 43))
}
