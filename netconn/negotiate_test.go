package netconn

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiateOutboundInboundExchange(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientHS := sampleHandshake()
	clientHS.NodeID = "client"
	serverHS := sampleHandshake()
	serverHS.NodeID = "server"

	type result struct {
		hs  *Handshake
		err error
	}
	clientResult := make(chan result, 1)
	serverResult := make(chan result, 1)

	go func() {
		hs, err := Negotiate(clientConn, DirectionOutbound, clientHS)
		clientResult <- result{hs, err}
	}()
	go func() {
		hs, err := Negotiate(serverConn, DirectionInbound, serverHS)
		serverResult <- result{hs, err}
	}()

	cr := <-clientResult
	sr := <-serverResult

	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
	require.Equal(t, "server", cr.hs.NodeID)
	require.Equal(t, "client", sr.hs.NodeID)
}
