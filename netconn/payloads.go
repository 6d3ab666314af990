package netconn

import "vision-node/vtypes"

// TransactionPayload relays a single pending transaction for mempool
// admission.
type TransactionPayload struct {
	Tx *vtypes.Transaction `json:"tx"`
}

// FullBlockPayload carries a complete block into acceptance.
type FullBlockPayload struct {
	Block *vtypes.Block `json:"block"`
}

// BlocksPayload answers GetBlocks with a bounded, height-ordered run.
type BlocksPayload struct {
	Blocks []*vtypes.Block `json:"blocks"`
}

// HeadersPayload answers GetHeaders with bare headers (no bodies).
type HeadersPayload struct {
	Headers []*vtypes.BlockHeader `json:"headers"`
}

// BlockPayload answers GetBlock with a single block.
type BlockPayload struct {
	Block *vtypes.Block `json:"block"`
}
