package mempool

import "github.com/holiman/uint256"

// BaseFeeConfig bounds the EIP-1559-style per-block adjustment: the target
// fullness the pool aims for and the maximum per-block change factor.
type BaseFeeConfig struct {
	TargetTxsPerBlock int
	ChangeDenominator uint64 // larger = gentler adjustment
	MaxChangeFactor   float64 // e.g. 1.125 for +/-12.5% per block, EIP-1559 style
}

// UpdateBaseFee recomputes the pool's base fee after a block is applied,
// from the actual transaction count included versus the configured target:
// new = prev * (1 + (actual-target)/target/denominator), clamped to
// [1, prev*MaxChangeFactor] on the way up and [prev/MaxChangeFactor, ...]
// on the way down, per §4.3 Base-fee feedback.
func (p *Pool) UpdateBaseFee(cfg BaseFeeConfig, actualTxs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := cfg.TargetTxsPerBlock
	if target <= 0 {
		return
	}
	denom := cfg.ChangeDenominator
	if denom == 0 {
		denom = 8
	}

	delta := actualTxs - target
	prev := p.baseFee

	// next = prev + prev*delta/target/denom, computed in integer space.
	adj := new(uint256.Int).Mul(prev, uint256.NewInt(uint64(abs(delta))))
	adj.Div(adj, uint256.NewInt(uint64(target)))
	adj.Div(adj, uint256.NewInt(denom))

	next := new(uint256.Int)
	if delta >= 0 {
		next.Add(prev, adj)
	} else {
		if adj.Cmp(prev) >= 0 {
			next.SetUint64(1)
		} else {
			next.Sub(prev, adj)
		}
	}

	if next.IsZero() {
		next.SetUint64(1)
	}

	if cfg.MaxChangeFactor > 1.0 {
		ceiling := scaleUint256(prev, cfg.MaxChangeFactor)
		if next.Gt(ceiling) {
			next = ceiling
		}
		floor := scaleUint256(prev, 1.0/cfg.MaxChangeFactor)
		if floor.IsZero() {
			floor.SetUint64(1)
		}
		if next.Lt(floor) {
			next = floor
		}
	}

	p.baseFee = next
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// scaleUint256 multiplies v by a float factor using 1e6 fixed-point
// precision, avoiding a float64 round-trip through the full 256-bit value.
func scaleUint256(v *uint256.Int, factor float64) *uint256.Int {
	const precision = 1_000_000
	scaled := uint64(factor * precision)
	out := new(uint256.Int).Mul(v, uint256.NewInt(scaled))
	return out.Div(out, uint256.NewInt(precision))
}
