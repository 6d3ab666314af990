package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-node/common"
)

func newTestManager(t *testing.T) (*Manager, *common.ManualClock) {
	t.Helper()
	clock := common.NewManualClock(time.Unix(1_000_000, 0))
	return New(DefaultConfig(), clock), clock
}

func TestUpsertCreatesKnownOnlyRecord(t *testing.T) {
	m, _ := newTestManager(t)
	r := m.Upsert("peerA")
	require.Equal(t, StateKnownOnly, r.State)
	require.Equal(t, BucketCold, r.Bucket)
	require.Equal(t, float64(50), r.Reputation)
}

func TestRecordSuccessPromotesToHotBucket(t *testing.T) {
	m, _ := newTestManager(t)
	m.RecordSuccess("peerA", 50*time.Millisecond)

	r := m.Get("peerA")
	require.Equal(t, BucketHot, r.Bucket)
	require.Equal(t, 0, r.FailStreak)
	require.Greater(t, r.Reputation, float64(50))
}

func TestRecordFailureHardensBackoffAndDemotesToCold(t *testing.T) {
	m, clock := newTestManager(t)
	m.RecordSuccess("peerA", 10*time.Millisecond)
	require.Equal(t, BucketHot, m.Get("peerA").Bucket)

	for i := 0; i < 3; i++ {
		m.RecordFailure("peerA")
	}

	r := m.Get("peerA")
	require.Equal(t, 3, r.FailStreak)
	require.Equal(t, BucketCold, r.Bucket)
	require.True(t, m.InCooldown("peerA", clock.Now()))
}

func TestRecordMisbehaviorAccumulatesTowardGraylist(t *testing.T) {
	m, _ := newTestManager(t)
	m.RecordMisbehavior("peerA", MisbehaviorInvalidBlock)

	r := m.Get("peerA")
	require.Equal(t, float64(20), r.Misbehavior)
	require.Equal(t, TrustNormal, r.Trust(DefaultConfig()))

	m.RecordMisbehavior("peerA", MisbehaviorBadHandshake)
	require.Equal(t, float64(30), m.Get("peerA").Misbehavior)
	require.Equal(t, TrustGraylisted, m.Get("peerA").Trust(DefaultConfig()))
	require.True(t, m.Get("peerA").Banned(DefaultConfig()))
}

func TestRunHealthPassDecaysMisbehaviorTowardNeutral(t *testing.T) {
	m, _ := newTestManager(t)
	m.RecordMisbehavior("peerA", MisbehaviorInvalidBlock)
	require.Equal(t, float64(20), m.Get("peerA").Misbehavior)

	m.RunHealthPass(2 * time.Hour)
	require.Equal(t, float64(10), m.Get("peerA").Misbehavior)
}

func TestRunHealthPassDecaysReputationTowardNeutral(t *testing.T) {
	m, _ := newTestManager(t)
	m.RecordSuccess("peerA", 10*time.Millisecond)
	require.Greater(t, m.Get("peerA").Reputation, float64(50))

	m.RunHealthPass(10 * time.Hour)
	require.Equal(t, float64(50), m.Get("peerA").Reputation)
}

func TestCompatiblePeersFiltersByChainIDAndVersion(t *testing.T) {
	m, _ := newTestManager(t)
	chainID := common.Hash{0x01}
	other := common.Hash{0x02}

	m.RecordHandshake("peerA", "1.2.3.4", 9000, Identity{ChainID: chainID, ProtocolVersion: 1}, 100, StateConnected)
	m.RecordHandshake("peerB", "1.2.3.5", 9000, Identity{ChainID: chainID, ProtocolVersion: 1}, 120, StateConnected)
	m.RecordHandshake("peerC", "1.2.3.6", 9000, Identity{ChainID: other, ProtocolVersion: 1}, 200, StateConnected)

	view := m.CompatiblePeers(chainID)
	require.Len(t, view.Peers, 2)
	require.Equal(t, uint64(100), view.MinHeight)
	require.Equal(t, uint64(120), view.MaxHeight)
}

func TestMiningEligibleRequiresQuorumAndHeightSpread(t *testing.T) {
	m, _ := newTestManager(t)
	chainID := common.Hash{0x01}

	require.False(t, m.MiningEligible(chainID), "no compatible peers yet")

	for i, id := range []string{"peerA", "peerB", "peerC"} {
		m.RecordHandshake(id, "1.2.3.4", 9000, Identity{ChainID: chainID, ProtocolVersion: 1}, uint64(100+i), StateConnected)
	}
	require.True(t, m.MiningEligible(chainID))

	m.RecordHandshake("peerD", "1.2.3.9", 9000, Identity{ChainID: chainID, ProtocolVersion: 1}, 100_000, StateConnected)
	require.False(t, m.MiningEligible(chainID), "height spread now exceeds the configured maximum")
}
