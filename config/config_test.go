package config

import (
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	cli "gopkg.in/urfave/cli.v1"

	"vision-node/vision"
)

func contextWithFlags(t *testing.T, set func(*flag.FlagSet)) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		f.Apply(fs)
	}
	set(fs)
	return cli.NewContext(nil, fs, nil)
}

func TestParseSeedsAcceptsNodeIDAtHostPort(t *testing.T) {
	out, err := parseSeeds([]string{"abc@1.2.3.4:30333", "def@seed.example.com:30333"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "abc", out[0].NodeID)
	require.Equal(t, "1.2.3.4:30333", out[0].Address)
}

func TestParseSeedsRejectsMissingAt(t *testing.T) {
	_, err := parseSeeds([]string{"not-a-seed"})
	require.Error(t, err)
}

func TestApplyFlagsOverridesDefaults(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		require.NoError(t, fs.Set(DataDirFlag.Name, "/tmp/vision-data"))
		require.NoError(t, fs.Set(MiningFlag.Name, "true"))
		require.NoError(t, fs.Set(MinerThreadsFlag.Name, "4"))
		require.NoError(t, fs.Set(ChainIDFlag.Name, "0x01"+strings.Repeat("00", 31)))
	})

	cfg := vision.DefaultConfig()
	require.NoError(t, applyFlags(ctx, &cfg))

	require.Equal(t, "/tmp/vision-data", cfg.DataDir)
	require.True(t, cfg.Mining)
	require.Equal(t, 4, cfg.MinerThreads)
	require.Equal(t, byte(0x01), cfg.ChainID[0])
}

func TestApplyFlagsLeavesDefaultsWhenUnset(t *testing.T) {
	ctx := contextWithFlags(t, func(*flag.FlagSet) {})
	cfg := vision.DefaultConfig()
	require.NoError(t, applyFlags(ctx, &cfg))
	require.Equal(t, vision.DefaultConfig().ListenAddress, cfg.ListenAddress)
}
