// Package config loads a node's configuration from a TOML file and a CLI
// flag overlay, the same two-stage pattern the teacher's cmd/berith uses:
// defaults, then file, then flags, each layer only overriding what it sets.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"

	"vision-node/common"
	"vision-node/netconn"
	"vision-node/vision"
)

// tomlSettings ensures TOML keys use the same names as the Go struct
// fields, rather than naoina/toml's default lower-casing.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// FileConfig is the top-level shape a TOML config file decodes into.
type FileConfig struct {
	Node vision.Config
}

// LoadFile decodes file into cfg, prefixing any line-numbered TOML error
// with the file name.
func LoadFile(file string, cfg *FileConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the node's chain state",
	}
	ListenAddrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "Listening address for peer connections",
	}
	NetworkIDFlag = cli.StringFlag{
		Name:  "networkid",
		Usage: "Network identifier presented at handshake",
	}
	ChainIDFlag = cli.StringFlag{
		Name:  "chainid",
		Usage: "Hex-encoded 32-byte chain identity",
	}
	NodeIDFlag = cli.StringFlag{
		Name:  "nodeid",
		Usage: "Stable node identifier used for duplicate-connection tie-breaks",
	}
	MiningFlag = cli.BoolFlag{
		Name:  "mine",
		Usage: "Enable mining",
	}
	MinerThreadsFlag = cli.IntFlag{
		Name:  "minerthreads",
		Usage: "Number of PoW worker threads (0 disables mining even if --mine is set)",
	}
	SeedFlag = cli.StringSliceFlag{
		Name:  "seed",
		Usage: "Seed peer as nodeid@host:port, may be repeated",
	}
)

// Flags is the full flag set cmd/visionnode registers, grouped with the
// teacher's nodeFlags/rpcFlags convention of one slice per concern.
var Flags = []cli.Flag{
	ConfigFileFlag,
	DataDirFlag,
	ListenAddrFlag,
	NetworkIDFlag,
	ChainIDFlag,
	NodeIDFlag,
	MiningFlag,
	MinerThreadsFlag,
	SeedFlag,
}

// FromContext builds a vision.Config from defaults, an optional TOML file,
// and the CLI flag overlay, in that priority order.
func FromContext(ctx *cli.Context) (vision.Config, error) {
	cfg := vision.DefaultConfig()

	if file := ctx.GlobalString(ConfigFileFlag.Name); file != "" {
		fc := FileConfig{Node: cfg}
		if err := LoadFile(file, &fc); err != nil {
			return cfg, err
		}
		cfg = fc.Node
	}

	if err := applyFlags(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(ctx *cli.Context, cfg *vision.Config) error {
	if ctx.GlobalIsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.GlobalString(DataDirFlag.Name)
	}
	if ctx.GlobalIsSet(ListenAddrFlag.Name) {
		cfg.ListenAddress = ctx.GlobalString(ListenAddrFlag.Name)
	}
	if ctx.GlobalIsSet(NetworkIDFlag.Name) {
		cfg.NetworkID = ctx.GlobalString(NetworkIDFlag.Name)
	}
	if ctx.GlobalIsSet(ChainIDFlag.Name) {
		id, err := common.HexToHash(ctx.GlobalString(ChainIDFlag.Name))
		if err != nil {
			return fmt.Errorf("config: bad --%s: %w", ChainIDFlag.Name, err)
		}
		cfg.ChainID = id
	}
	if ctx.GlobalIsSet(NodeIDFlag.Name) {
		cfg.NodeID = ctx.GlobalString(NodeIDFlag.Name)
	}
	if ctx.GlobalIsSet(MiningFlag.Name) {
		cfg.Mining = ctx.GlobalBool(MiningFlag.Name)
	}
	if ctx.GlobalIsSet(MinerThreadsFlag.Name) {
		cfg.MinerThreads = ctx.GlobalInt(MinerThreadsFlag.Name)
	}
	if ctx.GlobalIsSet(SeedFlag.Name) {
		seeds, err := parseSeeds(ctx.GlobalStringSlice(SeedFlag.Name))
		if err != nil {
			return err
		}
		cfg.Seeds = seeds
	}
	return nil
}

// parseSeeds parses "nodeid@host:port" entries into DialTargets.
func parseSeeds(raw []string) ([]netconn.DialTarget, error) {
	out := make([]netconn.DialTarget, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(s, "@", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("config: seed %q must be nodeid@host:port", s)
		}
		out = append(out, netconn.DialTarget{NodeID: parts[0], Address: parts[1]})
	}
	return out, nil
}
