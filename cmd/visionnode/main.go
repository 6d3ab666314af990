// Command visionnode runs a single PoW node: chain acceptance, mining,
// mempool, and peer networking, wired together by the vision package.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	cli "gopkg.in/urfave/cli.v1"

	"vision-node/config"
	"vision-node/internal/vlog"
	"vision-node/vision"
)

var gitCommit = "unknown"

func main() {
	app := cli.NewApp()
	app.Name = "visionnode"
	app.Usage = "run a Vision PoW node"
	app.Version = gitCommit
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	printBanner(cfg)

	n, err := vision.New(cfg)
	if err != nil {
		return fmt.Errorf("visionnode: construct node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("visionnode: start node: %w", err)
	}

	log := vlog.NewContext("component", "visionnode")
	log.Info("node running", "nodeId", cfg.NodeID, "listen", cfg.ListenAddress)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	return n.Stop()
}

// printBanner prints the boot banner the teacher's console tooling uses
// colored terminal output for, cut down to this node's own identity fields.
func printBanner(cfg vision.Config) {
	bold := color.New(color.FgHiGreen, color.Bold)
	bold.Println("Vision Node")
	color.Cyan("  network:   %s", cfg.NetworkID)
	color.Cyan("  node id:   %s", cfg.NodeID)
	color.Cyan("  listen:    %s", cfg.ListenAddress)
	if cfg.Mining {
		color.Yellow("  mining:    enabled (%d threads)", cfg.MinerThreads)
	} else {
		color.Yellow("  mining:    disabled")
	}
}
