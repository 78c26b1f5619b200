package main

import (
	"fmt"
	"os"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/urfave/cli"
)

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[hnwirecli] %v\n", err)
	os.Exit(1)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "hnwirecli"
	app.Version = hnwire.MySubVersion
	app.Usage = "encode and decode half-node wire messages"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network whose magic frames carry, e.g. " +
				"mainnet, testnet3, stn or regtest.",
			Value: string(hnwire.RegTest),
		},
		cli.UintFlag{
			Name:  "protocolversion",
			Usage: "The protocol version of the frame and payload.",
			Value: uint(hnwire.MyVersion),
		},
	}
	app.Commands = []cli.Command{
		decodeCommand,
		frameCommand,
		pingCommand,
		checksumCommand,
		hashCommand,
		commandsCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
