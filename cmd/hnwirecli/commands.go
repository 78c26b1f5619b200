package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli"
)

var errMissingHex = errors.New("hex argument missing")

// frameInfo is the JSON rendering of a decoded frame.
type frameInfo struct {
	Command  string `json:"command"`
	Length   int    `json:"length"`
	Consumed int    `json:"consumed"`
	Message  string `json:"message"`
}

func printJSON(ctx *cli.Context, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode json: %w", err)
	}

	_, err = fmt.Fprintln(ctx.App.Writer, string(b))

	return err
}

// network returns the network selected with the global flag.
func network(ctx *cli.Context) (hnwire.Network, error) {
	return hnwire.ParseNetwork(ctx.GlobalString("network"))
}

func protocolVersion(ctx *cli.Context) uint32 {
	return uint32(ctx.GlobalUint("protocolversion"))
}

// hexArg returns the first positional argument decoded from hex.
func hexArg(ctx *cli.Context) ([]byte, error) {
	if !ctx.Args().Present() {
		return nil, errMissingHex
	}

	return hex.DecodeString(strings.TrimSpace(ctx.Args().First()))
}

// writeFrame frames msg and prints it as hex.
func writeFrame(ctx *cli.Context, msg hnwire.Message) error {
	net, err := network(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	pver := protocolVersion(ctx)
	if _, err := hnwire.WriteMessage(&buf, msg, net, pver, pver); err != nil {
		return err
	}

	_, err = fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(buf.Bytes()))

	return err
}

var decodeCommand = cli.Command{
	Name:      "decode",
	Usage:     "Decode a framed wire message.",
	ArgsUsage: "frame_hex",
	Description: "Parse the hex encoded frame, check its magic and " +
		"checksum and print the decoded message.",
	Action: decode,
}

func decode(ctx *cli.Context) error {
	data, err := hexArg(ctx)
	if err != nil {
		return err
	}

	net, err := network(ctx)
	if err != nil {
		return err
	}

	pver := protocolVersion(ctx)
	msg, n, err := hnwire.ReadMessage(data, net, pver, pver)
	switch {
	case err != nil:
		return err

	case msg == nil:
		return fmt.Errorf("incomplete frame: got %d bytes", len(data))
	}

	headerSize := hnwire.HeaderSize
	if pver < hnwire.ChecksumVersion {
		headerSize -= hnwire.ChecksumSize
	}

	return printJSON(ctx, frameInfo{
		Command:  msg.Command().String(),
		Length:   n - headerSize,
		Consumed: n,
		Message:  spew.Sdump(msg),
	})
}

var frameCommand = cli.Command{
	Name:      "frame",
	Usage:     "Frame a raw payload under a command.",
	ArgsUsage: "payload_hex",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "command",
			Usage: "The command the payload is sent under.",
		},
	},
	Action: frame,
}

func frame(ctx *cli.Context) error {
	cmd := ctx.String("command")
	if cmd == "" {
		return fmt.Errorf("command argument missing")
	}

	payload := []byte{}
	if ctx.Args().Present() {
		var err error
		payload, err = hexArg(ctx)
		if err != nil {
			return err
		}
	}

	return writeFrame(ctx, hnwire.NewMsgGeneric(hnwire.Command(cmd), payload))
}

var pingCommand = cli.Command{
	Name:  "ping",
	Usage: "Frame a ping message.",
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name:  "nonce",
			Usage: "The nonce the pong must echo.",
		},
	},
	Action: ping,
}

func ping(ctx *cli.Context) error {
	return writeFrame(ctx, hnwire.NewMsgPing(ctx.Uint64("nonce")))
}

var checksumCommand = cli.Command{
	Name:      "checksum",
	Usage:     "Print the frame checksum of a payload.",
	ArgsUsage: "payload_hex",
	Action:    checksum,
}

func checksum(ctx *cli.Context) error {
	payload, err := hexArg(ctx)
	if err != nil {
		return err
	}

	sum := hnwire.Checksum(payload)
	_, err = fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(sum[:]))

	return err
}

var hashCommand = cli.Command{
	Name:      "hash",
	Usage:     "Print the display hash of a serialized block or transaction.",
	ArgsUsage: "hex",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "tx",
			Usage: "Decode a transaction instead of a block.",
		},
	},
	Action: hash,
}

func hash(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return errMissingHex
	}
	data := strings.TrimSpace(ctx.Args().First())

	var display string
	if ctx.Bool("tx") {
		var tx hnwire.Transaction
		if err := hnwire.FromHex(&tx, data); err != nil {
			return fmt.Errorf("unable to decode transaction: %w",
				err)
		}
		display = tx.DisplayHash()
	} else {
		var block hnwire.Block
		if err := hnwire.FromHex(&block, data); err != nil {
			return fmt.Errorf("unable to decode block: %w", err)
		}
		display = block.DisplayHash()
	}

	_, err := fmt.Fprintln(ctx.App.Writer, display)

	return err
}

var commandsCommand = cli.Command{
	Name:   "commands",
	Usage:  "List the commands with a typed message.",
	Action: listCommands,
}

func listCommands(ctx *cli.Context) error {
	cmds := hnwire.Commands()
	names := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		names = append(names, cmd.String())
	}

	return printJSON(ctx, names)
}
