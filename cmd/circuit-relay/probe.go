package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"

	circuit "github.com/dep2p/go-circuit"
	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/pkg/types"
)

// ProbeCmd 探测中继
type ProbeCmd struct {
	BaseCmd

	dst     string
	message string
	timeout time.Duration
}

// GetProbeCmd 探测命令
func GetProbeCmd() *ProbeCmd {
	probeCmdIns := new(ProbeCmd)

	probeCmdIns.Cmd = &cobra.Command{
		Use:           "probe <relay-addr>",
		Short:         "Ask a relay whether it relays (CAN_HOP), optionally dial a peer through it.",
		Example:       "circuit-relay probe /ip4/1.2.3.4/tcp/4001/p2p/<relay> --dst <peer> --message hello",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return probeCmdIns.Probe(cmd, args[0])
		},
	}

	flags := probeCmdIns.Cmd.Flags()
	flags.StringVar(&probeCmdIns.dst, "dst", "", "destination peer id to dial through the relay")
	flags.StringVar(&probeCmdIns.message, "message", "", "message to send over the circuit, the reply is printed")
	flags.DurationVar(&probeCmdIns.timeout, "timeout", 15*time.Second, "overall timeout")

	return probeCmdIns
}

// Probe 连接中继并报告结果
func (t *ProbeCmd) Probe(cmd *cobra.Command, relayAddr string) error {
	addr, err := ma.NewMultiaddr(relayAddr)
	if err != nil {
		return fmt.Errorf("invalid relay address: %w", err)
	}

	var dst types.PeerID
	if t.dst != "" {
		if dst, err = types.ParsePeerID(t.dst); err != nil {
			return fmt.Errorf("invalid --dst: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	// 探测节点不监听
	cfg := config.DefaultConfig()
	cfg.Listen = nil
	node, err := circuit.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	ok, err := node.CanHop(ctx, addr)
	if err != nil {
		return err
	}
	cmd.Printf("can hop: %t\n", ok)
	if dst.IsEmpty() {
		return nil
	}

	c, err := node.DialViaRelay(ctx, addr, types.AddrInfo{ID: dst})
	if err != nil {
		return err
	}
	defer c.Close()
	cmd.Printf("circuit established: %s\n", c.RemoteMultiaddr())

	if t.message == "" {
		return nil
	}

	if _, err := c.Write([]byte(t.message)); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.SetDeadline(deadline)
	}
	reply := make([]byte, len(t.message))
	if _, err := io.ReadFull(c, reply); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	cmd.Printf("reply: %s\n", reply)
	return nil
}
