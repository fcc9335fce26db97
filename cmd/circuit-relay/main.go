// circuit-relay 运行 circuit relay v1 节点
//
// 使用方法:
//
//	circuit-relay run --conf relay.yaml --hop
//	circuit-relay probe /ip4/1.2.3.4/tcp/4001/p2p/<relay>
//	circuit-relay version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = ""
	BuildTime = ""
	CommitID  = ""
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "circuit-relay: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand 构建根命令
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "circuit-relay <command> [arguments]",
		Short:         "circuit-relay runs a libp2p circuit relay v1 node.",
		Long:          "circuit-relay runs a libp2p circuit relay v1 node that can relay for others, dial through relays and accept relayed connections.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "circuit-relay run --conf relay.yaml --hop",
	}

	rootCmd.AddCommand(GetRunCmd().GetCmd())
	rootCmd.AddCommand(GetProbeCmd().GetCmd())
	rootCmd.AddCommand(GetVersionCmd().GetCmd())
	return rootCmd
}

// BaseCmd 子命令公共部分
type BaseCmd struct {
	Cmd *cobra.Command
}

// SetCmd 设置 cobra 命令
func (t *BaseCmd) SetCmd(cmd *cobra.Command) {
	t.Cmd = cmd
}

// GetCmd 返回 cobra 命令
func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.Cmd
}

type versionCmd struct {
	BaseCmd
}

// GetVersionCmd 版本命令
func GetVersionCmd() *versionCmd {
	versionCmdIns := new(versionCmd)

	subCmd := &cobra.Command{
		Use:     "version",
		Short:   "View process version information.",
		Example: "circuit-relay version",
		Run: func(cmd *cobra.Command, args []string) {
			versionCmdIns.PrintVersion(cmd)
		},
	}
	versionCmdIns.SetCmd(subCmd)

	return versionCmdIns
}

func (t *versionCmd) PrintVersion(cmd *cobra.Command) {
	cmd.Printf("%s-%s %s\n", Version, CommitID, BuildTime)
}
