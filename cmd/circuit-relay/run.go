package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	circuit "github.com/dep2p/go-circuit"
	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/core/relay"
	"github.com/dep2p/go-circuit/internal/util/logger"
)

var log = logger.Logger("cmd")

// RunCmd 启动节点
type RunCmd struct {
	BaseCmd

	confPath string
	listen   []string
	hop      bool
	echo     bool
}

// GetRunCmd 启动命令
func GetRunCmd() *RunCmd {
	runCmdIns := new(RunCmd)

	runCmdIns.Cmd = &cobra.Command{
		Use:           "run",
		Short:         "Start a relay node.",
		Example:       "circuit-relay run --conf relay.yaml --hop",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmdIns.Run(cmd)
		},
	}

	flags := runCmdIns.Cmd.Flags()
	flags.StringVarP(&runCmdIns.confPath, "conf", "c", "", "config file path (yaml/json/toml)")
	flags.StringSliceVarP(&runCmdIns.listen, "listen", "l", nil, "listen multiaddrs, overrides config")
	flags.BoolVar(&runCmdIns.hop, "hop", false, "relay for other peers")
	flags.BoolVar(&runCmdIns.echo, "echo", false, "echo data on accepted relayed connections")

	return runCmdIns
}

func (t *RunCmd) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if t.confPath != "" {
		loaded, err := config.Load(t.confPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(t.listen) > 0 {
		cfg.Listen = t.listen
	}
	if cmd.Flags().Changed("hop") {
		cfg.Relay.HopEnabled = t.hop
	}
	return cfg, cfg.Validate()
}

// Run 启动节点并阻塞到收到退出信号
func (t *RunCmd) Run(cmd *cobra.Command) error {
	cfg, err := t.loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := circuit.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	cmd.Printf("peer id: %s\n", node.ID())
	for _, a := range node.Addrs() {
		cmd.Printf("listening on %s\n", a)
	}

	if cfg.Metrics.Enabled {
		srv := startMetricsServer(cfg.Metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go t.acceptLoop(ctx, node)

	<-ctx.Done()
	log.Info("收到退出信号，正在关闭")
	return nil
}

// acceptLoop 处理经由中继到达的连接
func (t *RunCmd) acceptLoop(ctx context.Context, node *circuit.Node) {
	for {
		c, err := node.Accept(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Debug("停止接受中继连接", "err", err)
			}
			return
		}
		log.Info("接受中继连接", "remote", c.RemotePeer().ShortString(), "relay", c.RelayPeer().ShortString())
		go t.serve(c)
	}
}

func (t *RunCmd) serve(c *relay.Conn) {
	defer c.Close()
	if !t.echo {
		_, _ = io.Copy(io.Discard, c)
		return
	}
	n, err := io.Copy(c, c)
	log.Debug("中继连接结束", "id", c.ID(), "bytes", n, "err", err)
}

func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务退出", "err", err)
		}
	}()
	log.Info("指标服务已启动", "addr", fmt.Sprintf("http://%s%s", cfg.Addr, cfg.Path))
	return srv
}
