// Package circuit 组装一个完整的 circuit relay v1 节点
//
// 节点由三部分组成：
//   - 身份：ed25519 密钥，派生节点 ID
//   - 主机：TCP + Noise + yamux，按协议分发入站流
//   - 中继服务：/libp2p/circuit/relay/0.1.0 协议的 CAN_HOP / HOP / STOP
//
// 使用示例：
//
//	cfg := config.DefaultConfig()
//	cfg.Relay.HopEnabled = true
//
//	node, err := circuit.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	// 经由中继连接目标节点
//	c, err := node.DialViaRelay(ctx, relayAddr, dst)
//
//	// 接受经由中继到达的连接
//	in, err := node.Accept(ctx)
package circuit
