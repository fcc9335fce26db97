// Package host 实现中继服务使用的网络主机
//
// 连接建立流程：
//
//	TCP 拨号/接受 → Noise XX 握手（验证节点身份） → yamux 多路复用
//
// 每条 yamux 流使用 multistream-select 协商协议，
// 入站流按协议分发到 SetStreamHandler 注册的处理器。
//
// Host 同时维护到各节点的连接注册表，中继服务通过
// Connections 查询是否已连接到目标节点。
package host
