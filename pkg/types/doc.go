// Package types 定义 go-circuit 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go      - PeerID 节点身份及其编解码
//   - protocol.go - ProtocolID 协议标识符
//   - addr.go     - AddrInfo 节点身份 + 地址列表
//
// # 与 pkg/lib/proto 的区别
//
// pkg/types 定义 Go 内部数据结构（内存结构），
// pkg/lib/proto 定义网络协议消息（wire format）。
package types
