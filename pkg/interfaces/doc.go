// Package interfaces 定义 go-circuit 的公共接口
//
// 中继协议引擎只通过本包的窄接口消费外部协作者：
//   - network.go  - Stream / Conn / ConnProvider / Host 契约
//
// internal/core/host 提供基于 TCP + Noise + yamux + multistream 的参考实现，
// 任何满足这些接口的连接层都可以替换它。
//
// # 依赖方向
//
//	cmd → circuit(root) → internal/core/{relay,host} → pkg/interfaces → pkg/types
//
// 禁止反向依赖。
package interfaces
