// Package relay 实现 circuit relay v1 协议引擎
//
// 一个不能直连目标节点 D 的源节点 S，通过愿意协助的中继节点 R
// 建立端到端的虚拟字节流。R 只负责协商，随后双向透明转发字节。
//
// # 组件
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                         Service                              │
//	│   HandleStream: 按首条消息类型分发 CAN_HOP / HOP / STOP        │
//	├───────────────┬──────────────────┬───────────────────────────┤
//	│ handleCanHop  │ handleHop        │ handleStop                │
//	│ (能力探测)     │ (中继角色状态机)   │ (目标角色，交给 Listener)   │
//	├───────────────┴──────────────────┴───────────────────────────┤
//	│   StreamHandler（分帧消息通道） validateAddrs（地址校验）       │
//	│   Splice（双向拷贝，背压，带宽限制）                            │
//	└──────────────────────────────────────────────────────────────┘
//
// 发起方函数：
//   - CanHop(ctx, conn) bool         询问中继是否愿意中继
//   - Hop(ctx, conn, req)            源节点请求中继建立电路
//   - Stop(ctx, conn, req)           中继请求目标节点接受电路
//
// # HOP 状态机（中继侧）
//
//	RECEIVED → VALIDATED → RESOLVING_DESTINATION → REQUESTING_STOP → SPLICING → CLOSED
//	                任意状态 → REJECTED（回复状态码并关闭）
//
// STOP 失败时不向源节点回复状态码，源节点只会看到流被关闭。
//
// # 线格式
//
// 每条消息是 pkg/lib/proto/circuit 定义的 CircuitRelay，前缀为
// unsigned varint 长度。协商成功后，同一条流不再分帧，直接承载载荷。
//
// # 并发
//
// 每条入站协商流在独立 goroutine 中处理，会话之间除只读能力标志
// 和指标外不共享可变状态。
package relay

import "github.com/dep2p/go-circuit/internal/util/logger"

var log = logger.Logger("relay")
