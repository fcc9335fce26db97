// Package protocolids 定义 go-circuit 使用的全部协议 ID
//
// # 唯一真源原则
//
// 本包是协议 ID 的唯一权威来源。所有模块、测试、CLI 工具在需要协议 ID 时，
// 必须引用本包中的常量，不在其他位置定义字面量。
//
// # 协议列表
//
//   - Relay    /libp2p/circuit/relay/0.1.0  中继协商流（HOP / STOP / CAN_HOP）
package protocolids
