package protocolids

import "github.com/dep2p/go-circuit/pkg/types"

// Relay 中继协商协议
//
// 与 libp2p circuit relay v1 线格式兼容。协商成功后，同一条流
// 不再分帧，直接承载中继流量。
const Relay types.ProtocolID = "/libp2p/circuit/relay/0.1.0"

// All 返回全部已注册协议 ID
func All() []types.ProtocolID {
	return []types.ProtocolID{Relay}
}
