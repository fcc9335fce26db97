// Package circuit 定义中继协商消息的线格式
//
// 与 libp2p circuit relay v1 的 protobuf 定义（circuit.proto）保持字段号一致。
// 编解码直接基于 protowire 手写，不依赖 protoc 生成代码。
package circuit

import (
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
//                              枚举
// ============================================================================

// CircuitRelay_Type 消息类型
type CircuitRelay_Type int32

const (
	CircuitRelay_HOP     CircuitRelay_Type = 1
	CircuitRelay_STOP    CircuitRelay_Type = 2
	CircuitRelay_STATUS  CircuitRelay_Type = 3
	CircuitRelay_CAN_HOP CircuitRelay_Type = 4
)

var circuitRelayTypeName = map[CircuitRelay_Type]string{
	CircuitRelay_HOP:     "HOP",
	CircuitRelay_STOP:    "STOP",
	CircuitRelay_STATUS:  "STATUS",
	CircuitRelay_CAN_HOP: "CAN_HOP",
}

// String 返回类型名
func (t CircuitRelay_Type) String() string {
	if s, ok := circuitRelayTypeName[t]; ok {
		return s
	}
	return strconv.Itoa(int(t))
}

// CircuitRelay_Status 状态码
type CircuitRelay_Status int32

const (
	CircuitRelay_SUCCESS                    CircuitRelay_Status = 100
	CircuitRelay_HOP_SRC_ADDR_TOO_LONG      CircuitRelay_Status = 220
	CircuitRelay_HOP_DST_ADDR_TOO_LONG      CircuitRelay_Status = 221
	CircuitRelay_HOP_SRC_MULTIADDR_INVALID  CircuitRelay_Status = 250
	CircuitRelay_HOP_DST_MULTIADDR_INVALID  CircuitRelay_Status = 251
	CircuitRelay_HOP_NO_CONN_TO_DST         CircuitRelay_Status = 260
	CircuitRelay_HOP_CANT_DIAL_DST          CircuitRelay_Status = 261
	CircuitRelay_HOP_CANT_OPEN_DST_STREAM   CircuitRelay_Status = 262
	CircuitRelay_HOP_CANT_SPEAK_RELAY       CircuitRelay_Status = 270
	CircuitRelay_HOP_CANT_RELAY_TO_SELF     CircuitRelay_Status = 280
	CircuitRelay_STOP_SRC_ADDR_TOO_LONG     CircuitRelay_Status = 320
	CircuitRelay_STOP_DST_ADDR_TOO_LONG     CircuitRelay_Status = 321
	CircuitRelay_STOP_SRC_MULTIADDR_INVALID CircuitRelay_Status = 350
	CircuitRelay_STOP_DST_MULTIADDR_INVALID CircuitRelay_Status = 351
	CircuitRelay_STOP_RELAY_REFUSED         CircuitRelay_Status = 390
	CircuitRelay_MALFORMED_MESSAGE          CircuitRelay_Status = 400
)

var circuitRelayStatusName = map[CircuitRelay_Status]string{
	CircuitRelay_SUCCESS:                    "SUCCESS",
	CircuitRelay_HOP_SRC_ADDR_TOO_LONG:      "HOP_SRC_ADDR_TOO_LONG",
	CircuitRelay_HOP_DST_ADDR_TOO_LONG:      "HOP_DST_ADDR_TOO_LONG",
	CircuitRelay_HOP_SRC_MULTIADDR_INVALID:  "HOP_SRC_MULTIADDR_INVALID",
	CircuitRelay_HOP_DST_MULTIADDR_INVALID:  "HOP_DST_MULTIADDR_INVALID",
	CircuitRelay_HOP_NO_CONN_TO_DST:         "HOP_NO_CONN_TO_DST",
	CircuitRelay_HOP_CANT_DIAL_DST:          "HOP_CANT_DIAL_DST",
	CircuitRelay_HOP_CANT_OPEN_DST_STREAM:   "HOP_CANT_OPEN_DST_STREAM",
	CircuitRelay_HOP_CANT_SPEAK_RELAY:       "HOP_CANT_SPEAK_RELAY",
	CircuitRelay_HOP_CANT_RELAY_TO_SELF:     "HOP_CANT_RELAY_TO_SELF",
	CircuitRelay_STOP_SRC_ADDR_TOO_LONG:     "STOP_SRC_ADDR_TOO_LONG",
	CircuitRelay_STOP_DST_ADDR_TOO_LONG:     "STOP_DST_ADDR_TOO_LONG",
	CircuitRelay_STOP_SRC_MULTIADDR_INVALID: "STOP_SRC_MULTIADDR_INVALID",
	CircuitRelay_STOP_DST_MULTIADDR_INVALID: "STOP_DST_MULTIADDR_INVALID",
	CircuitRelay_STOP_RELAY_REFUSED:         "STOP_RELAY_REFUSED",
	CircuitRelay_MALFORMED_MESSAGE:          "MALFORMED_MESSAGE",
}

// String 返回状态名，未知值返回数字
func (s CircuitRelay_Status) String() string {
	if n, ok := circuitRelayStatusName[s]; ok {
		return n
	}
	return strconv.Itoa(int(s))
}

// ============================================================================
//                              消息
// ============================================================================

// 字段号
const (
	fieldType    protowire.Number = 1
	fieldSrcPeer protowire.Number = 2
	fieldDstPeer protowire.Number = 3
	fieldCode    protowire.Number = 4

	fieldPeerID    protowire.Number = 1
	fieldPeerAddrs protowire.Number = 2
)

// ErrMissingPeerID Peer 消息缺少必填 id 字段
var ErrMissingPeerID = errors.New("circuit pb: peer id is required")

// CircuitRelay_Peer 节点描述
type CircuitRelay_Peer struct {
	Id    []byte
	Addrs [][]byte
}

// GetId 返回节点 ID，nil 安全
func (p *CircuitRelay_Peer) GetId() []byte {
	if p == nil {
		return nil
	}
	return p.Id
}

// GetAddrs 返回地址列表，nil 安全
func (p *CircuitRelay_Peer) GetAddrs() [][]byte {
	if p == nil {
		return nil
	}
	return p.Addrs
}

func (p *CircuitRelay_Peer) marshal(b []byte) []byte {
	b = protowire.AppendTag(b, fieldPeerID, protowire.BytesType)
	b = protowire.AppendBytes(b, p.Id)
	for _, a := range p.Addrs {
		b = protowire.AppendTag(b, fieldPeerAddrs, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	return b
}

func (p *CircuitRelay_Peer) unmarshal(data []byte) error {
	hasID := false
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldPeerID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			p.Id = append([]byte(nil), v...)
			hasID = true
			data = data[n:]
		case num == fieldPeerAddrs && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			p.Addrs = append(p.Addrs, append([]byte(nil), v...))
			data = data[n:]
		default:
			// 其他字段静默忽略（向前兼容）
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	if !hasID {
		return ErrMissingPeerID
	}
	return nil
}

// CircuitRelay 中继协商消息
//
// Type 与 Code 为零值时表示未设置，编码时省略。
type CircuitRelay struct {
	Type    CircuitRelay_Type
	SrcPeer *CircuitRelay_Peer
	DstPeer *CircuitRelay_Peer
	Code    CircuitRelay_Status
}

// GetType 返回消息类型，nil 安全
func (m *CircuitRelay) GetType() CircuitRelay_Type {
	if m == nil {
		return 0
	}
	return m.Type
}

// GetSrcPeer 返回源节点，nil 安全
func (m *CircuitRelay) GetSrcPeer() *CircuitRelay_Peer {
	if m == nil {
		return nil
	}
	return m.SrcPeer
}

// GetDstPeer 返回目标节点，nil 安全
func (m *CircuitRelay) GetDstPeer() *CircuitRelay_Peer {
	if m == nil {
		return nil
	}
	return m.DstPeer
}

// GetCode 返回状态码，nil 安全
func (m *CircuitRelay) GetCode() CircuitRelay_Status {
	if m == nil {
		return 0
	}
	return m.Code
}

// Marshal 序列化消息
func (m *CircuitRelay) Marshal() ([]byte, error) {
	var b []byte
	if m.Type != 0 {
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	if m.SrcPeer != nil {
		b = protowire.AppendTag(b, fieldSrcPeer, protowire.BytesType)
		b = protowire.AppendBytes(b, m.SrcPeer.marshal(nil))
	}
	if m.DstPeer != nil {
		b = protowire.AppendTag(b, fieldDstPeer, protowire.BytesType)
		b = protowire.AppendBytes(b, m.DstPeer.marshal(nil))
	}
	if m.Code != 0 {
		b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Code))
	}
	return b, nil
}

// Unmarshal 反序列化消息
//
// 重复出现的标量字段以最后一次为准，重复出现的 Peer 字段以最后一次为准。
func (m *CircuitRelay) Unmarshal(data []byte) error {
	*m = CircuitRelay{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Type = CircuitRelay_Type(int32(v))
			data = data[n:]
		case num == fieldCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Code = CircuitRelay_Status(int32(v))
			data = data[n:]
		case (num == fieldSrcPeer || num == fieldDstPeer) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			peer := &CircuitRelay_Peer{}
			if err := peer.unmarshal(v); err != nil {
				return fmt.Errorf("field %d: %w", num, err)
			}
			if num == fieldSrcPeer {
				m.SrcPeer = peer
			} else {
				m.DstPeer = peer
			}
			data = data[n:]
		default:
			// 其他字段静默忽略（向前兼容）
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// String 返回便于日志输出的摘要
func (m *CircuitRelay) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("CircuitRelay{type=%s code=%s src=%t dst=%t}",
		m.Type, m.Code, m.SrcPeer != nil, m.DstPeer != nil)
}
