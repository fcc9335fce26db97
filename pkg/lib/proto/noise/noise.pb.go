// Package noise 定义 Noise 握手 payload 的线格式
//
// 字段号与 libp2p-noise 的 NoiseHandshakePayload 一致。
package noise

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidPayload 表示无效的 payload 数据
var ErrInvalidPayload = errors.New("noise pb: invalid payload")

const (
	fieldIdentityKey protowire.Number = 1
	fieldIdentitySig protowire.Number = 2
)

// NoiseHandshakePayload Noise 握手 payload
//
//   - IdentityKey: Ed25519 身份公钥（32 字节原始格式）
//   - IdentitySig: Sign("noise-libp2p-static-key:" + curve25519_static_pubkey)
type NoiseHandshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
}

// Marshal 序列化
func (p *NoiseHandshakePayload) Marshal() ([]byte, error) {
	b := make([]byte, 0, len(p.IdentityKey)+len(p.IdentitySig)+4)
	if len(p.IdentityKey) > 0 {
		b = protowire.AppendTag(b, fieldIdentityKey, protowire.BytesType)
		b = protowire.AppendBytes(b, p.IdentityKey)
	}
	if len(p.IdentitySig) > 0 {
		b = protowire.AppendTag(b, fieldIdentitySig, protowire.BytesType)
		b = protowire.AppendBytes(b, p.IdentitySig)
	}
	return b, nil
}

// Unmarshal 反序列化，未知字段静默忽略
func (p *NoiseHandshakePayload) Unmarshal(data []byte) error {
	*p = NoiseHandshakePayload{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrInvalidPayload
		}
		data = data[n:]

		if typ == protowire.BytesType && (num == fieldIdentityKey || num == fieldIdentitySig) {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrInvalidPayload
			}
			if num == fieldIdentityKey {
				p.IdentityKey = append([]byte(nil), v...)
			} else {
				p.IdentitySig = append([]byte(nil), v...)
			}
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return ErrInvalidPayload
		}
		data = data[n:]
	}
	return nil
}
