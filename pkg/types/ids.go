package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 内部保存 multihash 原始字节（通常是公钥的 SHA2-256 multihash），
// 与中继协议消息中 srcPeer.id / dstPeer.id 字段的字节完全一致。
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前缀（日志简短标识）
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

var (
	// ErrEmptyPeerID 空节点 ID
	ErrEmptyPeerID = errors.New("types: empty peer id")

	// ErrInvalidPeerID 无效的节点 ID
	ErrInvalidPeerID = errors.New("types: invalid peer id")
)

// String 返回 PeerID 的 Base58 字符串表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode([]byte(id))
}

// ShortString 返回 PeerID 的短字符串表示
//
// 格式：Base58 末尾 8 个字符。multihash 前缀对同一算法的 ID 都相同，
// 取末尾更便于在日志中区分节点。
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[len(s)-8:]
	}
	return s
}

// Bytes 返回 PeerID 的原始字节
func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Validate 检查 PeerID 是否为合法的 multihash
func (id PeerID) Validate() error {
	if id.IsEmpty() {
		return ErrEmptyPeerID
	}
	if _, err := mh.Cast([]byte(id)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return nil
}

// PeerIDFromBytes 从协议消息中的原始字节解码 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) == 0 {
		return EmptyPeerID, ErrEmptyPeerID
	}
	id := PeerID(b)
	if err := id.Validate(); err != nil {
		return EmptyPeerID, err
	}
	return id, nil
}

// ParsePeerID 从 Base58 字符串解析 PeerID
//
// 用于命令行参数和配置文件。
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return PeerIDFromBytes(b)
}

// PeerIDFromPublicKey 从公钥字节派生 PeerID（SHA2-256 multihash）
func PeerIDFromPublicKey(pub []byte) (PeerID, error) {
	sum, err := mh.Sum(pub, mh.SHA2_256, -1)
	if err != nil {
		return EmptyPeerID, err
	}
	return PeerID(sum), nil
}
