// Package identity 管理节点身份
//
// 节点身份是一把 Ed25519 密钥，PeerID 为公钥的 SHA2-256 multihash。
// 私钥以 PEM 格式持久化，文件权限 0600。
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/util/logger"
	"github.com/dep2p/go-circuit/pkg/types"
)

var log = logger.Logger("identity")

// Identity 节点身份
type Identity struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	id   types.PeerID
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey 从 Ed25519 私钥创建身份
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	pub := priv.Public().(ed25519.PublicKey)
	id, err := types.PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	return &Identity{priv: priv, pub: pub, id: id}, nil
}

// Load 按配置加载身份
//
// KeyFile 为空时生成临时身份；文件不存在且允许 AutoGenerate 时生成并写入。
func Load(cfg config.IdentityConfig) (*Identity, error) {
	if cfg.KeyFile == "" {
		if !cfg.AutoGenerate {
			return nil, ErrKeyNotFound
		}
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		log.Info("使用临时身份", "peer", id.ID().ShortString())
		return id, nil
	}

	priv, err := LoadPrivateKeyPEM(cfg.KeyFile)
	switch {
	case err == nil:
		id, err := FromPrivateKey(priv)
		if err != nil {
			return nil, err
		}
		log.Info("已加载身份", "peer", id.ID().ShortString(), "file", cfg.KeyFile)
		return id, nil

	case errors.Is(err, ErrKeyNotFound) && cfg.AutoGenerate:
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := SavePrivateKeyPEM(id.priv, cfg.KeyFile); err != nil {
			return nil, fmt.Errorf("save private key: %w", err)
		}
		log.Info("已生成并保存身份", "peer", id.ID().ShortString(), "file", cfg.KeyFile)
		return id, nil

	default:
		return nil, err
	}
}

// ID 返回 PeerID
func (i *Identity) ID() types.PeerID {
	return i.id
}

// PublicKey 返回 Ed25519 公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.pub
}

// PrivateKey 返回 Ed25519 私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// Sign 签名
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.priv, data)
}

// Verify 用 Ed25519 公钥验证签名
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}
