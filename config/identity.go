package config

import "errors"

// IdentityConfig 身份配置
//
// 节点身份是一把 Ed25519 密钥，PeerID 由公钥派生。
type IdentityConfig struct {
	// KeyFile 私钥 PEM 文件路径
	// 为空时每次启动在内存中生成临时身份
	KeyFile string `mapstructure:"key_file" json:"key_file"`

	// AutoGenerate 密钥文件不存在时是否生成并写入
	AutoGenerate bool `mapstructure:"auto_generate" json:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyFile:      "",
		AutoGenerate: true,
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.KeyFile == "" && !c.AutoGenerate {
		return errors.New("identity: key_file is required when auto_generate is disabled")
	}
	return nil
}
