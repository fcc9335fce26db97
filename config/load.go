package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 从配置文件加载配置
//
// 文件中未出现的字段保留 DefaultConfig 的值。文件格式按扩展名识别
// （yaml / yml / json / toml）。加载后执行 Validate。
func Load(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadConf(cfgFile); err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadConf(cfgFile string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file not set")
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return fmt.Errorf("config file %s: %w", cfgFile, err)
	}

	v := viper.New()
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	// 列表字段以文件为准，不与默认值按下标合并
	zero := func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true }
	if err := v.Unmarshal(c, zero); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", cfgFile, err)
	}
	return nil
}
