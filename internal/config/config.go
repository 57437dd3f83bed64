package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	DevTools struct {
		URL           string `yaml:"url"`
		DialTimeoutMS int    `yaml:"dialTimeoutMS"`
		CallTimeoutMS int    `yaml:"callTimeoutMS"`
	} `yaml:"devtools"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.DevTools.URL = "ws://127.0.0.1:9222"
	c.DevTools.DialTimeoutMS = 10000
	c.DevTools.CallTimeoutMS = 30000
	c.Sqlite.Dsn = "db.sqlite3"
	c.Sqlite.Prefix = "cdpdriver_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "cdpdriver.log"
	return c
}

// Load 从文件加载配置，缺省字段取 NewConfig 的默认值
func Load(path string) (*Config, error) {
	c := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("解析配置文件: %w", err)
	}
	return c, nil
}
