// Package config 加载服务配置
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config 服务配置
type Config struct {
	Http  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
	Model ModelConfig `yaml:"model"`
	Cache CacheConfig `yaml:"cache"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// CacheConfig 预测缓存配置, Size为0时关闭缓存
type CacheConfig struct {
	Size int `yaml:"size"`
}

const (
	DefaultPort      = 8501
	DefaultTimeout   = 30 * time.Second
	DefaultModelType = "decision_tree"
	DefaultModelPath = "./models/heart.json"
	DefaultCacheSize = 1024
)

var supportedModelTypes = map[string]bool{
	"decision_tree":       true,
	"logistic_regression": true,
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Cache.Size = DefaultCacheSize
	return cfg
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	config.applyDefaults()

	// 相对路径以配置文件所在目录为准
	if !filepath.IsAbs(config.Model.Path) {
		config.Model.Path = filepath.Join(filepath.Dir(path), config.Model.Path)
	}
	if config.Log.File != "" && !filepath.IsAbs(config.Log.File) {
		config.Log.File = filepath.Join(filepath.Dir(path), config.Log.File)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Locate 查找配置文件: HEART_CONFIG, ./config.yaml, ../config.yaml
func Locate() string {
	if path := os.Getenv("HEART_CONFIG"); path != "" {
		return path
	}
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join("..", "config.yaml")
	}
	return configPath
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Http.Port)
	}
	if c.Http.Timeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	if c.Model.Path == "" {
		return errors.New("model path is required")
	}
	if !supportedModelTypes[c.Model.Type] {
		return fmt.Errorf("unsupported model type %q", c.Model.Type)
	}
	if c.Cache.Size < 0 {
		return errors.New("cache size must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = DefaultPort
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = DefaultTimeout
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Model.Type == "" {
		c.Model.Type = DefaultModelType
	}
	if c.Model.Path == "" {
		c.Model.Path = DefaultModelPath
	}
}

func (c *Config) applyEnv() error {
	if path := os.Getenv("HEART_MODEL_PATH"); path != "" {
		c.Model.Path = path
	}
	if port := os.Getenv("HEART_HTTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid HEART_HTTP_PORT %q: %w", port, err)
		}
		c.Http.Port = p
	}
	return nil
}
