// Package config 读取和写出装配器配置 (pack200.toml)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// 常量定义
const (
	ConfigFileName = "pack200.toml" // 配置文件名
)

// Config 装配器配置
type Config struct {
	ClassFile ClassFileConfig `toml:"classfile"`
	Assembler AssemblerConfig `toml:"assembler"`
	Log       LogConfig       `toml:"log"`
}

// ClassFileConfig 输出 class 文件的版本
type ClassFileConfig struct {
	Major uint16 `toml:"major"`
	Minor uint16 `toml:"minor"`
}

// AssemblerConfig 批量装配参数
type AssemblerConfig struct {
	// Workers 并发装配的 goroutine 数，0 表示使用 CPU 数
	Workers int `toml:"workers"`

	// Strict 为 true 时，没有全局索引的非 UTF8/Class 条目视为错误
	Strict bool `toml:"strict"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level debug / info / warn / error
	Level string `toml:"level"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		ClassFile: ClassFileConfig{
			Major: jvmgen.ClassMajorVersion,
			Minor: jvmgen.ClassMinorVersion,
		},
		Assembler: AssemblerConfig{
			Workers: runtime.NumCPU(),
			Strict:  true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置，未出现的字段保留默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Assembler.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Assembler.Workers)
	}
	if c.ClassFile.Major < 45 {
		return fmt.Errorf("invalid class file major version: %d", c.ClassFile.Major)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// WorkerCount 实际使用的并发数
func (c *Config) WorkerCount() int {
	if c.Assembler.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Assembler.Workers
}

// Logger 按配置的级别创建 zap 日志
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	// 生成带注释的配置文件内容
	content := generateConfigWithComments(c)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[classfile]\n")
	sb.WriteString("# class 文件主版本号（52 对应 Java 8）\n")
	sb.WriteString(fmt.Sprintf("major = %d\n", c.ClassFile.Major))
	sb.WriteString(fmt.Sprintf("minor = %d\n\n", c.ClassFile.Minor))

	sb.WriteString("[assembler]\n")
	sb.WriteString("# 并发装配数，0 表示使用 CPU 数\n")
	sb.WriteString(fmt.Sprintf("workers = %d\n", c.Assembler.Workers))
	sb.WriteString("# 严格排序：缺少全局索引的常量视为错误\n")
	sb.WriteString(fmt.Sprintf("strict = %t\n\n", c.Assembler.Strict))

	sb.WriteString("[log]\n")
	sb.WriteString("# debug / info / warn / error\n")
	sb.WriteString(fmt.Sprintf("level = %q\n", c.Log.Level))

	return sb.String()
}

// FindConfigFile 从指定路径向上查找配置文件
// 返回配置文件的完整路径，如果找不到则返回空字符串
func FindConfigFile(startPath string) string {
	// 如果是文件，从其所在目录开始
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	var dir string
	if info.IsDir() {
		dir = startPath
	} else {
		dir = filepath.Dir(startPath)
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// 已到达根目录
			return ""
		}
		dir = parent
	}
}

// LoadOrDefault 从 startPath 向上查找配置文件，找不到时返回默认配置
func LoadOrDefault(startPath string) (*Config, error) {
	path := FindConfigFile(startPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
