// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/rmqindex/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Version string        `mapstructure:"version" toml:"version"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
	Index   IndexConfig   `mapstructure:"index"   toml:"index"`
}

// TracingConfig 链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	Exporter     string  `mapstructure:"exporter"      toml:"exporter"      validate:"omitempty,oneof=otlp stdout"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format"      toml:"format"      validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否启用压缩。
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"    validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// IndexConfig 定义索引服务的容量与查询并发参数.
type IndexConfig struct {
	// MaxLength 单个序列允许的最大长度。
	MaxLength int `mapstructure:"max_length" toml:"max_length" validate:"min=1"`
	// QueryConcurrency 批量查询时的最大并发 goroutine 数。
	QueryConcurrency int `mapstructure:"query_concurrency" toml:"query_concurrency" validate:"min=1,max=1024"`
	// SlowBuildThreshold 超过该耗时的构建以 Warn 级别记录。
	SlowBuildThreshold time.Duration `mapstructure:"slow_build_threshold" toml:"slow_build_threshold"`
	// Preload 启动时构建的命名序列。
	Preload []PreloadConfig `mapstructure:"preload" toml:"preload" validate:"dive"`
}

// PreloadConfig 描述一个启动时构建的序列。
type PreloadConfig struct {
	Name   string  `mapstructure:"name"   toml:"name"   validate:"required"`
	Values []int64 `mapstructure:"values" toml:"values" validate:"required,min=1"`
}

// LoggingConfig 将日志配置转换为 logging.Config.
func (c LogConfig) LoggingConfig(service, module string) logging.Config {
	return logging.Config{
		Service:    service,
		Module:     module,
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// reloadDebounce 合并一次保存产生的多个文件事件.
const reloadDebounce = 100 * time.Millisecond

// setDefaults 填充未配置项的默认值.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.service_name", "rmqindex")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("index.max_length", 1<<24)
	v.SetDefault("index.query_concurrency", 8)
	v.SetDefault("index.slow_build_threshold", "200ms")
}

// Default 返回全部取默认值的配置.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	conf := &Config{}
	// 默认值均为合法的基础类型，解码不会失败。
	_ = v.Unmarshal(conf)
	return conf
}

// Load 加载 TOML 配置文件，支持 APP_ 前缀的环境变量覆盖与校验.
// 每次调用使用独立的 viper 实例，不注册文件监听；热更新见 Watch.
func Load(path string, conf *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	if err := validator.New().Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Watch 监听 path 的变更并热更新：重新加载并校验通过后更新日志级别，再依次调用 hooks.
// 校验失败的变更只记录日志。返回的 stop 关闭监听并等待后台 goroutine 退出.
func Watch(path string, hooks ...func(*Config)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	path = filepath.Clean(path)
	// 监听目录而非文件，编辑器以重命名方式保存时文件句柄会失效.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	reload := func() {
		next := &Config{}
		if err := Load(path, next); err != nil {
			slog.Error("config reload failed", "file", path, "error", err)
			return
		}
		logging.SetLevel(next.Log.Level)
		slog.Info("config hot-reloaded and validated successfully", "file", path)
		for _, hook := range hooks {
			hook(next)
		}
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				slog.Debug("detecting config change", "file", event.Name, "op", event.Op.String())
				mu.Lock()
				if !stopped {
					if timer == nil {
						timer = time.AfterFunc(reloadDebounce, reload)
					} else {
						timer.Reset(reloadDebounce)
					}
				}
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "file", path, "error", err)
			}
		}
	}()

	return func() error {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		err := watcher.Close()
		<-done
		return err
	}, nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}

	mask(configMap)

	maskedJSON, err := json.MarshalIndent(configMap, "  ", "  ")
	if err != nil {
		slog.Error("failed to marshal masked config", "error", err)
		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}
