// Package config 加载 pairfeed 的运行配置。
//
// 配置分三层，后者覆盖前者：
//  1. 结构体默认值（Default）
//  2. 可选的 YAML 文件
//  3. PAIRFEED_ 前缀的环境变量，段之间用双下划线分隔，例如
//     PAIRFEED_SAMPLER__BATCH_SIZE=256 → sampler.batch_size
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/pairfeed/source"
)

// EnvPrefix 是环境变量覆盖的前缀。
const EnvPrefix = "PAIRFEED_"

// Config 是命令行工具的完整配置。
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Source  SourceConfig  `koanf:"source"`
	Model   ModelConfig   `koanf:"model"`
	Sampler SamplerConfig `koanf:"sampler"`
	Run     RunConfig     `koanf:"run"`
}

type LogConfig struct {
	Mode string `koanf:"mode" validate:"oneof=development production"`
}

// SourceConfig 描述训练数据从哪里来。Kind 对应 RegisterSource 注册的名称。
type SourceConfig struct {
	Kind           string             `koanf:"kind" validate:"required"`
	Manifest       string             `koanf:"manifest" validate:"required_if=Kind manifest"`
	Filter         string             `koanf:"filter"`
	ContextColumns []string           `koanf:"context_columns"`
	UserFeatures   source.FeatureSpec `koanf:"user_features"`
	ItemFeatures   source.FeatureSpec `koanf:"item_features"`
	Redis          RedisConfig        `koanf:"redis"`
	Feast          FeastConfig        `koanf:"feast"`
}

type RedisConfig struct {
	Addr        string             `koanf:"addr"`
	DB          int                `koanf:"db" validate:"gte=0"`
	Layout      source.StoreLayout `koanf:"layout"`
	MaxPerUser  int64              `koanf:"max_per_user" validate:"gte=0"`
	Concurrency int                `koanf:"concurrency" validate:"gte=0"`
}

// FeastConfig 非空 Endpoint 时，实体特征改从 Feast 读取。
type FeastConfig struct {
	Endpoint   string        `koanf:"endpoint"`
	Project    string        `koanf:"project"`
	Timeout    time.Duration `koanf:"timeout"`
	UserEntity string        `koanf:"user_entity"`
	ItemEntity string        `koanf:"item_entity"`
	ChunkSize  int           `koanf:"chunk_size" validate:"gte=0"`
}

// ModelConfig 描述自适应采样使用的打分模型。Kind 为空表示不加载模型。
type ModelConfig struct {
	Kind     string        `koanf:"kind"`
	Dim      int           `koanf:"dim" validate:"gte=0"`
	Seed     uint64        `koanf:"seed"`
	Endpoint string        `koanf:"endpoint" validate:"required_if=Kind rpc"`
	Timeout  time.Duration `koanf:"timeout"`

	// Path 是 lr 模型的权重文件
	Path string `koanf:"path" validate:"required_if=Kind lr"`
}

// RunConfig 控制命令行工具的运行方式。
type RunConfig struct {
	Batches     int    `koanf:"batches" validate:"gte=0"`
	Prefetch    int    `koanf:"prefetch" validate:"gte=0"`
	MetricsAddr string `koanf:"metrics_addr"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "production"},
		Source: SourceConfig{
			Kind: "manifest",
			Redis: RedisConfig{
				Addr:        "127.0.0.1:6379",
				Layout:      source.DefaultStoreLayout(),
				Concurrency: 16,
			},
			Feast: FeastConfig{
				Timeout:    5 * time.Second,
				UserEntity: "user_id",
				ItemEntity: "item_id",
				ChunkSize:  500,
			},
		},
		Model: ModelConfig{
			Dim:     32,
			Timeout: 5 * time.Second,
		},
		Sampler: DefaultSamplerConfig(),
		Run: RunConfig{
			Batches:     10,
			MetricsAddr: ":9090",
		},
	}
}

// sliceConfigPaths 是需要把逗号分隔字符串拆成切片的配置项（来自环境变量时）。
var sliceConfigPaths = []string{
	"source.context_columns",
	"source.user_features.categorical",
	"source.user_features.numerical",
	"source.item_features.categorical",
	"source.item_features.numerical",
	"sampler.pair_inputs",
}

// Load 按 默认值 → 文件 → 环境变量 的顺序加载配置并校验。path 为空时跳过文件层。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc: PAIRFEED_SOURCE__REDIS__ADDR → source.redis.addr
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate 校验字段取值与字段之间的约束。
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return err
	}
	if _, err := c.Sampler.Options(); err != nil {
		return err
	}
	if c.Sampler.Method == "adaptive" && c.Model.Kind == "" {
		return fmt.Errorf("sampler method adaptive requires model.kind")
	}
	return nil
}
