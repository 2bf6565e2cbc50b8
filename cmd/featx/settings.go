package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings 命令行运行参数。
// 优先级：命令行参数 > FEATX_* 环境变量 > -settings 指定的配置文件 > 默认值
type Settings struct {
	Pipeline       string          `mapstructure:"pipeline" validate:"required"`
	Format         string          `mapstructure:"format" validate:"oneof=wide long"`
	ExtractorNames string          `mapstructure:"extractor_names" validate:"omitempty,oneof=prepend column drop"`
	Filter         string          `mapstructure:"filter"`
	Output         string          `mapstructure:"output"`
	ComplexText    bool            `mapstructure:"complex_text"`
	MaxConcurrent  int             `mapstructure:"max_concurrent" validate:"gte=0"`
	Log            LogSettings     `mapstructure:"log"`
	Model          ModelSettings   `mapstructure:"model"`
	Redis          RedisSettings   `mapstructure:"redis"`
	Metrics        MetricsSettings `mapstructure:"metrics"`
}

type LogSettings struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type ModelSettings struct {
	WeightsRoot string        `mapstructure:"weights_root"`
	ONNXLibrary string        `mapstructure:"onnx_library"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Token       string        `mapstructure:"token"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Password string `mapstructure:"password"`
	TTL      int    `mapstructure:"ttl" validate:"gte=0"`
}

type MetricsSettings struct {
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// flagKeys 命令行参数名到配置 key 的映射
var flagKeys = map[string]string{
	"pipeline":        "pipeline",
	"format":          "format",
	"extractor-names": "extractor_names",
	"filter":          "filter",
	"output":          "output",
	"complex-text":    "complex_text",
	"max-concurrent":  "max_concurrent",
	"log-level":       "log.level",
	"log-dev":         "log.development",
	"weights-root":    "model.weights_root",
	"onnx-library":    "model.onnx_library",
	"model-timeout":   "model.timeout",
	"redis-addr":      "redis.addr",
	"redis-db":        "redis.db",
	"redis-ttl":       "redis.ttl",
	"metrics-addr":    "metrics.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline", "")
	v.SetDefault("format", "wide")
	v.SetDefault("extractor_names", "")
	v.SetDefault("filter", "")
	v.SetDefault("output", "")
	v.SetDefault("complex_text", false)
	v.SetDefault("max_concurrent", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("model.weights_root", "")
	v.SetDefault("model.onnx_library", "")
	v.SetDefault("model.timeout", 30*time.Second)
	v.SetDefault("model.token", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 0)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.namespace", "featx")
}

func newFlagSet(output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("featx", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.String("settings", "", "settings file (yaml/json/toml)")
	fs.String("pipeline", "", "pipeline config file")
	fs.String("format", "wide", "output format: wide or long")
	fs.String("extractor-names", "", "extractor names: prepend, column or drop")
	fs.String("filter", "", "CEL expression applied to long format rows")
	fs.String("output", "", "CSV output file (default stdout)")
	fs.Bool("complex-text", false, "load text files as word sequences")
	fs.Int("max-concurrent", 0, "max concurrent extractions per extractor")
	fs.String("log-level", "info", "log level")
	fs.Bool("log-dev", false, "development logger")
	fs.String("weights-root", "", "root of fixed architecture model endpoints")
	fs.String("onnx-library", "", "onnxruntime shared library path")
	fs.Duration("model-timeout", 30*time.Second, "model request timeout")
	fs.String("redis-addr", "", "redis address for result persistence")
	fs.Int("redis-db", 0, "redis db")
	fs.Int("redis-ttl", 0, "result ttl in seconds")
	fs.String("metrics-addr", "", "serve prometheus metrics on this address")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: featx -pipeline pipeline.yaml [flags] files...")
		fs.PrintDefaults()
	}
	return fs
}

// LoadSettings 解析命令行参数并合并环境变量与配置文件，返回设置和刺激文件列表
func LoadSettings(args []string, output io.Writer) (*Settings, []string, error) {
	fs := newFlagSet(output)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FEATX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if f := fs.Lookup("settings").Value.String(); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read settings %s: %w", f, err)
		}
	}

	// 只有显式给出的参数才覆盖
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := validator.New().Struct(&s); err != nil {
		return nil, nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, fs.Args(), nil
}
