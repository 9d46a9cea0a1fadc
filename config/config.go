package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-gate/compat"
	"github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/runtime"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "WASMGATE_"

// Extractor names accepted by the extractor key.
const (
	ExtractorScanner = "scanner"
	ExtractorWazero  = "wazero"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Extractor string          `koanf:"extractor"`
	Contract  compat.Contract `koanf:"contract"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console, json
}

type RuntimeConfig struct {
	MemoryLimitPages uint32 `koanf:"memory_limit_pages"`
	CacheSize        int    `koanf:"cache_size"`
}

// list keys are split on commas when read from the environment
var listKeys = map[string]bool{
	"contract.supported_imports": true,
	"contract.required_exports":  true,
}

// Load reads defaults, then the YAML file at path (if any), then
// WASMGATE_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	def := compat.DefaultContract()
	defaults := map[string]any{
		"log.level":                  "info",
		"log.format":                 "console",
		"extractor":                  ExtractorScanner,
		"contract.version":           def.Version,
		"contract.supported_imports": def.SupportedImports,
		"contract.required_exports":  def.RequiredExports,
		"runtime.memory_limit_pages": 0,
		"runtime.cache_size":         runtime.DefaultCacheSize,
	}
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, errors.Config("set default "+key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Config("load "+path, err)
		}
	}

	// WASMGATE_LOG_LEVEL -> log.level, WASMGATE_RUNTIME_CACHE__SIZE -> runtime.cache_size
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Config("load environment", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Config("decode", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", "\x00")
	key = strings.ReplaceAll(key, "_", ".")
	key = strings.ReplaceAll(key, "\x00", "_")

	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// Validate rejects unknown enum values and an invalid contract.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "format").
			Value(c.Log.Format).
			Detail("log format must be console or json").
			Build()
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Value(c.Log.Level).
			Cause(err).
			Detail("unknown log level").
			Build()
	}
	switch c.Extractor {
	case ExtractorScanner, ExtractorWazero:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("extractor").
			Value(c.Extractor).
			Detail("extractor must be %s or %s", ExtractorScanner, ExtractorWazero).
			Build()
	}
	if c.Runtime.CacheSize < -1 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("runtime", "cache_size").
			Value(c.Runtime.CacheSize).
			Detail("cache size must be -1 (disabled) or more").
			Build()
	}
	return c.Contract.Validate()
}

// RuntimeOptions returns the runtime configuration the settings describe.
func (c *Config) RuntimeOptions() runtime.Config {
	return runtime.Config{
		MemoryLimitPages: c.Runtime.MemoryLimitPages,
		CacheSize:        c.Runtime.CacheSize,
	}
}

// Logger builds a zap logger from the log settings. verbose forces debug.
func (c *Config) Logger(verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Config("log level", err)
	}
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}

	l, err := zc.Build()
	if err != nil {
		return nil, errors.Config("build logger", err)
	}
	return l, nil
}
