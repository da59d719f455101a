// Package config loads funhost settings from defaults, an optional config
// file, FUNHOST_* environment variables, and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/engine/wasm"
	"github.com/caffeineduck/funhost/host"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key: content_root is read
// from FUNHOST_CONTENT_ROOT.
const EnvPrefix = "FUNHOST"

// Config is the resolved funhost configuration.
type Config struct {
	ContentRoot   string `mapstructure:"content_root"`
	ManifestPath  string `mapstructure:"manifest_path"`
	SourcesPrefix string `mapstructure:"sources_prefix"`
	StagingRoot   string `mapstructure:"staging_root"`
	ConfigsRoot   string `mapstructure:"configs_root"`
	EngineAsset   string `mapstructure:"engine_asset"`
	Guest         string `mapstructure:"guest"`
	EntryModule   string `mapstructure:"entry_module"`
	EntrySymbol   string `mapstructure:"entry_symbol"`
	DiskCache     bool   `mapstructure:"disk_cache"`
	CacheDir      string `mapstructure:"cache_dir"`
	Memory        string `mapstructure:"memory"`
	Listen        string `mapstructure:"listen"`
	LogLevel      string `mapstructure:"log_level"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	hc := host.DefaultConfig()
	return Config{
		ContentRoot:   "web",
		ManifestPath:  hc.ManifestPath,
		SourcesPrefix: hc.SourcesPrefix,
		StagingRoot:   hc.StagingRoot,
		ConfigsRoot:   hc.ConfigsRoot,
		EngineAsset:   "engine/python.wasm",
		Guest:         "python",
		EntryModule:   hc.EntryModule,
		EntrySymbol:   hc.EntrySymbol,
		DiskCache:     true,
		Memory:        "256mb",
		Listen:        ":8080",
		LogLevel:      "info",
	}
}

// LoadOptions says where to read settings from beyond the defaults.
type LoadOptions struct {
	// ConfigFile is a yaml, toml, or json file. Empty means none.
	ConfigFile string
	// Flags are bound by key name with dashes in place of underscores, so
	// --content-root overrides content_root. Unset flags do not override.
	Flags *pflag.FlagSet
	// Env looks up environment variables. Nil means os.LookupEnv.
	Env func(string) (string, bool)
}

// Load resolves the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("content_root", defaults.ContentRoot)
	v.SetDefault("manifest_path", defaults.ManifestPath)
	v.SetDefault("sources_prefix", defaults.SourcesPrefix)
	v.SetDefault("staging_root", defaults.StagingRoot)
	v.SetDefault("configs_root", defaults.ConfigsRoot)
	v.SetDefault("engine_asset", defaults.EngineAsset)
	v.SetDefault("guest", defaults.Guest)
	v.SetDefault("entry_module", defaults.EntryModule)
	v.SetDefault("entry_symbol", defaults.EntrySymbol)
	v.SetDefault("disk_cache", defaults.DiskCache)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("memory", defaults.Memory)
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("log_level", defaults.LogLevel)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	lookup := opts.Env
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range v.AllKeys() {
		if val, ok := lookup(EnvPrefix + "_" + strings.ToUpper(key)); ok {
			v.Set(key, val)
		}
	}

	if opts.Flags != nil {
		for _, key := range v.AllKeys() {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil && f.Changed {
				v.Set(key, f.Value.String())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields that have a fixed vocabulary or must be set.
func (c Config) Validate() error {
	var errs []error
	if c.ContentRoot == "" {
		errs = append(errs, errors.New("content_root is required"))
	}
	if c.ManifestPath == "" {
		errs = append(errs, errors.New("manifest_path is required"))
	}
	if !strings.HasPrefix(c.StagingRoot, "/") {
		errs = append(errs, fmt.Errorf("staging_root %q must be absolute", c.StagingRoot))
	}
	if !strings.HasPrefix(c.ConfigsRoot, "/") {
		errs = append(errs, fmt.Errorf("configs_root %q must be absolute", c.ConfigsRoot))
	}
	if c.EntryModule == "" || c.EntrySymbol == "" {
		errs = append(errs, errors.New("entry_module and entry_symbol are required"))
	}
	if c.Guest != "python" {
		errs = append(errs, fmt.Errorf("unknown guest %q (expected python)", c.Guest))
	}
	if _, err := c.MemoryPages(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Host returns the controller configuration.
func (c Config) Host() host.Config {
	return host.Config{
		ManifestPath:  c.ManifestPath,
		SourcesPrefix: c.SourcesPrefix,
		StagingRoot:   c.StagingRoot,
		ConfigsRoot:   c.ConfigsRoot,
		EntryModule:   c.EntryModule,
		EntrySymbol:   c.EntrySymbol,
		Engine:        engine.Options{AssetURL: c.EngineAsset},
	}
}

// MemoryPages converts Memory to wasm pages. "" and "default" mean no limit.
func (c Config) MemoryPages() (uint32, error) {
	switch strings.ToLower(c.Memory) {
	case "", "default":
		return 0, nil
	case "64mb":
		return wasm.MemoryLimit64MB, nil
	case "256mb":
		return wasm.MemoryLimit256MB, nil
	case "1gb":
		return wasm.MemoryLimit1GB, nil
	default:
		return 0, fmt.Errorf("invalid memory %q (expected 64mb, 256mb, or 1gb)", c.Memory)
	}
}

// EngineOptions returns the wasm engine options implied by the settings.
func (c Config) EngineOptions(logger *log.Logger) []wasm.Option {
	opts := []wasm.Option{wasm.WithLogger(logger)}
	if c.DiskCache {
		opts = append(opts, wasm.WithDiskCache(c.CacheDir))
	}
	if pages, _ := c.MemoryPages(); pages > 0 {
		opts = append(opts, wasm.WithMemoryLimit(pages))
	}
	return opts
}

// NewLogger returns a logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "funhost",
		Level:  level,
	})
}
