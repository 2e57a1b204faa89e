// Package config loads the daemon's TOML configuration file, applying
// the same unset-optional-section defaulting style
// internal/parser/toml uses for the schema format.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tablekv/internal/errs"
)

// StorageKind selects which kv.Backend the daemon drives.
type StorageKind string

const (
	StorageMem  StorageKind = "mem"
	StorageTiKV StorageKind = "tikv"
)

// TiKVConfig configures the remote backend. Defaults mirror
// TiKVConfig::default() in the original implementation.
type TiKVConfig struct {
	PDAddress          []string `toml:"pd-address"`
	GRPCPoolSize       int      `toml:"grpc-pool-size"`
	GRPCConnectTimeout int      `toml:"grpc-connect-timeout"`
}

func defaultTiKVConfig() *TiKVConfig {
	return &TiKVConfig{
		PDAddress:          []string{"127.0.0.1:2379"},
		GRPCPoolSize:       4,
		GRPCConnectTimeout: 4 * 60 * 1000,
	}
}

// ConnectTimeout returns the configured gRPC dial timeout as a
// time.Duration.
func (c *TiKVConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.GRPCConnectTimeout) * time.Millisecond
}

// Config is the top-level TOML document read from the --config file.
type Config struct {
	Storage            string      `toml:"storage"`
	ConnectionPoolSize int         `toml:"connection-pool-size"`
	TiKV               *TiKVConfig `toml:"tikv"`
}

// Default returns a Config populated with every documented default.
func Default() *Config {
	return &Config{
		Storage:            string(StorageMem),
		ConnectionPoolSize: 4,
		TiKV:               defaultTiKVConfig(),
	}
}

// Parse reads TOML content from r, applying defaults for any key or
// section the document leaves unset.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, "config: decode error", err)
	}
	if md.IsDefined("connection-pool-size") && cfg.ConnectionPoolSize < 1 {
		return nil, errs.Newf(errs.KindParse, "config: connection-pool-size must be >= 1, got %d", cfg.ConnectionPoolSize)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFile opens path and parses it as a daemon config file.
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, fmt.Sprintf("config: open file %q", path), err)
	}
	defer f.Close()
	return Parse(f)
}

func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = string(StorageMem)
	}
	if c.ConnectionPoolSize == 0 {
		c.ConnectionPoolSize = 4
	}
	if c.TiKV == nil {
		c.TiKV = defaultTiKVConfig()
		return
	}
	if len(c.TiKV.PDAddress) == 0 {
		c.TiKV.PDAddress = []string{"127.0.0.1:2379"}
	}
	if c.TiKV.GRPCPoolSize == 0 {
		c.TiKV.GRPCPoolSize = 4
	}
	if c.TiKV.GRPCConnectTimeout == 0 {
		c.TiKV.GRPCConnectTimeout = 4 * 60 * 1000
	}
}

func (c *Config) validate() error {
	normalized := StorageKind(strings.ToLower(c.Storage))
	switch normalized {
	case StorageMem, StorageTiKV:
	default:
		return errs.Newf(errs.KindParse, "config: unrecognized storage %q", c.Storage)
	}
	c.Storage = string(normalized)
	if c.ConnectionPoolSize < 1 {
		return errs.Newf(errs.KindParse, "config: connection-pool-size must be >= 1, got %d", c.ConnectionPoolSize)
	}
	return nil
}
