// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/sqlexec/lib/util/errors"
)

var (
	ErrInvalidConfigValue = errors.New("invalid config value")
)

const (
	FlavorAuto    = "auto"
	FlavorMySQL   = "mysql"
	FlavorMariaDB = "mariadb"

	DefaultPort           = 3306
	DefaultMaxColumnBytes = 131072
)

type Config struct {
	Database Database `yaml:"database,omitempty" toml:"database,omitempty" json:"database,omitempty"`
	Engine   Engine   `yaml:"engine,omitempty" toml:"engine,omitempty" json:"engine,omitempty"`
	API      API      `yaml:"api,omitempty" toml:"api,omitempty" json:"api,omitempty"`
	Log      Log      `yaml:"log,omitempty" toml:"log,omitempty" json:"log,omitempty"`
}

// Database holds the resolved connection parameters.
// Socket and Port are mutually exclusive: a non-empty Socket connects through the unix socket.
type Database struct {
	Host     string `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty"`
	User     string `yaml:"user,omitempty" toml:"user,omitempty" json:"user,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty" json:"password,omitempty"`
	Schema   string `yaml:"schema,omitempty" toml:"schema,omitempty" json:"schema,omitempty"`
	Port     int    `yaml:"port,omitempty" toml:"port,omitempty" json:"port,omitempty"`
	Socket   string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty"`
	// Flavor selects the session variable used for MaxExecutionTime. "auto" asks the server.
	Flavor           string        `yaml:"flavor,omitempty" toml:"flavor,omitempty" json:"flavor,omitempty"`
	MaxExecutionTime time.Duration `yaml:"max-execution-time,omitempty" toml:"max-execution-time,omitempty" json:"max-execution-time,omitempty"`
	DialTimeout      time.Duration `yaml:"dial-timeout,omitempty" toml:"dial-timeout,omitempty" json:"dial-timeout,omitempty"`
}

type Engine struct {
	// MaxColumnBytes caps the bytes kept for one fetched column value.
	MaxColumnBytes    int           `yaml:"max-column-bytes,omitempty" toml:"max-column-bytes,omitempty" json:"max-column-bytes,omitempty"`
	TxnWaitInterval   time.Duration `yaml:"txn-wait-interval,omitempty" toml:"txn-wait-interval,omitempty" json:"txn-wait-interval,omitempty"`
	ReconnectRetries  uint64        `yaml:"reconnect-retries,omitempty" toml:"reconnect-retries,omitempty" json:"reconnect-retries,omitempty"`
	ReconnectInterval time.Duration `yaml:"reconnect-interval,omitempty" toml:"reconnect-interval,omitempty" json:"reconnect-interval,omitempty"`
}

type API struct {
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty" json:"addr,omitempty"`
}

type Log struct {
	Encoder string  `yaml:"encoder,omitempty" toml:"encoder,omitempty" json:"encoder,omitempty"`
	Level   string  `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty"`
	LogFile LogFile `yaml:"log-file,omitempty" toml:"log-file,omitempty" json:"log-file,omitempty"`
}

type LogFile struct {
	Filename   string `yaml:"filename,omitempty" toml:"filename,omitempty" json:"filename,omitempty"`
	MaxSize    int    `yaml:"max-size,omitempty" toml:"max-size,omitempty" json:"max-size,omitempty"`
	MaxDays    int    `yaml:"max-days,omitempty" toml:"max-days,omitempty" json:"max-days,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty" toml:"max-backups,omitempty" json:"max-backups,omitempty"`
}

func NewConfig() *Config {
	var cfg Config

	cfg.Database.Host = "localhost"
	cfg.Database.Port = DefaultPort
	cfg.Database.Flavor = FlavorAuto
	cfg.Database.MaxExecutionTime = 3 * time.Second
	cfg.Database.DialTimeout = 5 * time.Second

	cfg.Engine.MaxColumnBytes = DefaultMaxColumnBytes
	cfg.Engine.TxnWaitInterval = time.Millisecond
	cfg.Engine.ReconnectRetries = 1
	cfg.Engine.ReconnectInterval = 500 * time.Millisecond

	cfg.API.Addr = "0.0.0.0:3090"

	cfg.Log.Level = "info"
	cfg.Log.Encoder = "console"
	cfg.Log.LogFile.MaxSize = 300
	cfg.Log.LogFile.MaxDays = 3
	cfg.Log.LogFile.MaxBackups = 3

	return &cfg
}

// ReadConfigFile overlays the TOML file on the defaults and validates the result.
func ReadConfigFile(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Clone() *Config {
	newCfg := *cfg
	return &newCfg
}

// Merge overlays the non-zero fields of overlay on cfg.
func (cfg *Config) Merge(overlay *Config) error {
	data, err := overlay.ToBytes()
	if err != nil {
		return err
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return errors.WithStack(err)
	}
	return cfg.Check()
}

func (cfg *Config) Check() error {
	db := &cfg.Database
	if db.Socket != "" {
		db.Host = "localhost"
		db.Port = 0
	} else if db.Port == 0 {
		db.Port = DefaultPort
	}
	if db.Port < 0 || db.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfigValue, "port %d out of range", db.Port)
	}
	switch db.Flavor {
	case "":
		db.Flavor = FlavorAuto
	case FlavorAuto, FlavorMySQL, FlavorMariaDB:
	default:
		return errors.Wrapf(ErrInvalidConfigValue, "unknown flavor %s", db.Flavor)
	}
	if db.MaxExecutionTime < 0 {
		return errors.Wrapf(ErrInvalidConfigValue, "max-execution-time must not be negative")
	}
	if cfg.Engine.MaxColumnBytes <= 0 {
		return errors.Wrapf(ErrInvalidConfigValue, "max-column-bytes must be positive")
	}
	if cfg.Engine.TxnWaitInterval <= 0 {
		cfg.Engine.TxnWaitInterval = time.Millisecond
	}
	return nil
}

func (cfg *Config) ToBytes() ([]byte, error) {
	b := new(bytes.Buffer)
	err := toml.NewEncoder(b).Encode(cfg)
	return b.Bytes(), errors.WithStack(err)
}
