// Package config loads the settings of the submarines command from a YAML
// file, a .env file and the environment, in increasing order of precedence.
package config

import (
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Zereker/submarines"
	"github.com/Zereker/submarines/board"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SUBMARINES_"

// Config is the complete configuration of a player.
type Config struct {
	Port           int           `yaml:"port"`
	Magic          string        `yaml:"magic"`
	ChunkSize      int           `yaml:"chunk_size"`
	MaxMessageSize int           `yaml:"max_message_size"`
	Timeout        time.Duration `yaml:"timeout"`
	LogLevel       string        `yaml:"log_level"`
	BoardSize      int           `yaml:"board_size"`
	Fleet          []int         `yaml:"fleet"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	fleet := make([]int, len(board.DefaultFleet))
	for i, size := range board.DefaultFleet {
		fleet[i] = int(size)
	}

	return Config{
		Port:           submarines.DefaultPort,
		Magic:          submarines.DefaultMagic.String(),
		ChunkSize:      1024,
		MaxMessageSize: 64 * 1024,
		LogLevel:       "info",
		BoardSize:      board.DefaultSize,
		Fleet:          fleet,
	}
}

// Load reads path on top of Default, when path is not empty, then applies
// the environment. A .env file in the working directory is loaded first if
// it exists; variables already set in the environment win over it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, errors.Wrap(err, "load .env")
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	ints := map[string]*int{
		"PORT":             &c.Port,
		"CHUNK_SIZE":       &c.ChunkSize,
		"MAX_MESSAGE_SIZE": &c.MaxMessageSize,
		"BOARD_SIZE":       &c.BoardSize,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "MAGIC"); ok {
		c.Magic = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%sTIMEOUT", EnvPrefix)
		}
		c.Timeout = d
	}

	return nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if _, err := submarines.ParseMagic(c.Magic); err != nil {
		return err
	}
	if c.BoardSize < 1 || c.BoardSize > board.MaxSize {
		return errors.Wrapf(board.ErrInvalidSize, "board_size %d", c.BoardSize)
	}
	for _, size := range c.Fleet {
		if s := submarines.SubmarineSize(size); size < 0 || s == submarines.NoSubmarine || !s.Valid() {
			return errors.Wrapf(board.ErrInvalidLength, "fleet entry %d", size)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return level, errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	return level, nil
}

// FleetSizes returns the fleet as submarine sizes.
func (c Config) FleetSizes() []submarines.SubmarineSize {
	sizes := make([]submarines.SubmarineSize, len(c.Fleet))
	for i, size := range c.Fleet {
		sizes[i] = submarines.SubmarineSize(size)
	}
	return sizes
}

// SessionOptions converts the configuration into session options.
func (c Config) SessionOptions(logger submarines.Logger) ([]submarines.Option, error) {
	magic, err := submarines.ParseMagic(c.Magic)
	if err != nil {
		return nil, err
	}

	return []submarines.Option{
		submarines.MagicOption(magic),
		submarines.ChunkSizeOption(c.ChunkSize),
		submarines.MessageMaxSize(c.MaxMessageSize),
		submarines.TimeoutOption(c.Timeout),
		submarines.LoggerOption(logger),
	}, nil
}
