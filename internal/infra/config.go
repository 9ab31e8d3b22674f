package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"iqfeed_go/internal/domain"

	"gopkg.in/yaml.v3"
)

// Deploy modes for what the frame reader hands downstream
const (
	ModeDecoded = "decoded" // reader decodes inline, queue carries domain.Result
	ModeRaw     = "raw"     // queue carries raw frames, the consumer decodes
)

const (
	defaultProtocol   = "6.2"
	defaultReadBuffer = 2048
	defaultLogFile    = "logs/iqfeed.log"
)

// FeedConfig describes one feed connection and the symbols it watches.
type FeedConfig struct {
	Name    string   `yaml:"name"`
	Address string   `yaml:"address"`
	Symbols []string `yaml:"symbols"`
}

// Config holds every setting of the feed process.
// LoadConfig fills defaults, then lets environment variables override the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feeds []FeedConfig `yaml:"feeds"`

	Feed struct {
		Protocol       string `yaml:"protocol"`
		ReadBuffer     int    `yaml:"read_buffer"`
		Mode           string `yaml:"mode"`
		SkipUTF8Check  bool   `yaml:"skip_utf8_check"`
		DialTimeoutSec int    `yaml:"dial_timeout_sec"`
	} `yaml:"feed"`

	Relay struct {
		Listen string `yaml:"listen"` // empty disables the WebSocket relay
	} `yaml:"relay"`

	NATS struct {
		URL           string `yaml:"url"` // empty disables publishing
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "iqfeed"
	}
	if c.Feed.Protocol == "" {
		c.Feed.Protocol = defaultProtocol
	}
	if c.Feed.ReadBuffer == 0 {
		c.Feed.ReadBuffer = defaultReadBuffer
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = ModeDecoded
	}
	if c.Feed.DialTimeoutSec == 0 {
		c.Feed.DialTimeoutSec = 10
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "iqfeed"
	}
	if c.Logging.File == "" {
		c.Logging.File = defaultLogFile
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 28
	}
	for i := range c.Feeds {
		if c.Feeds[i].Name == "" {
			c.Feeds[i].Name = fmt.Sprintf("feed-%d", i+1)
		}
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return &domain.ConfigError{Field: "feeds", Err: errors.New("at least one feed is required")}
	}
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.Address) == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("feeds[%d].address", i), Err: errors.New("address is required")}
		}
		if len(f.Symbols) == 0 {
			return &domain.ConfigError{Field: fmt.Sprintf("feeds[%d].symbols", i), Err: errors.New("at least one symbol is required")}
		}
		for _, s := range f.Symbols {
			if strings.TrimSpace(s) == "" {
				return &domain.ConfigError{Field: fmt.Sprintf("feeds[%d].symbols", i), Err: domain.ErrInvalidSymbol}
			}
		}
	}

	if c.Feed.ReadBuffer <= 0 {
		return &domain.ConfigError{Field: "feed.read_buffer", Err: fmt.Errorf("must be positive, got %d", c.Feed.ReadBuffer)}
	}
	if c.Feed.Mode != ModeDecoded && c.Feed.Mode != ModeRaw {
		return &domain.ConfigError{Field: "feed.mode", Err: fmt.Errorf("unknown mode %q", c.Feed.Mode)}
	}
	if c.NATS.URL != "" && !hasPrefix(c.NATS.URL, "nats://") && !hasPrefix(c.NATS.URL, "tls://") {
		return &domain.ConfigError{Field: "nats.url", Err: fmt.Errorf("invalid NATS URL: %s", c.NATS.URL)}
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces config values with environment variables when set.
// IQFEED_ADDR and IQFEED_SYMBOLS apply to the first feed.
func overrideWithEnv(cfg *Config) {
	addr := os.Getenv("IQFEED_ADDR")
	symbols := os.Getenv("IQFEED_SYMBOLS")
	if (addr != "" || symbols != "") && len(cfg.Feeds) == 0 {
		cfg.Feeds = append(cfg.Feeds, FeedConfig{Name: "feed-1"})
	}
	if addr != "" {
		cfg.Feeds[0].Address = addr
	}
	if symbols != "" {
		cfg.Feeds[0].Symbols = splitList(symbols)
	}

	if lvl := os.Getenv("IQFEED_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if url := os.Getenv("IQFEED_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if listen := os.Getenv("IQFEED_RELAY_ADDR"); listen != "" {
		cfg.Relay.Listen = listen
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
