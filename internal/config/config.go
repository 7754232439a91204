package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is both the global ~/.wppdesk/config.toml (only DefaultProfile is
// read there) and the per-profile config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile,omitempty"`

	Gateway  Gateway  `toml:"gateway"`
	Daemon   Daemon   `toml:"daemon"`
	Chats    Chats    `toml:"chats"`
	Messages Messages `toml:"messages"`
	Outbox   Outbox   `toml:"outbox"`
}

// Gateway configures the WAHA HTTP API.
type Gateway struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	// ProxyOrigin and ProxyPrefix, when set, make every request and media
	// link go through a same-origin proxy instead of URL.
	ProxyOrigin string   `toml:"proxy_origin,omitempty"`
	ProxyPrefix string   `toml:"proxy_prefix,omitempty"`
	Rate        float64  `toml:"rate"`
	Burst       int      `toml:"burst"`
	Timeout     Duration `toml:"timeout"`
}

// Daemon configures the local dashboard API.
type Daemon struct {
	Listen string `toml:"listen"`
	// ServeProxy mounts /gateway/* on the daemon.
	ServeProxy bool `toml:"serve_proxy"`
}

type Chats struct {
	PageSize    int      `toml:"page_size"`
	Parallel    int      `toml:"parallel"`
	SessionTTL  Duration `toml:"session_ttl"`
	SettleDelay Duration `toml:"settle_delay"`
}

type Messages struct {
	FirstPage    int      `toml:"first_page"`
	NextPage     int      `toml:"next_page"`
	PollInterval Duration `toml:"poll_interval"`
}

type Outbox struct {
	Tick Duration `toml:"tick"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			URL:   "http://localhost:3000",
			Rate:  20,
			Burst: 10,
		},
		Daemon: Daemon{
			Listen:     "127.0.0.1:7420",
			ServeProxy: true,
		},
		Chats: Chats{
			PageSize:    20,
			Parallel:    4,
			SessionTTL:  Duration{30 * time.Second},
			SettleDelay: Duration{1500 * time.Millisecond},
		},
		Messages: Messages{
			FirstPage:    5,
			NextPage:     20,
			PollInterval: Duration{5 * time.Second},
		},
		Outbox: Outbox{
			Tick: Duration{500 * time.Millisecond},
		},
	}
}

// Load reads config from the given path on top of Default. Returns error if
// the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadEnvFiles loads .env files into the process environment. Missing
// files are skipped; variables already set win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from WAHA_* and WPPDESK_* variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Gateway.URL, "WAHA_URL")
	setString(&c.Gateway.APIKey, "WAHA_API_KEY")
	setString(&c.Gateway.ProxyOrigin, "WPPDESK_PROXY_ORIGIN")
	setString(&c.Gateway.ProxyPrefix, "WPPDESK_PROXY_PREFIX")
	setString(&c.Daemon.Listen, "WPPDESK_LISTEN")

	var errs []error
	errs = append(errs,
		setFloat(&c.Gateway.Rate, "WPPDESK_RATE"),
		setInt(&c.Gateway.Burst, "WPPDESK_BURST"),
		setDuration(&c.Gateway.Timeout, "WPPDESK_TIMEOUT"),
		setBool(&c.Daemon.ServeProxy, "WPPDESK_SERVE_PROXY"),
		setInt(&c.Chats.PageSize, "WPPDESK_PAGE_SIZE"),
		setInt(&c.Chats.Parallel, "WPPDESK_PARALLEL"),
		setDuration(&c.Chats.SessionTTL, "WPPDESK_SESSION_TTL"),
		setDuration(&c.Chats.SettleDelay, "WPPDESK_SETTLE_DELAY"),
		setDuration(&c.Messages.PollInterval, "WPPDESK_POLL_INTERVAL"),
	)
	return errors.Join(errs...)
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return errors.New("gateway url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway url %q", c.Gateway.URL)
	}
	if c.Gateway.ProxyOrigin != "" && c.Gateway.ProxyPrefix == "" {
		return errors.New("proxy_prefix is required with proxy_origin")
	}
	if c.Chats.PageSize < 0 || c.Messages.FirstPage < 0 || c.Messages.NextPage < 0 {
		return errors.New("page sizes must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func lookup(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func setInt(dst *int, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func setFloat(dst *float64, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func setDuration(dst *Duration, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	dst.Duration = v
	return nil
}
